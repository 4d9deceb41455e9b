// Package testdecode is the read-side mirror of this module's compilers,
// used only by package tests to confirm round-trip invariants (resource id
// assignment, chunk alignment, namespace balance, string-pool fidelity). It
// runs the same chunk-dispatch loop and dual-count string decode the
// compilers' output requires, trimmed of any obfuscation-recovery or
// resource-table attribute lookups, since the only input here is this
// module's own output.
package testdecode

import (
	"encoding/binary"
	"fmt"

	"github.com/google/pack/reschunk"
)

// ChunkHeader is a decoded 8-byte ResChunk header.
type ChunkHeader struct {
	Type       uint16
	HeaderSize uint16
	ChunkSize  uint32
}

// DecodeChunkHeader reads the 8-byte common ResChunk header at the start
// of data, delegating to reschunk's own decode helper so both sides of the
// chunk framing agree on one implementation.
func DecodeChunkHeader(data []byte) (ChunkHeader, error) {
	hdr, err := reschunk.DecodeHeaderForTest(data)
	if err != nil {
		return ChunkHeader{}, err
	}
	return ChunkHeader{Type: hdr.ChunkType, HeaderSize: hdr.HeaderSize, ChunkSize: hdr.ChunkSize}, nil
}

// StringPool is a decoded AAPT2 UTF-8 string pool.
type StringPool struct {
	Strings []string
}

// DecodeStringPool parses a complete StringPool ResChunk (header included).
func DecodeStringPool(data []byte) (StringPool, error) {
	hdr, err := DecodeChunkHeader(data)
	if err != nil {
		return StringPool{}, err
	}
	if int(hdr.ChunkSize) > len(data) {
		return StringPool{}, fmt.Errorf("string pool chunk_size %d exceeds buffer %d", hdr.ChunkSize, len(data))
	}

	stringCount := binary.LittleEndian.Uint32(data[8:12])
	stringsStart := binary.LittleEndian.Uint32(data[20:24])

	offsets := data[int(hdr.HeaderSize):]
	stringData := data[stringsStart:hdr.ChunkSize]

	out := StringPool{Strings: make([]string, 0, stringCount)}
	for i := uint32(0); i < stringCount; i++ {
		off := binary.LittleEndian.Uint32(offsets[4*i : 4*i+4])
		s, err := decodeString8(stringData[off:])
		if err != nil {
			return StringPool{}, fmt.Errorf("string %d: %w", i, err)
		}
		out.Strings = append(out.Strings, s)
	}
	return out, nil
}

// decodeString8 reads one AAPT2 UTF-8 pool string: two independently
// variable-length-encoded counts (char count, then byte count) followed by
// that many raw bytes and a NUL sentinel.
func decodeString8(b []byte) (string, error) {
	_, n, err := decodeLength8(b) // char count, unused here
	if err != nil {
		return "", err
	}
	b = b[n:]
	byteCount, n, err := decodeLength8(b)
	if err != nil {
		return "", err
	}
	b = b[n:]
	if int(byteCount) > len(b) {
		return "", fmt.Errorf("string byte count %d exceeds remaining %d", byteCount, len(b))
	}
	return string(b[:byteCount]), nil
}

func decodeLength8(b []byte) (length int, consumed int, err error) {
	if len(b) < 1 {
		return 0, 0, fmt.Errorf("length field truncated")
	}
	if b[0]&0x80 != 0 {
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("two-byte length field truncated")
		}
		return int(b[0]&0x7F)<<8 | int(b[1]), 2, nil
	}
	return int(b[0]), 1, nil
}

// XmlEvent is one decoded node from an XmlFile chunk stream: a namespace
// start/end, an element start/end, or a resolved attribute on a start
// element.
type XmlEvent struct {
	Kind         string // "nsstart", "nsend", "start", "end"
	NamespaceURI string
	Name         string
	Attrs        []XmlAttr
}

// XmlAttr is one decoded attribute on a start element.
type XmlAttr struct {
	NamespaceURI string
	Name         string
	RawValue     string // "" if not a String-typed attribute
	DataType     uint8
	Data         uint32
}

// DecodedXmlFile is the full decode of one binxml.Compile output.
type DecodedXmlFile struct {
	Pool        StringPool
	ResourceMap []uint32
	Events      []XmlEvent
}

// DecodeXmlFile walks a complete XmlFile ResChunk (the output of
// binxml.Compile), resolving every string-pool reference. It intentionally
// omits any resource-table-backed attribute-name recovery: this module's own
// compiler always interns every attribute name and element name it uses, so
// plain string-pool lookups are always sufficient here.
func DecodeXmlFile(data []byte) (DecodedXmlFile, error) {
	top, err := DecodeChunkHeader(data)
	if err != nil {
		return DecodedXmlFile{}, err
	}
	if int(top.ChunkSize) > len(data) {
		return DecodedXmlFile{}, fmt.Errorf("xml file chunk_size %d exceeds buffer %d", top.ChunkSize, len(data))
	}

	pos := int(top.HeaderSize)
	end := int(top.ChunkSize)

	var out DecodedXmlFile
	for pos < end {
		hdr, err := DecodeChunkHeader(data[pos:])
		if err != nil {
			return DecodedXmlFile{}, err
		}
		if hdr.ChunkSize%4 != 0 {
			return DecodedXmlFile{}, fmt.Errorf("chunk 0x%04x size %d not 4-byte aligned", hdr.Type, hdr.ChunkSize)
		}
		body := data[pos+int(hdr.HeaderSize) : pos+int(hdr.ChunkSize)]

		switch hdr.Type {
		case 0x0001: // StringPool
			pool, err := DecodeStringPool(data[pos : pos+int(hdr.ChunkSize)])
			if err != nil {
				return DecodedXmlFile{}, err
			}
			out.Pool = pool
		case 0x0180: // XmlResourceMap
			for i := 0; i+4 <= len(body); i += 4 {
				out.ResourceMap = append(out.ResourceMap, binary.LittleEndian.Uint32(body[i:i+4]))
			}
		case 0x0100, 0x0101: // XmlStartNamespace / XmlEndNamespace
			// body is the raw (prefixIdx, uriIdx) pair: the node's
			// line_number/comment fields live in the chunk's extraHeader,
			// already excluded by slicing from hdr.HeaderSize.
			prefixIdx := binary.LittleEndian.Uint32(body[0:4])
			uriIdx := binary.LittleEndian.Uint32(body[4:8])
			kind := "nsstart"
			if hdr.Type == 0x0101 {
				kind = "nsend"
			}
			out.Events = append(out.Events, XmlEvent{
				Kind:         kind,
				NamespaceURI: refString(out.Pool, uriIdx),
				Name:         refString(out.Pool, prefixIdx),
			})
		case 0x0102: // XmlStartElement
			ev, err := decodeStartElement(body, out.Pool)
			if err != nil {
				return DecodedXmlFile{}, err
			}
			out.Events = append(out.Events, ev)
		case 0x0103: // XmlEndElement
			namespaceIdx := binary.LittleEndian.Uint32(body[0:4])
			nameIdx := binary.LittleEndian.Uint32(body[4:8])
			out.Events = append(out.Events, XmlEvent{
				Kind:         "end",
				NamespaceURI: refString(out.Pool, namespaceIdx),
				Name:         refString(out.Pool, nameIdx),
			})
		}

		pos += int(hdr.ChunkSize)
	}
	return out, nil
}

// decodeStartElement reads a ResXMLTree_attrExt: namespace ref, name ref,
// attribute table layout fields, then attrCount fixed-size attribute
// entries. body excludes the node's line_number/comment extraHeader.
func decodeStartElement(body []byte, pool StringPool) (XmlEvent, error) {
	namespaceIdx := binary.LittleEndian.Uint32(body[0:4])
	nameIdx := binary.LittleEndian.Uint32(body[4:8])
	attrCount := binary.LittleEndian.Uint16(body[12:14])

	ev := XmlEvent{
		Kind:         "start",
		NamespaceURI: refString(pool, namespaceIdx),
		Name:         refString(pool, nameIdx),
	}

	attrsStart := 20
	for i := 0; i < int(attrCount); i++ {
		off := attrsStart + i*20
		if off+20 > len(body) {
			return XmlEvent{}, fmt.Errorf("attribute %d truncated", i)
		}
		nsIdx := binary.LittleEndian.Uint32(body[off : off+4])
		attrNameIdx := binary.LittleEndian.Uint32(body[off+4 : off+8])
		rawValueIdx := binary.LittleEndian.Uint32(body[off+8 : off+12])
		dataType := body[off+15]
		data := binary.LittleEndian.Uint32(body[off+16 : off+20])

		a := XmlAttr{
			NamespaceURI: refString(pool, nsIdx),
			Name:         refString(pool, attrNameIdx),
			DataType:     dataType,
			Data:         data,
		}
		if rawValueIdx != 0xFFFFFFFF {
			a.RawValue = refString(pool, rawValueIdx)
		}
		ev.Attrs = append(ev.Attrs, a)
	}
	return ev, nil
}

func refString(pool StringPool, idx uint32) string {
	if idx == 0xFFFFFFFF || int(idx) >= len(pool.Strings) {
		return ""
	}
	return pool.Strings[idx]
}
