// Package reschunk holds the chunk-type constants and framing helper shared
// by the binary-XML compiler and the resource-table builder. The constants
// mirror frameworks/base/libs/androidfw/include/androidfw/ResourceTypes.h.
package reschunk

import (
	"encoding/binary"

	"github.com/google/pack/errs"
)

const (
	ChunkNull          = 0x0000
	ChunkStringPool    = 0x0001
	ChunkTable         = 0x0002
	ChunkXmlFile       = 0x0003
	ChunkXmlResourceMap = 0x0180
	ChunkTablePackage  = 0x0200
	ChunkTableType     = 0x0201
	ChunkTableTypeSpec = 0x0202
	ChunkTableLibrary  = 0x0203

	ChunkXmlNsStart  = 0x0100
	ChunkXmlNsEnd    = 0x0101
	ChunkXmlTagStart = 0x0102
	ChunkXmlTagEnd   = 0x0103
	ChunkXmlText     = 0x0104

	HeaderSize = 8 // 2 (type) + 2 (header_size) + 4 (chunk_size)
)

// AttrType is the data-type tag of a typed attribute value
// (android::Res_value::dataType).
type AttrType uint8

const (
	AttrTypeNull         AttrType = 0x00
	AttrTypeReference    AttrType = 0x01
	AttrTypeAttribute    AttrType = 0x02
	AttrTypeString       AttrType = 0x03
	AttrTypeFloat        AttrType = 0x04
	AttrTypeIntDec       AttrType = 0x10
	AttrTypeIntHex       AttrType = 0x11
	AttrTypeIntBool      AttrType = 0x12
	AttrTypeIntColorArgb8 AttrType = 0x1c
)

// Frame prepends an 8-byte ResChunk header to payload, returning the
// complete chunk. extraHeader is additional fixed-size header bytes that
// sit between the 8-byte common header and payload (e.g. a string pool's
// count fields); header_size = 8 + len(extraHeader).
//
// chunk_size must end up a multiple of 4; this is an internal invariant of
// every caller (each payload is itself built to be 4-byte aligned), so a
// violation here means a bug in the caller, not bad input.
func Frame(chunkType uint16, extraHeader, payload []byte) ([]byte, error) {
	headerSize := HeaderSize + len(extraHeader)
	chunkSize := headerSize + len(payload)
	if chunkSize%4 != 0 {
		return nil, errs.Newf(errs.ByteSerialisationFailed, "chunk 0x%04x size %d is not 4-byte aligned", chunkType, chunkSize)
	}

	out := make([]byte, 0, chunkSize)
	var hdr [8]byte
	binary.LittleEndian.PutUint16(hdr[0:2], chunkType)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(headerSize))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(chunkSize))
	out = append(out, hdr[:]...)
	out = append(out, extraHeader...)
	out = append(out, payload...)
	return out, nil
}

// FrameDeclaredSize builds a ResChunk header whose declared chunk_size may
// exceed len(extraHeader)+len(payload): the real on-disk TablePackage and
// TableType chunks declare a chunk_size spanning sibling data (string
// pools, type/entry chunks) that the caller appends immediately
// afterwards as separate byte slices, rather than as part of this chunk's
// own payload. Ordinary chunks are always self-consistent and should use
// Frame instead; this exists only for those two exceptions.
func FrameDeclaredSize(chunkType uint16, extraHeader, payload []byte, declaredChunkSize uint32) ([]byte, error) {
	headerSize := HeaderSize + len(extraHeader)
	if declaredChunkSize%4 != 0 {
		return nil, errs.Newf(errs.ByteSerialisationFailed, "chunk 0x%04x declared size %d is not 4-byte aligned", chunkType, declaredChunkSize)
	}

	out := make([]byte, 0, headerSize+len(payload))
	var hdr [8]byte
	binary.LittleEndian.PutUint16(hdr[0:2], chunkType)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(headerSize))
	binary.LittleEndian.PutUint32(hdr[4:8], declaredChunkSize)
	out = append(out, hdr[:]...)
	out = append(out, extraHeader...)
	out = append(out, payload...)
	return out, nil
}

// DecodedHeader is the 8-byte common ResChunk header Frame/FrameDeclaredSize
// write, decoded back out.
type DecodedHeader struct {
	ChunkType  uint16
	HeaderSize uint16
	ChunkSize  uint32
}

// DecodeHeaderForTest reads the common header back out of a chunk built by
// Frame or FrameDeclaredSize. Exported for package tests that need to
// confirm the invariants in this package's doc comment; not used by the
// compiler itself, which only ever writes chunks.
func DecodeHeaderForTest(chunk []byte) (DecodedHeader, error) {
	if len(chunk) < HeaderSize {
		return DecodedHeader{}, errs.Newf(errs.ByteSerialisationFailed, "chunk is %d bytes, shorter than the %d-byte common header", len(chunk), HeaderSize)
	}
	return DecodedHeader{
		ChunkType:  binary.LittleEndian.Uint16(chunk[0:2]),
		HeaderSize: binary.LittleEndian.Uint16(chunk[2:4]),
		ChunkSize:  binary.LittleEndian.Uint32(chunk[4:8]),
	}, nil
}

// PadTo4 returns b padded with zero bytes to the next multiple of 4.
func PadTo4(b []byte) []byte {
	if rem := len(b) % 4; rem != 0 {
		b = append(b, make([]byte, 4-rem)...)
	}
	return b
}
