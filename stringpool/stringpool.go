// Package stringpool builds AAPT2's UTF-8 string pool chunk: the format
// shared by every XmlFile, Table, and TablePackage chunk in this compiler.
// This is the write side of AAPT2's UTF-8 string encoding.
package stringpool

import (
	"encoding/binary"

	"github.com/google/pack/errs"
	"github.com/google/pack/reschunk"
)

const utf8Flag = 1 << 8

// maxStringBytes is the largest UTF-8 byte length a single pool string may
// have: lengths are stored in a 15-bit field (a 16th bit marks the
// two-byte form), so 0x7FFF is the hard ceiling.
const maxStringBytes = 0x7FFF

// BuildPool encodes strings into a StringPool ResChunk (type 0x0001).
// Strings are kept in input order with no deduplication: callers assign
// indices themselves, and two equal strings may legitimately occupy two
// slots (e.g. the leading Android-attribute slots of a binary-XML string
// pool are never deduplicated against user strings).
func BuildPool(strings []string) ([]byte, error) {
	offsets := make([]byte, 4*len(strings))
	var data []byte

	for i, s := range strings {
		if len(s) > maxStringBytes {
			return nil, errs.Newf(errs.StringPoolStringTooLong, "%q is %d bytes", s, len(s))
		}
		binary.LittleEndian.PutUint32(offsets[4*i:4*i+4], uint32(len(data)))

		data = append(data, encodeLength8(runeCount(s))...)
		data = append(data, encodeLength8(len(s))...)
		data = append(data, s...)
		data = append(data, 0)
	}
	data = reschunk.PadTo4(data)

	stringsStart := uint32(0x1C + len(offsets))
	var extraHeader [20]byte
	binary.LittleEndian.PutUint32(extraHeader[0:4], uint32(len(strings)))
	binary.LittleEndian.PutUint32(extraHeader[4:8], 0) // style_count
	binary.LittleEndian.PutUint32(extraHeader[8:12], utf8Flag)
	binary.LittleEndian.PutUint32(extraHeader[12:16], stringsStart)
	binary.LittleEndian.PutUint32(extraHeader[16:20], 0) // styles_start

	payload := append(append([]byte{}, offsets...), data...)
	return reschunk.Frame(reschunk.ChunkStringPool, extraHeader[:], payload)
}

// runeCount counts Unicode code points, not bytes, matching AAPT2's
// char_count field (distinct from the byte_count field alongside it).
func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// encodeLength8 is AAPT2's variable-length u8 string-length encoding: one
// byte for lengths under 128, two big-endian-ish bytes (high bit set on the
// first) otherwise. char_count and byte_count are encoded independently,
// each with its own high-bit marker, never sharing a single width decision.
func encodeLength8(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	return []byte{0x80 | byte((n>>8)&0x7F), byte(n & 0xFF)}
}
