package sign

import (
	"bytes"
	"encoding/binary"

	"github.com/google/pack/errs"
)

var eocdMagic = []byte{0x50, 0x4B, 0x05, 0x06}

// FindOffsets scans zipBuf backward for the End Of Central Directory
// record and returns the central directory's start offset alongside the
// EOCD record's own start offset. Scanning backward (rather than forward
// from the local file headers) is what makes this tolerant of a trailing
// zip comment of arbitrary length.
func FindOffsets(zipBuf []byte) (cdStart, eocdStart int, err error) {
	for i := len(zipBuf) - 4; i >= 0; i-- {
		if bytes.Equal(zipBuf[i:i+4], eocdMagic) {
			eocdStart = i
			cdStart = int(binary.LittleEndian.Uint32(zipBuf[i+16 : i+20]))
			return cdStart, eocdStart, nil
		}
	}
	return 0, 0, errs.New(errs.SignerZipParsingFailed, "end of central directory record not found")
}
