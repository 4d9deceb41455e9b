package sign

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/pack/errs"
)

// Sha256Hash is a raw SHA-256 digest.
type Sha256Hash = [32]byte

const bytesIn1MB = 1024 * 1024

var firstLevelChunkMagic = []byte{0xa5}
var secondLevelChunkMagic = []byte{0x5a}

// ComputeTopLevelHash hashes apkBuf per the APK Signature Scheme v2
// chunked digest algorithm (docs call the three ranges chunks 1, 3 and 4;
// the APK Signing Block itself, not yet spliced in, is chunk 2), then
// patches the EOCD's central-directory-offset field in place so it
// accounts for signingBlockLength once the block is inserted.
//
// Chunk 4 (the EOCD) is hashed using the offset field's ORIGINAL value —
// the patch below happens only after hashing. The finished APK carries the
// patched value at this position, but v2/v3 verification reads the EOCD's
// central-directory offset as pointing at the start of the APK Signing
// Block, and that is exactly the original value.
func ComputeTopLevelHash(apkBuf []byte, cdStart, eocdStart, signingBlockLength int) (Sha256Hash, error) {
	if eocdStart+20 > len(apkBuf) {
		return Sha256Hash{}, errs.New(errs.SignerZipParsingFailed, "end of central directory record too short")
	}

	chunk1 := apkBuf[:cdStart]
	chunk3 := apkBuf[cdStart:eocdStart]
	chunk4 := apkBuf[eocdStart:]

	var firstLevelHashes []Sha256Hash
	firstLevelHashes = append(firstLevelHashes, hashChunk(chunk1)...)
	firstLevelHashes = append(firstLevelHashes, hashChunk(chunk3)...)
	firstLevelHashes = append(firstLevelHashes, hashChunk(chunk4)...)

	newCdStart := uint32(cdStart + signingBlockLength)
	binary.LittleEndian.PutUint32(chunk4[16:20], newCdStart)

	h := sha256.New()
	h.Write(secondLevelChunkMagic)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(firstLevelHashes)))
	h.Write(countBuf[:])
	for _, hash := range firstLevelHashes {
		h.Write(hash[:])
	}

	var out Sha256Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

func hashChunk(chunk []byte) []Sha256Hash {
	var hashes []Sha256Hash
	pos := 0
	for pos < len(chunk) {
		end := pos + bytesIn1MB
		if end > len(chunk) {
			end = len(chunk)
		}

		h := sha256.New()
		h.Write(firstLevelChunkMagic)
		var sizeBuf [4]byte
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(end-pos))
		h.Write(sizeBuf[:])
		h.Write(chunk[pos:end])

		var out Sha256Hash
		copy(out[:], h.Sum(nil))
		hashes = append(hashes, out)
		pos = end
	}
	return hashes
}
