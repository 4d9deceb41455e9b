package sign_test

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/pack/keys"
	"github.com/google/pack/sign"
)

func buildUnsignedZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("AndroidManifest.xml")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("<manifest/>")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func testKeys(t *testing.T) *keys.Keys {
	t.Helper()
	k, err := keys.GenerateRandomTestingKeys()
	if err != nil {
		t.Fatalf("GenerateRandomTestingKeys: %v", err)
	}
	return k
}

func TestSignApkEmbedsSigningBlock(t *testing.T) {
	unsigned := buildUnsignedZip(t)
	origCDStart, _, err := sign.FindOffsets(unsigned)
	if err != nil {
		t.Fatalf("FindOffsets(unsigned): %v", err)
	}
	k := testKeys(t)

	signed, err := sign.SignApk(unsigned, k)
	if err != nil {
		t.Fatalf("SignApk: %v", err)
	}
	if len(signed) <= len(unsigned) {
		t.Fatalf("signed APK (%d bytes) should be larger than unsigned (%d bytes)", len(signed), len(unsigned))
	}

	// The resulting buffer must still be a well-formed zip with a valid
	// central directory/EOCD, readable by the standard library.
	if _, err := zip.NewReader(bytes.NewReader(signed), int64(len(signed))); err != nil {
		t.Fatalf("signed APK is not a valid zip: %v", err)
	}

	patchedCDStart, _, err := sign.FindOffsets(signed)
	if err != nil {
		t.Fatalf("FindOffsets(signed): %v", err)
	}

	// The block sits between the zip body and the central directory, so its
	// trailing magic ends exactly where the (patched) central directory
	// begins.
	apkSigBlockMagic := []byte("APK Sig Block 42")
	magicPos := patchedCDStart - len(apkSigBlockMagic)
	if magicPos < 0 || !bytes.Equal(signed[magicPos:patchedCDStart], apkSigBlockMagic) {
		t.Fatalf("APK Signing Block magic not found immediately before the central directory")
	}

	blockSizeFooter := binary.LittleEndian.Uint64(signed[magicPos-8 : magicPos])
	blockStart := patchedCDStart - int(blockSizeFooter) - 8
	blockSizeHeader := binary.LittleEndian.Uint64(signed[blockStart : blockStart+8])
	if blockSizeFooter != blockSizeHeader {
		t.Errorf("signing block size header (%d) != footer (%d)", blockSizeHeader, blockSizeFooter)
	}
	if blockStart != origCDStart {
		t.Errorf("signing block does not start exactly where the original central directory did: blockStart=%d origCDStart=%d", blockStart, origCDStart)
	}

	// The EOCD's central-directory-offset field must be patched to point
	// past the now-spliced-in signing block.
	wantPatchedCDStart := blockStart + int(blockSizeHeader) + 8
	if patchedCDStart != wantPatchedCDStart {
		t.Errorf("patched central directory offset = %d, want %d", patchedCDStart, wantPatchedCDStart)
	}
}

func TestSignApkIsDeterministicPerKey(t *testing.T) {
	unsigned := buildUnsignedZip(t)
	k := testKeys(t)

	first, err := sign.SignApk(append([]byte{}, unsigned...), k)
	if err != nil {
		t.Fatalf("SignApk (first): %v", err)
	}
	second, err := sign.SignApk(append([]byte{}, unsigned...), k)
	if err != nil {
		t.Fatalf("SignApk (second): %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("signing the same input with the same key twice produced different output; RSA-PKCS1v15 signatures are deterministic given the same key and message")
	}
}

func TestComputeTopLevelHashPatchesCentralDirectoryOffset(t *testing.T) {
	unsigned := buildUnsignedZip(t)
	cdStart, eocdStart, err := sign.FindOffsets(unsigned)
	if err != nil {
		t.Fatalf("FindOffsets: %v", err)
	}

	const fakeSigningBlockLength = 128
	if _, err := sign.ComputeTopLevelHash(unsigned, cdStart, eocdStart, fakeSigningBlockLength); err != nil {
		t.Fatalf("ComputeTopLevelHash: %v", err)
	}

	newCDOffset := binary.LittleEndian.Uint32(unsigned[eocdStart+16 : eocdStart+20])
	if int(newCDOffset) != cdStart+fakeSigningBlockLength {
		t.Errorf("patched central directory offset = %d, want %d", newCDOffset, cdStart+fakeSigningBlockLength)
	}
}

func TestFindOffsetsNoEOCD(t *testing.T) {
	_, _, err := sign.FindOffsets([]byte("not a zip file"))
	if err == nil {
		t.Fatal("expected an error for a buffer with no EOCD record")
	}
}
