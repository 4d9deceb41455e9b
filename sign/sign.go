// Package sign adds an APK Signature Scheme v2/v3 Signing Block to a
// finished zip buffer, for both APK and AAB outputs (the block splices in
// the same way for either — an AAB is a zip too, just not one Android
// itself ever installs directly).
package sign

import (
	"github.com/google/pack/keys"
)

// minSDK is the lowest API level this signer targets: v2/v3 verification
// on the platform requires SHA-256 support, which API 23 and below lack.
const minSDK = 24

// maxSDK is deliberately the largest positive int32: the platform parses
// this field as signed despite the format documenting it as unsigned.
const maxSDK = 0x7FFFFFFF

// SignApk adds a v2/v3 Signing Block to apkBuf, an already-assembled,
// unsigned zip archive, returning the final signed bytes. apkBuf is
// mutated in place (the EOCD's central directory offset gets patched) in
// addition to being used to build the returned slice.
func SignApk(apkBuf []byte, k *keys.Keys) ([]byte, error) {
	pubKeyDER, err := k.PublicKeyDER()
	if err != nil {
		return nil, err
	}

	// The hash that goes into the real signing block covers the gap the
	// block itself leaves in the file, so its length has to be known
	// before the hash can be computed. Dry-run with a zero hash first —
	// the block's length never depends on the hash's actual value, only
	// its fixed 32-byte size — to learn that length.
	dryRun, err := computeSigningBlock(Sha256Hash{}, k, pubKeyDER)
	if err != nil {
		return nil, err
	}

	cdStart, eocdStart, err := FindOffsets(apkBuf)
	if err != nil {
		return nil, err
	}

	topLevelHash, err := ComputeTopLevelHash(apkBuf, cdStart, eocdStart, len(dryRun))
	if err != nil {
		return nil, err
	}

	signingBlock, err := computeSigningBlock(topLevelHash, k, pubKeyDER)
	if err != nil {
		return nil, err
	}

	var out []byte
	out = append(out, apkBuf[:cdStart]...)
	out = append(out, signingBlock...)
	out = append(out, apkBuf[cdStart:eocdStart]...)
	out = append(out, apkBuf[eocdStart:]...)
	return out, nil
}

func computeSigningBlock(topLevelHash Sha256Hash, k *keys.Keys, pubKeyDER []byte) ([]byte, error) {
	v2SignedData := marshalSignedData(topLevelHash, k.Certificate)
	v3SignedData := marshalV3SignedData(topLevelHash, k.Certificate, minSDK, maxSDK)

	v2Signature, err := signWithRsa(v2SignedData, k.PrivateKey)
	if err != nil {
		return nil, err
	}
	v3Signature, err := signWithRsa(v3SignedData, k.PrivateKey)
	if err != nil {
		return nil, err
	}

	v2Signer := marshalSigner(v2SignedData, v2Signature, pubKeyDER)
	v3Signer := marshalV3Signer(v3SignedData, minSDK, maxSDK, v3Signature, pubKeyDER)

	v2Block := marshalSignatureSchemeBlock(v2Signer)
	v3Block := marshalSignatureSchemeBlock(v3Signer)

	return buildApkSigningBlock(v2Block, v3Block), nil
}
