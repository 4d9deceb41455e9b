package sign

import "encoding/binary"

// Field layouts below follow the APK Signature Scheme v2/v3 documents;
// nesting is all length-prefixed byte strings rather than a fixed struct
// layout, so this package builds them as plain byte slices instead of
// reaching for a binary-struct library. u32-prefixed fields nest inside
// the "integrity-protected contents" of a signed-data block; u64-prefixed
// fields are the outer APK Signing Block's own id/value pairs.

const signatureAlgorithmRsaPkcs1v15Sha256 = 0x0103

func appendU32Len(b, value []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(value)))
	b = append(b, lenBuf[:]...)
	return append(b, value...)
}

func appendU64Len(b, value []byte) []byte {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(value)))
	b = append(b, lenBuf[:]...)
	return append(b, value...)
}

func marshalDigest(hash Sha256Hash) []byte {
	var algo [4]byte
	binary.LittleEndian.PutUint32(algo[:], signatureAlgorithmRsaPkcs1v15Sha256)
	b := append([]byte{}, algo[:]...)
	return appendU32Len(b, hash[:])
}

func marshalSignature(sig []byte) []byte {
	var algo [4]byte
	binary.LittleEndian.PutUint32(algo[:], signatureAlgorithmRsaPkcs1v15Sha256)
	b := append([]byte{}, algo[:]...)
	return appendU32Len(b, sig)
}

// marshalSignedData builds the v2 SignedData: a single digest over the
// whole APK and a single certificate. additional_attributes is always 0 —
// this signer never emits any.
func marshalSignedData(hash Sha256Hash, certDER []byte) []byte {
	digestEntry := appendU32Len(nil, marshalDigest(hash))
	digests := appendU32Len(nil, digestEntry)

	certEntry := appendU32Len(nil, certDER)
	certs := appendU32Len(nil, certEntry)

	var b []byte
	b = append(b, digests...)
	b = append(b, certs...)
	b = append(b, 0, 0, 0, 0) // additional_attributes
	return b
}

// marshalV3SignedData is the v2 SignedData shape plus the min/max SDK
// range this signer block applies to.
func marshalV3SignedData(hash Sha256Hash, certDER []byte, minSDK, maxSDK uint32) []byte {
	digestEntry := appendU32Len(nil, marshalDigest(hash))
	digests := appendU32Len(nil, digestEntry)

	certEntry := appendU32Len(nil, certDER)
	certs := appendU32Len(nil, certEntry)

	var b []byte
	b = append(b, digests...)
	b = append(b, certs...)
	var sdk [8]byte
	binary.LittleEndian.PutUint32(sdk[0:4], minSDK)
	binary.LittleEndian.PutUint32(sdk[4:8], maxSDK)
	b = append(b, sdk[:]...)
	b = append(b, 0, 0, 0, 0) // additional_attributes
	return b
}

func marshalSigner(signedData, signature, pubKeyDER []byte) []byte {
	sigEntry := appendU32Len(nil, marshalSignature(signature))
	sigs := appendU32Len(nil, sigEntry)

	var b []byte
	b = appendU32Len(b, signedData)
	b = append(b, sigs...)
	b = appendU32Len(b, pubKeyDER)
	return b
}

func marshalV3Signer(signedData []byte, minSDK, maxSDK uint32, signature, pubKeyDER []byte) []byte {
	sigEntry := appendU32Len(nil, marshalSignature(signature))
	sigs := appendU32Len(nil, sigEntry)

	var b []byte
	b = appendU32Len(b, signedData)
	var sdk [8]byte
	binary.LittleEndian.PutUint32(sdk[0:4], minSDK)
	binary.LittleEndian.PutUint32(sdk[4:8], maxSDK)
	b = append(b, sdk[:]...)
	b = append(b, sigs...)
	b = appendU32Len(b, pubKeyDER)
	return b
}

// marshalSignatureSchemeBlock wraps a single already-marshaled signer as
// the scheme block's signer list. Both v2 and v3 blocks share this exact
// shape (a u32-length-prefixed list of u32-length-prefixed signers); only
// what's inside an individual signer differs between the two.
func marshalSignatureSchemeBlock(signer []byte) []byte {
	signerEntry := appendU32Len(nil, signer)
	return appendU32Len(nil, signerEntry)
}

const signatureSchemeV2BlockID = 0x7109871A
const signatureSchemeV3BlockID = 0xF05368C0

var apkSigningBlockMagic = []byte("APK Sig Block 42")

func marshalSigningBlockPair(id uint32, value []byte) []byte {
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], id)
	pair := append(append([]byte{}, idBuf[:]...), value...)
	return appendU64Len(nil, pair)
}

// buildApkSigningBlock assembles the final APK Signing Block from the
// already-serialized v2 and v3 signature scheme blocks.
func buildApkSigningBlock(v2Block, v3Block []byte) []byte {
	var pairs []byte
	pairs = append(pairs, marshalSigningBlockPair(signatureSchemeV2BlockID, v2Block)...)
	pairs = append(pairs, marshalSigningBlockPair(signatureSchemeV3BlockID, v3Block)...)

	// Both size fields carry the same value — see the grounding ledger's
	// resolved Open Question on this.
	sigBlockSize := uint64(len(pairs) + 8 + len(apkSigningBlockMagic))

	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], sigBlockSize)

	var out []byte
	out = append(out, sizeBuf[:]...)
	out = append(out, pairs...)
	out = append(out, sizeBuf[:]...)
	out = append(out, apkSigningBlockMagic...)
	return out
}
