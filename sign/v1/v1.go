// Package v1 implements APK Signature Scheme v1 (the "signed JAR file"
// format): a MANIFEST.MF digest listing, a .SF signature file over that
// listing, and a PKCS#7 SignedData block (.RSA) over the .SF file. v1
// coexists with the v2/v3 Signing Block the sign package builds — the
// platform checks that every scheme present in an APK agrees with the
// others, and devices at API 23 and below understand only v1.
package v1

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/google/pack/errs"
	"github.com/google/pack/keys"
	"github.com/google/pack/zipw"
)

var (
	oidSHA256          = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidRSAEncryption   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidPKCS7Data       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidPKCS7SignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
)

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue
}

func nullAlgorithmIdentifier(oid asn1.ObjectIdentifier) algorithmIdentifier {
	return algorithmIdentifier{Algorithm: oid, Parameters: asn1.NullRawValue}
}

type issuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

type signerInfo struct {
	Version                   int
	IssuerAndSerialNumber     issuerAndSerialNumber
	DigestAlgorithm           algorithmIdentifier
	DigestEncryptionAlgorithm algorithmIdentifier
	EncryptedDigest           []byte
}

// encapsulatedContentInfo's Content is always omitted: this is a detached
// signature over bytes (the .SF file) carried separately in the zip, not
// embedded in the PKCS#7 structure itself.
type encapsulatedContentInfo struct {
	ContentType asn1.ObjectIdentifier
}

type signedData struct {
	Version          int
	DigestAlgorithms []algorithmIdentifier `asn1:"set"`
	ContentInfo      encapsulatedContentInfo
	Certificates     asn1.RawValue
	SignerInfos      []signerInfo `asn1:"set"`
}

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue
}

// AddSignatureFiles appends META-INF/MANIFEST.MF, META-INF/ALIAS.SF, and
// META-INF/ALIAS.RSA, computed over the entries already in files. Call
// this only once every other entry has been added — the manifest must
// not end up hashing itself.
func AddSignatureFiles(files []zipw.File, k *keys.Keys) ([]zipw.File, error) {
	manifest := createManifest(files)
	sigFile := createSignatureFile(files, manifest)
	pkcs7, err := createPKCS7File(sigFile, k)
	if err != nil {
		return nil, err
	}

	files = append(files,
		zipw.File{Path: "META-INF/MANIFEST.MF", Data: []byte(manifest)},
		zipw.File{Path: "META-INF/ALIAS.SF", Data: []byte(sigFile)},
		zipw.File{Path: "META-INF/ALIAS.RSA", Data: pkcs7},
	)
	return files, nil
}

func createManifest(files []zipw.File) string {
	out := "Manifest-Version: 1.0\r\n\r\n"
	for _, f := range files {
		out += manifestEntry(f)
	}
	return out
}

func createSignatureFile(files []zipw.File, manifest string) string {
	out := "Signature-Version: 1.0\r\nCreated-By: 1.0 (Android)\r\n"
	out += fmt.Sprintf("SHA-256-Digest-Manifest: %s\r\nX-Android-APK-Signed: 2, 3\r\n\r\n", b64Digest([]byte(manifest)))
	for _, f := range files {
		out += fmt.Sprintf("Name: %s\r\nSHA-256-Digest: %s\r\n\r\n", f.Path, b64Digest([]byte(manifestEntry(f))))
	}
	return out
}

func manifestEntry(f zipw.File) string {
	return fmt.Sprintf("Name: %s\r\nSHA-256-Digest: %s\r\n\r\n", f.Path, b64Digest(f.Data))
}

func b64Digest(data []byte) string {
	digest := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(digest[:])
}

func createPKCS7File(sigFile string, k *keys.Keys) ([]byte, error) {
	digest := sha256.Sum256([]byte(sigFile))
	signature, err := rsa.SignPKCS1v15(rand.Reader, k.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errs.Wrap(errs.SignerRsaSigningFailed, err)
	}

	cert, err := x509.ParseCertificate(k.Certificate)
	if err != nil {
		return nil, errs.Wrap(errs.SignerCertificateDecodingFailed, err)
	}

	info := signerInfo{
		Version: 1,
		IssuerAndSerialNumber: issuerAndSerialNumber{
			Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
			SerialNumber: cert.SerialNumber,
		},
		DigestAlgorithm:           nullAlgorithmIdentifier(oidSHA256),
		DigestEncryptionAlgorithm: nullAlgorithmIdentifier(oidRSAEncryption),
		EncryptedDigest:           signature,
	}

	inner := signedData{
		Version:          1,
		DigestAlgorithms: []algorithmIdentifier{nullAlgorithmIdentifier(oidSHA256)},
		ContentInfo:      encapsulatedContentInfo{ContentType: oidPKCS7Data},
		Certificates:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: k.Certificate},
		SignerInfos:      []signerInfo{info},
	}
	innerDER, err := asn1.Marshal(inner)
	if err != nil {
		return nil, errs.Wrap(errs.SignerPKCS7EncodingFailed, err)
	}

	outer := contentInfo{
		ContentType: oidPKCS7SignedData,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: innerDER},
	}
	outerDER, err := asn1.Marshal(outer)
	if err != nil {
		return nil, errs.Wrap(errs.SignerPKCS7EncodingFailed, err)
	}
	return outerDER, nil
}
