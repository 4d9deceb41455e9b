// Package keys loads or generates the RSA key pair and X.509 certificate
// used to sign APKs and AABs.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/google/pack/errs"
)

// Keys holds the certificate and RSA private key used for signing.
type Keys struct {
	// Certificate is the X.509 signing certificate, ASN.1 DER form.
	Certificate []byte
	PublicKey   *rsa.PublicKey
	PrivateKey  *rsa.PrivateKey
}

// FromCombinedPEM parses a "combined" PEM file: one file with both a
// CERTIFICATE block and a PRIVATE KEY (PKCS#8) block concatenated as one
// string.
func FromCombinedPEM(combined string) (*Keys, error) {
	var certDER, keyDER []byte
	rest := []byte(combined)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			certDER = block.Bytes
		case "PRIVATE KEY":
			keyDER = block.Bytes
		}
	}
	if certDER == nil || keyDER == nil {
		return nil, errs.New(errs.SignerNoKeys, "combined PEM is missing a CERTIFICATE or PRIVATE KEY block")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return nil, errs.Wrap(errs.SignerRsaPrivateKeyParsingFailed, err)
	}
	privateKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errs.New(errs.SignerRsaPrivateKeyParsingFailed, "PKCS#8 private key is not RSA")
	}

	if _, err := x509.ParseCertificate(certDER); err != nil {
		return nil, errs.Wrap(errs.SignerCertificateDecodingFailed, err)
	}

	return &Keys{
		Certificate: certDER,
		PublicKey:   &privateKey.PublicKey,
		PrivateKey:  privateKey,
	}, nil
}

// GenerateRandomTestingKeys produces a throwaway, self-signed RSA/X.509
// identity. Fine for local installs, since you're both the developer and
// the verifier; Play Store uploads can layer Google-managed re-signing on
// top of it regardless. Never reuse one across builds you intend to
// update in place — Android treats a differently-signed APK as a
// different app and refuses the update.
func GenerateRandomTestingKeys() (*Keys, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errs.Wrap(errs.SignerRsaPrivateKeyParsingFailed, err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errs.Wrap(errs.SignerCertificateDecodingFailed, err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "pack"},
		NotBefore:    time.Now().Add(-24 * time.Hour),
		NotAfter:     time.Now().AddDate(30, 0, 0),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, errs.Wrap(errs.SignerCertificateDecodingFailed, err)
	}

	return &Keys{
		Certificate: certDER,
		PublicKey:   &privateKey.PublicKey,
		PrivateKey:  privateKey,
	}, nil
}

// PublicKeyDER returns the RSA public key as a SubjectPublicKeyInfo,
// ASN.1 DER form — the format both the v1 JAR signature and the v2/v3
// scheme blocks embed.
func (k *Keys) PublicKeyDER() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(k.PublicKey)
	if err != nil {
		return nil, errs.Wrap(errs.SignerRsaKeySerialisationFailed, err)
	}
	return der, nil
}
