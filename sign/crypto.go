package sign

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	"github.com/google/pack/errs"
)

// signWithRsa signs the SHA-256 digest of signedData with RSASSA-PKCS1-v1_5,
// the only algorithm id (0x0103) this signer emits.
func signWithRsa(signedData []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(signedData)
	sig, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errs.Wrap(errs.SignerRsaSigningFailed, err)
	}
	return sig, nil
}
