package v1_test

import (
	"bytes"
	"encoding/asn1"
	"strings"
	"testing"

	"github.com/google/pack/keys"
	"github.com/google/pack/sign/v1"
	"github.com/google/pack/zipw"
)

func testKeys(t *testing.T) *keys.Keys {
	t.Helper()
	k, err := keys.GenerateRandomTestingKeys()
	if err != nil {
		t.Fatalf("GenerateRandomTestingKeys: %v", err)
	}
	return k
}

func findFile(files []zipw.File, path string) *zipw.File {
	for i := range files {
		if files[i].Path == path {
			return &files[i]
		}
	}
	return nil
}

func TestAddSignatureFilesAppendsMetaInf(t *testing.T) {
	input := []zipw.File{
		{Path: "AndroidManifest.xml", Data: []byte("<manifest/>")},
		{Path: "resources.arsc", Data: []byte{1, 2, 3}},
	}
	k := testKeys(t)

	out, err := v1.AddSignatureFiles(input, k)
	if err != nil {
		t.Fatalf("AddSignatureFiles: %v", err)
	}
	if len(out) != len(input)+3 {
		t.Fatalf("got %d files, want %d (original %d + 3 signature files)", len(out), len(input)+3, len(input))
	}

	manifest := findFile(out, "META-INF/MANIFEST.MF")
	if manifest == nil {
		t.Fatal("missing META-INF/MANIFEST.MF")
	}
	if !strings.HasPrefix(string(manifest.Data), "Manifest-Version: 1.0\r\n\r\n") {
		t.Errorf("manifest does not start with the expected header: %q", manifest.Data)
	}
	for _, f := range input {
		if !strings.Contains(string(manifest.Data), "Name: "+f.Path+"\r\n") {
			t.Errorf("manifest missing entry for %s", f.Path)
		}
	}

	sf := findFile(out, "META-INF/ALIAS.SF")
	if sf == nil {
		t.Fatal("missing META-INF/ALIAS.SF")
	}
	if !strings.Contains(string(sf.Data), "SHA-256-Digest-Manifest: ") {
		t.Error(".SF file missing manifest digest line")
	}
	if !strings.Contains(string(sf.Data), "X-Android-APK-Signed: 2, 3") {
		t.Error(".SF file missing X-Android-APK-Signed hint for v2/v3 coexistence")
	}

	rsaFile := findFile(out, "META-INF/ALIAS.RSA")
	if rsaFile == nil {
		t.Fatal("missing META-INF/ALIAS.RSA")
	}
	var outer struct {
		ContentType asn1.ObjectIdentifier
		Content     asn1.RawValue `asn1:"explicit,tag:0"`
	}
	if _, err := asn1.Unmarshal(rsaFile.Data, &outer); err != nil {
		t.Fatalf(".RSA file is not valid ASN.1: %v", err)
	}
	if outer.ContentType.String() != "1.2.840.113549.1.7.2" {
		t.Errorf("content type = %v, want PKCS#7 SignedData OID", outer.ContentType)
	}
}

func TestAddSignatureFilesManifestIsIdempotent(t *testing.T) {
	// Computing the manifest twice over the same input file list must
	// produce byte-identical output: reproducible builds depend on the
	// manifest never incorporating anything but the files' own paths and
	// contents.
	input := []zipw.File{
		{Path: "a.txt", Data: []byte("one")},
		{Path: "b.txt", Data: []byte("two")},
	}
	k := testKeys(t)

	first, err := v1.AddSignatureFiles(append([]zipw.File{}, input...), k)
	if err != nil {
		t.Fatalf("AddSignatureFiles (first): %v", err)
	}
	second, err := v1.AddSignatureFiles(append([]zipw.File{}, input...), k)
	if err != nil {
		t.Fatalf("AddSignatureFiles (second): %v", err)
	}

	firstManifest := findFile(first, "META-INF/MANIFEST.MF")
	secondManifest := findFile(second, "META-INF/MANIFEST.MF")
	if string(firstManifest.Data) != string(secondManifest.Data) {
		t.Error("MANIFEST.MF differs between two runs over the same input")
	}
}

func TestAddSignatureFilesCertificateMatchesKey(t *testing.T) {
	input := []zipw.File{{Path: "a.txt", Data: []byte("one")}}
	k := testKeys(t)

	out, err := v1.AddSignatureFiles(input, k)
	if err != nil {
		t.Fatalf("AddSignatureFiles: %v", err)
	}
	rsaFile := findFile(out, "META-INF/ALIAS.RSA")

	// The SignedData structure embeds the signing certificate's raw DER
	// bytes verbatim (see createPKCS7File); rather than re-deriving the
	// exact nested ASN.1 shape, just confirm those bytes are present
	// somewhere in the encoded .RSA file.
	if !bytes.Contains(rsaFile.Data, k.Certificate) {
		t.Error("ALIAS.RSA does not contain the signing key's certificate DER bytes")
	}
}
