// Package errs defines the single error taxonomy shared by every stage of
// the package compiler, from XML compilation through signing. Every
// exported entry point in this module returns either nil or an *errs.Error.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies which of the compiler's failure modes occurred. Callers
// that need to branch on failure type should compare against these
// constants with errors.As, not by inspecting the error string.
type Kind int

const (
	// Input validation.
	NotAManifest Kind = iota
	PackageNameTooLong
	StringPoolStringTooLong
	UnknownAndroidInternalAttribute
	IntegerAttributeParsingFailed
	ReferenceAttributeParsingFailed
	ReferenceAttributeLookupFailed
	XmlParsingFailed

	// Internal invariants. Seeing one of these means the compiler produced
	// an inconsistent intermediate state, not that the input was bad.
	TooManyUniqueAndroidInternalAttributes
	ProtoXmlNodeIsNotAnElement

	// Serialization/zip.
	ByteSerialisationFailed
	ZipWritingFailed

	// Signing.
	SignerZipParsingFailed
	SignerPemParsingFailed
	SignerNoKeys
	SignerRsaPrivateKeyParsingFailed
	SignerRsaSigningFailed
	SignerRsaKeySerialisationFailed
	SignerCertificateDecodingFailed
	SignerPKCS7EncodingFailed

	// I/O, CLI only.
	FileIoError
	Cli
)

var names = map[Kind]string{
	NotAManifest:                            "NotAManifest",
	PackageNameTooLong:                       "PackageNameTooLong",
	StringPoolStringTooLong:                  "StringPoolStringTooLong",
	UnknownAndroidInternalAttribute:          "UnknownAndroidInternalAttribute",
	IntegerAttributeParsingFailed:            "IntegerAttributeParsingFailed",
	ReferenceAttributeParsingFailed:          "ReferenceAttributeParsingFailed",
	ReferenceAttributeLookupFailed:           "ReferenceAttributeLookupFailed",
	XmlParsingFailed:                         "XmlParsingFailed",
	TooManyUniqueAndroidInternalAttributes:   "TooManyUniqueAndroidInternalAttributes",
	ProtoXmlNodeIsNotAnElement:               "ProtoXmlNodeIsNotAnElement",
	ByteSerialisationFailed:                  "ByteSerialisationFailed",
	ZipWritingFailed:                         "ZipWritingFailed",
	SignerZipParsingFailed:                   "SignerZipParsingFailed",
	SignerPemParsingFailed:                   "SignerPemParsingFailed",
	SignerNoKeys:                             "SignerNoKeys",
	SignerRsaPrivateKeyParsingFailed:         "SignerRsaPrivateKeyParsingFailed",
	SignerRsaSigningFailed:                   "SignerRsaSigningFailed",
	SignerRsaKeySerialisationFailed:          "SignerRsaKeySerialisationFailed",
	SignerCertificateDecodingFailed:          "SignerCertificateDecodingFailed",
	SignerPKCS7EncodingFailed:                "SignerPKCS7EncodingFailed",
	FileIoError:                              "FileIoError",
	Cli:                                      "Cli",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "UnknownKind"
}

// internalKinds are bugs in this implementation, not bad input. Error
// messages for these say so explicitly, per the taxonomy's policy.
var internalKinds = map[Kind]bool{
	TooManyUniqueAndroidInternalAttributes: true,
	ProtoXmlNodeIsNotAnElement:             true,
}

// Error is the concrete error type returned across the whole pipeline.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	prefix := ""
	if internalKinds[e.Kind] {
		prefix = "internal error: "
	}
	if e.cause != nil {
		if e.msg == "" {
			return fmt.Sprintf("%s%s: %v", prefix, e.Kind, e.cause)
		}
		return fmt.Sprintf("%s%s: %s: %v", prefix, e.Kind, e.msg, e.cause)
	}
	if e.msg == "" {
		return prefix + e.Kind.String()
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error carrying a kind and a human-readable message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying a kind and an underlying cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// Wrapf is Wrap with an additional formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
