// Package bundle builds the two bundletool-specific protobuf files every
// Android App Bundle carries at its root: BundleConfig.pb (bundle-level
// metadata) and base/resources.pb (the AAB's resource table, a different
// wire format to the APK path's resources.arsc though it describes the
// same resources). Like package protoxml, messages are hand-encoded
// against the wire format directly; see that package's doc comment for
// why.
package bundle

import (
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/google/pack/errs"
	"github.com/google/pack/resource"
	"github.com/google/pack/stringpool"
)

// bundletoolSpoofVersion is the bundletool release this compiler claims
// to be. Real bundletool checks this for compatibility gating; spoofing a
// recent, known-good version avoids tripping it.
const bundletoolSpoofVersion = "1.15.6"

const toolFingerprintVersion = "1.0.0"

const userPackageID = 0x7F

// Field numbers below are bundletool's public Config.proto (BundleConfig
// message) and aapt2's public Resources.proto (ResourceTable and
// friends). As with package protoxml, no .proto file ships in this
// environment, so these are reproduced directly as wire-format constants.
const (
	fieldBundleConfigBundletool = 1
	fieldBundletoolVersion      = 1

	fieldResourceTableSourcePool       = 1
	fieldResourceTablePackage          = 2
	fieldResourceTableToolFingerprint  = 3

	fieldStringPoolData = 1

	fieldToolFingerprintTool    = 1
	fieldToolFingerprintVersion = 2

	fieldPackagePackageID   = 1
	fieldPackagePackageName = 2
	fieldPackageType        = 3

	fieldPackageIDID = 1

	fieldTypeTypeID = 1
	fieldTypeName   = 2
	fieldTypeEntry  = 3

	fieldTypeIDID = 1

	fieldEntryEntryID     = 1
	fieldEntryName        = 2
	fieldEntryVisibility  = 3
	fieldEntryConfigValue = 6

	fieldEntryIDID = 1

	fieldConfigValueConfig = 1
	fieldConfigValueValue  = 2

	fieldValueSource = 1
	fieldValueItem   = 3

	fieldSourcePathIdx = 2

	fieldItemFile = 5
	fieldItemStr  = 2

	fieldFileReferencePath = 1
	fieldFileReferenceType = 2

	fieldStringValue = 1

	fileReferenceTypeUnknown  = 0
	fileReferenceTypePNG      = 1
	fileReferenceTypeProtoXML = 2
)

// BuildConfig returns the serialized BundleConfig.pb contents.
func BuildConfig() []byte {
	var bundletool []byte
	bundletool = protowire.AppendTag(bundletool, fieldBundletoolVersion, protowire.BytesType)
	bundletool = protowire.AppendString(bundletool, bundletoolSpoofVersion)

	var out []byte
	out = protowire.AppendTag(out, fieldBundleConfigBundletool, protowire.BytesType)
	out = protowire.AppendBytes(out, bundletool)
	return out
}

// BuildResourceTable returns the serialized base/resources.pb contents.
// resources must already be sorted by resource.SortBySubdirectory.
// applicationLabel/hasLabel mirror the manifest's optional
// android:label attribute on <application>; hasLabel false means the
// manifest didn't declare one.
func BuildResourceTable(packageName, applicationLabel string, hasLabel bool, resources []resource.Resource) ([]byte, error) {
	label := "app"
	if hasLabel {
		resolved, err := resolveApplicationLabel(applicationLabel, resources)
		if err != nil {
			return nil, err
		}
		label = resolved
	}

	pathStrings := make([]string, len(resources))
	for i, res := range resources {
		pathStrings[i] = label + "/" + res.StringPoolString()
	}
	sourcePool, err := stringpool.BuildPool(pathStrings)
	if err != nil {
		return nil, err
	}

	types, err := buildTypesTable(resources)
	if err != nil {
		return nil, err
	}

	var pkg []byte
	pkg = protowire.AppendTag(pkg, fieldPackagePackageID, protowire.BytesType)
	pkg = protowire.AppendBytes(pkg, marshalPackageID(userPackageID))
	pkg = protowire.AppendTag(pkg, fieldPackagePackageName, protowire.BytesType)
	pkg = protowire.AppendString(pkg, packageName)
	for _, t := range types {
		pkg = protowire.AppendTag(pkg, fieldPackageType, protowire.BytesType)
		pkg = protowire.AppendBytes(pkg, t)
	}

	var stringPool []byte
	stringPool = protowire.AppendTag(stringPool, fieldStringPoolData, protowire.BytesType)
	stringPool = protowire.AppendBytes(stringPool, sourcePool)

	var fingerprint []byte
	fingerprint = protowire.AppendTag(fingerprint, fieldToolFingerprintTool, protowire.BytesType)
	fingerprint = protowire.AppendString(fingerprint, "pack-aab")
	fingerprint = protowire.AppendTag(fingerprint, fieldToolFingerprintVersion, protowire.BytesType)
	fingerprint = protowire.AppendString(fingerprint, toolFingerprintVersion)

	var out []byte
	out = protowire.AppendTag(out, fieldResourceTableSourcePool, protowire.BytesType)
	out = protowire.AppendBytes(out, stringPool)
	out = protowire.AppendTag(out, fieldResourceTablePackage, protowire.BytesType)
	out = protowire.AppendBytes(out, pkg)
	out = protowire.AppendTag(out, fieldResourceTableToolFingerprint, protowire.BytesType)
	out = protowire.AppendBytes(out, fingerprint)
	return out, nil
}

func marshalPackageID(id uint32) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPackageIDID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))
	return b
}

// buildTypesTable groups the (already-sorted) resources by subdirectory
// into one Type message per subdirectory, each carrying one Entry per
// resource. path_idx is a single counter running across the whole
// resource list (not reset per type); it indexes into the source string
// pool built in path-string order.
func buildTypesTable(resources []resource.Resource) ([][]byte, error) {
	var types [][]byte
	var currentEntries [][]byte
	previousSubdir := ""
	typeID := uint32(0)
	entryID := uint32(0)
	pathIdx := uint32(1)
	currentSubdir := ""
	currentTypeID := uint32(0)

	flush := func() {
		types = append(types, marshalType(currentTypeID, currentSubdir, currentEntries))
	}

	for _, res := range resources {
		if res.Subdirectory() != previousSubdir {
			if previousSubdir != "" {
				flush()
			}
			typeID++
			previousSubdir = res.Subdirectory()
			currentSubdir = res.Subdirectory()
			currentTypeID = typeID
			currentEntries = nil
			entryID = 0
		}

		var value []byte
		var valueField uint32
		if res.File != nil {
			fileType := uint32(fileReferenceTypeUnknown)
			switch res.Subdirectory() {
			case "xml":
				fileType = fileReferenceTypeProtoXML
			case "drawable":
				fileType = fileReferenceTypePNG
			}
			value = marshalFileReference(res.File.Path(), fileType)
			valueField = fieldItemFile
		} else {
			value = marshalProtoString(res.Str.Value)
			valueField = fieldItemStr
		}

		entry := marshalEntry(entryID, res.Basename(), pathIdx, valueField, value)
		currentEntries = append(currentEntries, entry)

		entryID++
		pathIdx++
	}
	if previousSubdir != "" {
		flush()
	}

	return types, nil
}

func marshalType(typeID uint32, name string, entries [][]byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTypeTypeID, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalTypeID(typeID))
	b = protowire.AppendTag(b, fieldTypeName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	for _, e := range entries {
		b = protowire.AppendTag(b, fieldTypeEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b
}

func marshalTypeID(id uint32) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTypeIDID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))
	return b
}

func marshalEntry(entryID uint32, name string, pathIdx uint32, valueField uint32, value []byte) []byte {
	var item []byte
	item = protowire.AppendTag(item, protowire.Number(valueField), protowire.BytesType)
	item = protowire.AppendBytes(item, value)

	var source []byte
	source = protowire.AppendTag(source, fieldSourcePathIdx, protowire.VarintType)
	source = protowire.AppendVarint(source, uint64(pathIdx))

	var val []byte
	val = protowire.AppendTag(val, fieldValueSource, protowire.BytesType)
	val = protowire.AppendBytes(val, source)
	val = protowire.AppendTag(val, fieldValueItem, protowire.BytesType)
	val = protowire.AppendBytes(val, item)

	var configValue []byte
	configValue = protowire.AppendTag(configValue, fieldConfigValueConfig, protowire.BytesType)
	configValue = protowire.AppendBytes(configValue, nil) // empty Configuration
	configValue = protowire.AppendTag(configValue, fieldConfigValueValue, protowire.BytesType)
	configValue = protowire.AppendBytes(configValue, val)

	var b []byte
	b = protowire.AppendTag(b, fieldEntryEntryID, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalEntryID(entryID))
	b = protowire.AppendTag(b, fieldEntryName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	b = protowire.AppendTag(b, fieldEntryVisibility, protowire.BytesType)
	b = protowire.AppendBytes(b, nil) // empty Visibility
	b = protowire.AppendTag(b, fieldEntryConfigValue, protowire.BytesType)
	b = protowire.AppendBytes(b, configValue)
	return b
}

func marshalEntryID(id uint32) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldEntryIDID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))
	return b
}

func marshalFileReference(path string, fileType uint32) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldFileReferencePath, protowire.BytesType)
	b = protowire.AppendString(b, path)
	b = protowire.AppendTag(b, fieldFileReferenceType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(fileType))
	return b
}

func marshalProtoString(value string) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldStringValue, protowire.BytesType)
	b = protowire.AppendString(b, value)
	return b
}

// resolveApplicationLabel dereferences "@string/name" to the string
// resource's literal value; any value not starting with "@" is returned
// as-is without requiring it to actually resolve to anything. A reference
// that names no string resource yields "app", the same label used when the
// manifest declares none; a reference not of the form "@type/name" is a
// ReferenceAttributeParsingFailed.
func resolveApplicationLabel(label string, resources []resource.Resource) (string, error) {
	if !strings.HasPrefix(label, "@") {
		return label, nil
	}

	parts := strings.Split(label, "/")
	if len(parts) != 2 {
		return "", errs.Newf(errs.ReferenceAttributeParsingFailed, "%s", label)
	}
	name := parts[1]

	for _, res := range resources {
		if res.Str != nil && res.Str.Name == name {
			return res.Str.Value, nil
		}
	}
	return "app", nil
}
