// Package attrs holds the compile-time name→ID table for Android framework
// ("android:"-namespaced) attributes and the two independent type-inference
// rules the compilers use for them.
//
// A real AAPT2 build generates this table (~1,400 entries) from
// android.jar's public.xml at compile time. That tooling isn't available
// here (reading a real android.jar is an explicit Non-goal), so this is a
// small, hand-maintained table covering the attributes a watch-face
// manifest and its resources actually use.
package attrs

import "github.com/google/pack/errs"
import "github.com/google/pack/reschunk"

// internalIDs maps an "android:"-namespaced attribute's local name to its
// internal resource ID (the low 16 bits of 0x0101xxxx). Values taken from
// frameworks/base/core/res/res/values/public.xml.
var internalIDs = map[string]uint32{
	"theme":                   0x0001,
	"label":                   0x0002,
	"icon":                    0x0003,
	"name":                    0x0004,
	"manageSpaceActivity":     0x0005,
	"allowClearUserData":      0x0006,
	"permission":              0x0007,
	"readPermission":          0x0008,
	"writePermission":         0x0009,
	"protectionLevel":         0x000a,
	"permissionGroup":         0x000b,
	"sharedUserId":            0x000c,
	"hasCode":                 0x000d,
	"persistent":              0x000e,
	"enabled":                 0x000f,
	"debuggable":              0x0010,
	"exported":                0x0011,
	"process":                 0x0012,
	"taskAffinity":            0x0013,
	"multiprocess":            0x0014,
	"finishOnTaskLaunch":      0x0015,
	"clearTaskOnLaunch":       0x0016,
	"stateNotNeeded":          0x0017,
	"excludeFromRecents":      0x0018,
	"authorities":             0x0019,
	"syncable":                0x001a,
	"initOrder":               0x001b,
	"grantUriPermissions":     0x001c,
	"priority":                0x001d,
	"launchMode":              0x001e,
	"screenOrientation":       0x001f,
	"configChanges":           0x0020,
	"description":             0x0021,
	"targetPackage":           0x0022,
	"minWidth":                0x0025,
	"minHeight":               0x0026,
	"versionCode":             0x0108,
	"versionName":             0x0109,
	"minSdkVersion":           0x020c,
	"targetSdkVersion":        0x0270,
	"maxSdkVersion":           0x02d1,
	"compileSdkVersion":       0x02fc,
	"compileSdkCodename":      0x02fd,
	"value":                   0x0144,
	"icon_round":              0x0372,
	"roundIcon":               0x0372,
	"fullBackupContent":       0x0401,
	"requestLegacyExternalStorage": 0x04ca,
	"appComponentFactory":     0x0471,
	"supportsRtl":             0x03af,
	"resizeableActivity":      0x0469,
	"networkSecurityConfig":   0x0421,
	"allowBackup":             0x012f,
	"testOnly":                0x0272,
}

// GetInternalAttributeID looks up the internal resource ID for the local
// name of an "android:"-namespaced attribute (e.g. "versionCode").
func GetInternalAttributeID(name string) (uint32, error) {
	if id, ok := internalIDs[name]; ok {
		return id, nil
	}
	return 0, errs.Newf(errs.UnknownAndroidInternalAttribute, "%s", name)
}

// nameTypes are the few internal attributes whose compiled type is
// something other than String, keyed by local name. This mirrors the
// xml_file compiler's name-based typing rule: only references (caught
// earlier, by value) and this short list ever deviate from String.
var nameTypes = map[string]reschunk.AttrType{
	"versionCode":       reschunk.AttrTypeIntDec,
	"compileSdkVersion": reschunk.AttrTypeIntDec,
	"minSdkVersion":     reschunk.AttrTypeIntDec,
	"value":             reschunk.AttrTypeIntDec,
	"hasCode":           reschunk.AttrTypeIntBool,
}

// TypeByName infers an "android:"-namespaced attribute's binary-XML type
// from its local name alone, used by the ResChunk compiler. A bare `@`
// reference always overrides this at the call site.
func TypeByName(localName string) reschunk.AttrType {
	if t, ok := nameTypes[localName]; ok {
		return t
	}
	return reschunk.AttrTypeString
}

// InferFromValue infers an attribute's type purely from its literal string
// value, used by the proto-XML compiler for its optional compiled_item.
// This is a different rule to TypeByName and the two are allowed to
// disagree (e.g. android:name="42" infers as DecimalInteger here, String
// there) because each compiler only consults the rule it was built
// against.
func InferFromValue(value string) reschunk.AttrType {
	if isDecimal(value) {
		return reschunk.AttrTypeIntDec
	}
	if value == "true" || value == "false" {
		return reschunk.AttrTypeIntBool
	}
	if len(value) > 0 && value[0] == '@' {
		return reschunk.AttrTypeReference
	}
	return reschunk.AttrTypeString
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
