package attrs_test

import (
	"testing"

	"github.com/google/pack/attrs"
	"github.com/google/pack/errs"
	"github.com/google/pack/reschunk"
)

func TestGetInternalAttributeID(t *testing.T) {
	id, err := attrs.GetInternalAttributeID("versionCode")
	if err != nil {
		t.Fatalf("GetInternalAttributeID: %v", err)
	}
	if id != 0x0108 {
		t.Errorf("versionCode id = 0x%04x, want 0x0108", id)
	}

	_, err = attrs.GetInternalAttributeID("notARealAttribute")
	if !errs.Is(err, errs.UnknownAndroidInternalAttribute) {
		t.Fatalf("expected UnknownAndroidInternalAttribute, got %v", err)
	}
}

func TestTypeByName(t *testing.T) {
	cases := map[string]reschunk.AttrType{
		"versionCode":       reschunk.AttrTypeIntDec,
		"compileSdkVersion": reschunk.AttrTypeIntDec,
		"minSdkVersion":     reschunk.AttrTypeIntDec,
		"value":             reschunk.AttrTypeIntDec,
		"hasCode":           reschunk.AttrTypeIntBool,
		"label":             reschunk.AttrTypeString,
		"icon":              reschunk.AttrTypeString,
	}
	for name, want := range cases {
		if got := attrs.TypeByName(name); got != want {
			t.Errorf("TypeByName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInferFromValue(t *testing.T) {
	cases := []struct {
		value string
		want  reschunk.AttrType
	}{
		{"24", reschunk.AttrTypeIntDec},
		{"true", reschunk.AttrTypeIntBool},
		{"false", reschunk.AttrTypeIntBool},
		{"@drawable/preview", reschunk.AttrTypeReference},
		{"hello", reschunk.AttrTypeString},
		{"", reschunk.AttrTypeString},
	}
	for _, c := range cases {
		if got := attrs.InferFromValue(c.value); got != c.want {
			t.Errorf("InferFromValue(%q) = %v, want %v", c.value, got, c.want)
		}
	}
}
