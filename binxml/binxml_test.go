package binxml_test

import (
	"testing"

	"github.com/google/pack/binxml"
	"github.com/google/pack/errs"
	"github.com/google/pack/internal/testdecode"
	"github.com/google/pack/reschunk"
	"github.com/google/pack/resource"
)

func iconResources() []resource.Resource {
	rs := []resource.Resource{
		resource.NewFile(&resource.FileResource{Subdirectory: "drawable", Name: "preview.png"}),
	}
	resource.SortBySubdirectory(rs)
	return rs
}

func TestCompileManifestInfo(t *testing.T) {
	manifest := []byte(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.x">
    <application android:label="MyApp" android:icon="@drawable/preview">
        <uses-sdk android:minSdkVersion="24"/>
    </application>
</manifest>`)

	chunk, info, err := binxml.Compile(manifest, iconResources())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !info.HasPackage || info.PackageName != "com.x" {
		t.Fatalf("info = %+v", info)
	}
	if !info.HasLabel || info.Label != "MyApp" {
		t.Fatalf("label info = %+v", info)
	}

	hdr, err := reschunk.DecodeHeaderForTest(chunk)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if hdr.ChunkSize%4 != 0 || hdr.ChunkSize < uint32(hdr.HeaderSize) || hdr.HeaderSize < 8 {
		t.Fatalf("invalid framing: %+v", hdr)
	}
	if int(hdr.ChunkSize) != len(chunk) {
		t.Fatalf("chunk_size %d != actual length %d", hdr.ChunkSize, len(chunk))
	}
}

func TestCompileReferenceAttributeResolvesPredictedID(t *testing.T) {
	manifest := []byte(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.x">
    <application android:icon="@drawable/preview"/>
</manifest>`)

	chunk, _, err := binxml.Compile(manifest, iconResources())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	decoded, err := testdecode.DecodeXmlFile(chunk)
	if err != nil {
		t.Fatalf("DecodeXmlFile: %v", err)
	}

	found := false
	for _, ev := range decoded.Events {
		if ev.Kind != "start" || ev.Name != "application" {
			continue
		}
		for _, a := range ev.Attrs {
			if a.Name == "icon" {
				found = true
				if a.DataType != uint8(reschunk.AttrTypeReference) {
					t.Errorf("icon attr type = %d, want Reference", a.DataType)
				}
				if a.Data != 0x7F010000 {
					t.Errorf("icon attr data = 0x%08X, want 0x7F010000", a.Data)
				}
			}
		}
	}
	if !found {
		t.Fatal("did not find application/icon attribute in decoded output")
	}
}

func TestCompileToolsAttributesDropped(t *testing.T) {
	manifest := []byte(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:tools="http://schemas.android.com/tools" package="com.x">
    <application tools:ignore="AllowBackup"/>
</manifest>`)

	chunk, _, err := binxml.Compile(manifest, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	decoded, err := testdecode.DecodeXmlFile(chunk)
	if err != nil {
		t.Fatalf("DecodeXmlFile: %v", err)
	}

	for _, ev := range decoded.Events {
		if ev.Kind == "nsstart" && ev.Name == "tools" {
			t.Fatal("tools namespace should not be emitted in binary XML")
		}
		for _, a := range ev.Attrs {
			if a.Name == "ignore" {
				t.Fatal("tools:ignore attribute should have been dropped")
			}
		}
	}
}

func TestCompileNamespaceBalance(t *testing.T) {
	manifest := []byte(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.x">
    <application android:hasCode="true">
        <activity android:name=".MainActivity"/>
    </application>
</manifest>`)

	chunk, _, err := binxml.Compile(manifest, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	decoded, err := testdecode.DecodeXmlFile(chunk)
	if err != nil {
		t.Fatalf("DecodeXmlFile: %v", err)
	}

	var depth int
	var nsDepth int
	for _, ev := range decoded.Events {
		switch ev.Kind {
		case "start":
			depth++
		case "end":
			depth--
			if depth < 0 {
				t.Fatal("unbalanced start/end elements")
			}
		case "nsstart":
			nsDepth++
		case "nsend":
			nsDepth--
			if nsDepth < 0 {
				t.Fatal("unbalanced namespace start/end")
			}
		}
	}
	if depth != 0 {
		t.Fatalf("element stack left at depth %d, want 0", depth)
	}
	if nsDepth != 0 {
		t.Fatalf("namespace stack left at depth %d, want 0", nsDepth)
	}
}

func TestCompileManifestInjection(t *testing.T) {
	manifest := []byte(`<?xml version="1.0" encoding="utf-8"?>
<manifest package="com.x"/>`)

	chunk, _, err := binxml.Compile(manifest, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	decoded, err := testdecode.DecodeXmlFile(chunk)
	if err != nil {
		t.Fatalf("DecodeXmlFile: %v", err)
	}

	wantNames := map[string]bool{
		"compileSdkVersion":        false,
		"compileSdkCodename":       false,
		"platformBuildVersionCode": false,
		"platformBuildVersionName": false,
	}
	for _, ev := range decoded.Events {
		if ev.Kind != "start" || ev.Name != "manifest" {
			continue
		}
		for _, a := range ev.Attrs {
			if _, ok := wantNames[a.Name]; ok {
				wantNames[a.Name] = true
			}
		}
	}
	for name, seen := range wantNames {
		if !seen {
			t.Errorf("expected synthetic attribute %q on <manifest>", name)
		}
	}
}

func TestCompileUnknownAndroidAttribute(t *testing.T) {
	manifest := []byte(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.x" android:bogusAttribute="1"/>`)

	_, _, err := binxml.Compile(manifest, nil)
	if !errs.Is(err, errs.UnknownAndroidInternalAttribute) {
		t.Fatalf("expected UnknownAndroidInternalAttribute, got %v", err)
	}
}
