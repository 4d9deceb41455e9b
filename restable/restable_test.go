package restable_test

import (
	"testing"

	"github.com/google/pack/errs"
	"github.com/google/pack/reschunk"
	"github.com/google/pack/resource"
	"github.com/google/pack/restable"
)

func sampleResources() []resource.Resource {
	rs := []resource.Resource{
		resource.NewFile(&resource.FileResource{Subdirectory: "drawable", Name: "preview.png"}),
		resource.NewFile(&resource.FileResource{Subdirectory: "drawable", Name: "icon.png"}),
		resource.NewString(&resource.StringResource{Name: "app_name", Value: "MyApp"}),
	}
	resource.SortBySubdirectory(rs)
	return rs
}

func TestBuildFramesTopLevelTableChunk(t *testing.T) {
	data, err := restable.Build("com.x", sampleResources())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	hdr, err := reschunk.DecodeHeaderForTest(data)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if hdr.ChunkType != reschunk.ChunkTable {
		t.Errorf("chunk type = 0x%04x, want ChunkTable", hdr.ChunkType)
	}
	if hdr.HeaderSize != 12 { // 8 common + 4 package_count
		t.Errorf("header size = %d, want 12", hdr.HeaderSize)
	}
	if int(hdr.ChunkSize) != len(data) {
		t.Errorf("chunk_size %d != len(data) %d", hdr.ChunkSize, len(data))
	}
	if hdr.ChunkSize%4 != 0 {
		t.Errorf("chunk_size %d not 4-byte aligned", hdr.ChunkSize)
	}
}

func TestBuildAssignsResourceIDsBySubdirectory(t *testing.T) {
	resources := sampleResources()
	if _, err := restable.Build("com.x", resources); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// drawable sorts before "string" alphabetically, so drawable is type 1,
	// string is type 2; within a type, entries are numbered in the
	// resources' existing (already-subdirectory-sorted) order.
	want := []uint32{0x7F010000, 0x7F010001, 0x7F020000}
	for i, res := range resources {
		if got := res.ResourceID(); got != want[i] {
			t.Errorf("resources[%d].ResourceID() = 0x%08X, want 0x%08X", i, got, want[i])
		}
	}
}

func TestBuildPackageNameTooLong(t *testing.T) {
	longName := make([]byte, 300)
	for i := range longName {
		longName[i] = 'a'
	}
	_, err := restable.Build(string(longName), nil)
	if !errs.Is(err, errs.PackageNameTooLong) {
		t.Fatalf("expected PackageNameTooLong, got %v", err)
	}
}

func TestBuildEmptyResourceList(t *testing.T) {
	data, err := restable.Build("com.x", nil)
	if err != nil {
		t.Fatalf("Build with no resources: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a non-empty table even with no resources")
	}
}
