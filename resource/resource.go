// Package resource holds the in-memory representation of a watch-face
// package's res/ contents: file resources and the string resources
// harvested from values/strings.xml. It also owns the resource-id
// predictor both compilers (binxml and protoxml) call so the two sites can
// never drift out of sync (see xml_file.rs's lookup_resource_id, the
// authoritative version of this function).
package resource

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/pack/errs"
)

// FileResource is any non-string resource file under res/<subdirectory>.
type FileResource struct {
	Subdirectory string
	Name         string
	Contents     []byte
	ResourceID   uint32
}

// Path returns this file's path within an APK/AAB module, e.g.
// "res/drawable/preview.png".
func (f *FileResource) Path() string {
	return fmt.Sprintf("res/%s/%s", f.Subdirectory, f.Name)
}

// Basename returns the file name with its final extension stripped.
func (f *FileResource) Basename() string {
	return stemOf(f.Name)
}

// StringResource is a single <string name="...">value</string> entry
// harvested from values/strings.xml.
type StringResource struct {
	Name       string
	Value      string
	ResourceID uint32
}

// Resource is a tagged union over FileResource and StringResource. Exactly
// one of File/Str is non-nil.
type Resource struct {
	File *FileResource
	Str  *StringResource
}

// NewFile wraps a FileResource as a Resource.
func NewFile(f *FileResource) Resource { return Resource{File: f} }

// NewString wraps a StringResource as a Resource.
func NewString(s *StringResource) Resource { return Resource{Str: s} }

// Subdirectory returns the res/ subdirectory this resource lives under.
// String resources are reported under the pseudo-subdirectory "string",
// even though they physically came from values/strings.xml.
func (r Resource) Subdirectory() string {
	if r.File != nil {
		return r.File.Subdirectory
	}
	return "string"
}

// StringPoolString returns the value contributed to a string pool for this
// resource: the res/ path for files, the literal value for strings.
func (r Resource) StringPoolString() string {
	if r.File != nil {
		return r.File.Path()
	}
	return r.Str.Value
}

// Name returns the resource's name, including extension for files.
func (r Resource) Name() string {
	if r.File != nil {
		return r.File.Name
	}
	return r.Str.Name
}

// Basename returns Name without a trailing extension (a no-op for strings).
func (r Resource) Basename() string {
	if r.File != nil {
		return r.File.Basename()
	}
	return r.Str.Name
}

// ResourceID returns the id assigned during resource-table construction, or
// 0 if the resource hasn't been through one yet.
func (r Resource) ResourceID() uint32 {
	if r.File != nil {
		return r.File.ResourceID
	}
	return r.Str.ResourceID
}

// SetResourceID stores the id assigned during resource-table construction.
func (r Resource) SetResourceID(id uint32) {
	if r.File != nil {
		r.File.ResourceID = id
		return
	}
	r.Str.ResourceID = id
}

// SortBySubdirectory stably sorts resources alphabetically by subdirectory,
// the ordering both the resource-table builder and the id predictor rely
// on.
func SortBySubdirectory(resources []Resource) {
	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].Subdirectory() < resources[j].Subdirectory()
	})
}

const userPackageMagic = 0x7F

// PredictResourceID computes the id a sorted resource list will assign to
// "@subdir/name" without needing a fully-built resource table: both the
// binary-XML compiler and the proto-XML compiler call this single
// implementation, so the predicted ids can never drift from what
// restable/bundle actually assign once the table is built.
func PredictResourceID(reference string, resources []Resource) (uint32, error) {
	if len(reference) == 0 || reference[0] != '@' {
		return 0, errs.Newf(errs.ReferenceAttributeParsingFailed, "%s", reference)
	}
	trimmed := reference[1:]
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 {
		return 0, errs.Newf(errs.ReferenceAttributeParsingFailed, "%s", reference)
	}
	wantSubdir, wantName := parts[0], parts[1]

	var resType uint32
	var resID uint32
	subdir := ""
	for _, res := range resources {
		if res.Subdirectory() != subdir {
			subdir = res.Subdirectory()
			resType++
			resID = 0
		}

		stem := stemOf(res.Name())
		if stem == "" {
			resID++
			continue
		}
		if res.Subdirectory() == wantSubdir && stem == wantName {
			return 0x7F00_0000 | (resType << 16) | resID, nil
		}
		resID++
	}

	return 0, errs.Newf(errs.ReferenceAttributeLookupFailed, "%s", reference)
}

// stemOf strips the final extension only: "foo.v2.png" keeps its "foo.v2"
// stem, the same answer the table builder's Basename gives.
func stemOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// stringsXML mirrors the small slice of values/strings.xml this module
// understands: top-level <string name="...">value</string> entries.
type stringsXML struct {
	XMLName xml.Name       `xml:"resources"`
	Strings []stringsEntry `xml:"string"`
}

type stringsEntry struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// ParseStringsXML parses a values/strings.xml file into one StringResource
// per <string> tag. Unlike a naive streaming walk, this accumulates all
// character data within a <string> tag (mixed Characters events included)
// before producing its Resource, so every tag yields exactly one entry
// regardless of how the XML decoder chunks its text.
func ParseStringsXML(r io.Reader) ([]Resource, error) {
	var parsed stringsXML
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&parsed); err != nil {
		return nil, errs.Wrap(errs.XmlParsingFailed, err)
	}

	out := make([]Resource, 0, len(parsed.Strings))
	for _, entry := range parsed.Strings {
		out = append(out, NewString(&StringResource{
			Name:  entry.Name,
			Value: entry.Value,
		}))
	}
	return out, nil
}
