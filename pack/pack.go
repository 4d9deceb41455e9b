// Package pack is the public entry point: given an AndroidManifest.xml
// and a res/ resource set, it produces a fully compiled and signed APK or
// AAB, entirely in memory. See pack-api's original doc comment for the
// shape this mirrors — compile, zip, sign, nothing touches disk.
package pack

import (
	"bytes"

	"github.com/google/pack/binxml"
	"github.com/google/pack/bundle"
	"github.com/google/pack/errs"
	"github.com/google/pack/keys"
	"github.com/google/pack/protoxml"
	"github.com/google/pack/resource"
	"github.com/google/pack/restable"
	"github.com/google/pack/sign"
	v1 "github.com/google/pack/sign/v1"
	"github.com/google/pack/zipw"
)

// Package represents an Android package before compilation: a manifest
// and the associated res/ files (values/strings.xml is harvested into
// individual string resources automatically; every other res/ file is
// carried through verbatim, save for the "xml" subdirectory, which is
// compiled to binary XML for an APK and to proto-XML for an AAB).
type Package struct {
	AndroidManifest []byte
	Resources       []*resource.FileResource
}

func (p *Package) expandResources() ([]resource.Resource, error) {
	var resources []resource.Resource
	for _, f := range p.Resources {
		if f.Subdirectory == "values" && f.Name == "strings.xml" {
			parsed, err := resource.ParseStringsXML(bytes.NewReader(f.Contents))
			if err != nil {
				return nil, err
			}
			resources = append(resources, parsed...)
			continue
		}
		resources = append(resources, resource.NewFile(f))
	}
	resource.SortBySubdirectory(resources)
	return resources, nil
}

// CompileAndSignAPK compiles package into a v2/v3-signed APK.
func CompileAndSignAPK(pkg *Package, k *keys.Keys) ([]byte, error) {
	resources, err := pkg.expandResources()
	if err != nil {
		return nil, err
	}

	manifestChunk, info, err := binxml.Compile(pkg.AndroidManifest, resources)
	if err != nil {
		return nil, err
	}
	if !info.HasPackage {
		return nil, errs.New(errs.NotAManifest, "AndroidManifest.xml is missing a package attribute")
	}

	resourceTable, err := restable.Build(info.PackageName, resources)
	if err != nil {
		return nil, err
	}

	files := []zipw.File{
		{Path: "AndroidManifest.xml", Data: manifestChunk},
		{Path: "resources.arsc", Data: resourceTable},
	}
	for _, res := range resources {
		if res.File == nil {
			continue
		}
		data := res.File.Contents
		if res.File.Subdirectory == "xml" {
			compiled, _, err := binxml.Compile(data, resources)
			if err != nil {
				return nil, err
			}
			data = compiled
		}
		files = append(files, zipw.File{Path: res.File.Path(), Data: data})
	}

	zipBuf, err := zipw.Build(files)
	if err != nil {
		return nil, err
	}
	return sign.SignApk(zipBuf, k)
}

// CompileAndSignAAB compiles package into a v1+v2/v3-signed AAB.
//
// AABs carry a v1 (JAR) signature alongside v2/v3 even though modern
// Android devices no longer require it: Google Play's publishing backend
// only understands v1 for bundles uploaded for re-signing.
func CompileAndSignAAB(pkg *Package, k *keys.Keys) ([]byte, error) {
	resources, err := pkg.expandResources()
	if err != nil {
		return nil, err
	}

	_, info, err := binxml.Compile(pkg.AndroidManifest, resources)
	if err != nil {
		return nil, err
	}
	if !info.HasPackage {
		return nil, errs.New(errs.NotAManifest, "AndroidManifest.xml is missing a package attribute")
	}

	bundleConfig := bundle.BuildConfig()
	resourceTable, err := bundle.BuildResourceTable(info.PackageName, info.Label, info.HasLabel, resources)
	if err != nil {
		return nil, err
	}
	manifestProtoXML, _, err := protoxml.Compile(pkg.AndroidManifest, resources)
	if err != nil {
		return nil, err
	}

	files := []zipw.File{
		{Path: "BundleConfig.pb", Data: bundleConfig},
		{Path: "base/resources.pb", Data: resourceTable},
		{Path: "base/manifest/AndroidManifest.xml", Data: manifestProtoXML},
	}
	for _, res := range resources {
		if res.File == nil {
			continue
		}
		data := res.File.Contents
		if res.File.Subdirectory == "xml" {
			compiled, _, err := protoxml.Compile(data, resources)
			if err != nil {
				return nil, err
			}
			data = compiled
		}
		files = append(files, zipw.File{Path: "base/" + res.File.Path(), Data: data})
	}

	files, err = v1.AddSignatureFiles(files, k)
	if err != nil {
		return nil, err
	}

	zipBuf, err := zipw.Build(files)
	if err != nil {
		return nil, err
	}
	return sign.SignApk(zipBuf, k)
}
