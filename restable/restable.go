// Package restable builds the APK's resources.arsc: the binary resource
// table (ResChunk type Table, 0x0002) that maps every resource id to its
// string-pool-indexed value. One package (id 0x7F) holds every
// resource; one TableType per res/ subdirectory.
package restable

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/google/pack/errs"
	"github.com/google/pack/reschunk"
	"github.com/google/pack/resource"
	"github.com/google/pack/stringpool"
)

const userPackageMagic = 0x7F

const maxPackageNameCodeUnits = 128

// Build constructs resources.arsc's payload from a sorted resource list
// (resource.SortBySubdirectory must already have been applied so that the
// per-type entry indices this function assigns match what
// resource.PredictResourceID predicted ahead of time). The resource ids
// this function assigns are written back into resources via SetResourceID
// as a side effect.
func Build(packageName string, resources []resource.Resource) ([]byte, error) {
	resTypes := uniqueSubdirectories(resources)

	pathStrings := make([]string, len(resources))
	basenames := make([]string, len(resources))
	for i, res := range resources {
		pathStrings[i] = res.StringPoolString()
		basenames[i] = res.Basename()
	}

	pathStringPool, err := stringpool.BuildPool(pathStrings)
	if err != nil {
		return nil, err
	}
	typesStringPool, err := stringpool.BuildPool(resTypes)
	if err != nil {
		return nil, err
	}
	basenamesStringPool, err := stringpool.BuildPool(basenames)
	if err != nil {
		return nil, err
	}

	resTypeData, err := buildTypeChunks(resTypes, resources)
	if err != nil {
		return nil, err
	}

	paddedName, err := paddedPackageName(packageName)
	if err != nil {
		return nil, err
	}

	const tablePackageHeaderSize = 0x120
	typeStringOffset := uint32(tablePackageHeaderSize)
	keyStringOffset := typeStringOffset + uint32(len(typesStringPool))

	var packageFixed [280]byte
	binary.LittleEndian.PutUint32(packageFixed[0:4], userPackageMagic)
	for i, u := range paddedName {
		binary.LittleEndian.PutUint16(packageFixed[4+2*i:4+2*i+2], u)
	}
	binary.LittleEndian.PutUint32(packageFixed[260:264], typeStringOffset)
	binary.LittleEndian.PutUint32(packageFixed[264:268], 0) // last_public_type
	binary.LittleEndian.PutUint32(packageFixed[268:272], keyStringOffset)
	binary.LittleEndian.PutUint32(packageFixed[272:276], 0) // last_public_key
	binary.LittleEndian.PutUint32(packageFixed[276:280], 0) // type_id_offset

	declaredPackageChunkSize := uint32(tablePackageHeaderSize) +
		uint32(len(typesStringPool)) + uint32(len(basenamesStringPool)) + uint32(len(resTypeData))
	tablePackageChunk, err := reschunk.FrameDeclaredSize(reschunk.ChunkTablePackage, packageFixed[:], nil, declaredPackageChunkSize)
	if err != nil {
		return nil, err
	}

	var payload []byte
	var packageCount [4]byte
	binary.LittleEndian.PutUint32(packageCount[:], 1)
	payload = append(payload, packageCount[:]...)
	payload = append(payload, pathStringPool...)
	payload = append(payload, tablePackageChunk...)
	payload = append(payload, typesStringPool...)
	payload = append(payload, basenamesStringPool...)
	payload = append(payload, resTypeData...)

	return reschunk.Frame(reschunk.ChunkTable, payload[:4], payload[4:])
}

func uniqueSubdirectories(resources []resource.Resource) []string {
	seen := map[string]bool{}
	var out []string
	for _, res := range resources {
		subdir := res.Subdirectory()
		if !seen[subdir] {
			seen[subdir] = true
			out = append(out, subdir)
		}
	}
	return out
}

// buildTypeChunks emits, for each unique res/ subdirectory in first-seen
// order, a TableTypeSpec chunk followed by a TableType chunk and its
// TableEntry array; it also assigns each resource its final resource id.
func buildTypeChunks(resTypes []string, resources []resource.Resource) ([]byte, error) {
	var out []byte
	absoluteEntry := uint32(0)

	for typeIdx, wantSubdir := range resTypes {
		resTypeID := uint32(typeIdx + 1)

		entryCount := uint32(0)
		for _, res := range resources {
			if res.Subdirectory() == wantSubdir {
				entryCount++
			}
		}

		specFixed := make([]byte, 8)
		specFixed[0] = byte(resTypeID)
		specFixed[1] = 0 // res0
		binary.LittleEndian.PutUint16(specFixed[2:4], 0) // types_count
		binary.LittleEndian.PutUint32(specFixed[4:8], entryCount)
		specChunk, err := reschunk.Frame(reschunk.ChunkTableTypeSpec, specFixed, make([]byte, 4*entryCount))
		if err != nil {
			return nil, err
		}
		out = append(out, specChunk...)

		offsets := make([]byte, 4*entryCount)
		entryData := make([]byte, 0, 16*entryCount)
		j := uint32(0)
		for i := range resources {
			if resources[i].Subdirectory() != wantSubdir {
				continue
			}
			binary.LittleEndian.PutUint32(offsets[4*j:4*j+4], 16*j)
			resources[i].SetResourceID(0x7F00_0000 | (resTypeID << 16) | j)

			var entry [16]byte
			binary.LittleEndian.PutUint16(entry[0:2], 8) // size
			binary.LittleEndian.PutUint16(entry[2:4], 0) // flags
			binary.LittleEndian.PutUint32(entry[4:8], absoluteEntry)
			binary.LittleEndian.PutUint16(entry[8:10], 8) // value.size
			entry[10] = 0                                 // value.res0
			entry[11] = byte(reschunk.AttrTypeString)
			binary.LittleEndian.PutUint32(entry[12:16], absoluteEntry)
			entryData = append(entryData, entry[:]...)

			absoluteEntry++
			j++
		}

		const typeFixedSize = 76 // id,flags,reserved,entry_count,entries_start,config
		entriesStart := uint32(8+typeFixedSize) + 4*entryCount

		typeFixed := make([]byte, typeFixedSize)
		typeFixed[0] = byte(resTypeID)
		typeFixed[1] = 0 // flags
		binary.LittleEndian.PutUint16(typeFixed[2:4], 0) // reserved
		binary.LittleEndian.PutUint32(typeFixed[4:8], entryCount)
		binary.LittleEndian.PutUint32(typeFixed[8:12], entriesStart)
		binary.LittleEndian.PutUint32(typeFixed[12:16], 64) // config.size
		// typeFixed[16:76] (config.data) stays zero.

		declaredTypeChunkSize := uint32(8+typeFixedSize) + 4*entryCount + uint32(len(entryData))
		typeChunk, err := reschunk.FrameDeclaredSize(reschunk.ChunkTableType, typeFixed, offsets, declaredTypeChunkSize)
		if err != nil {
			return nil, err
		}
		out = append(out, typeChunk...)
		out = append(out, entryData...)
	}

	return out, nil
}

// paddedPackageName returns packageName encoded as UTF-16 and zero-padded
// to 128 code units, PackageNameTooLong if it doesn't fit.
func paddedPackageName(packageName string) ([]uint16, error) {
	encoded := utf16.Encode([]rune(packageName))
	if len(encoded) > maxPackageNameCodeUnits {
		return nil, errs.Newf(errs.PackageNameTooLong, "%q is %d UTF-16 code units", packageName, len(encoded))
	}
	out := make([]uint16, maxPackageNameCodeUnits)
	copy(out, encoded)
	return out, nil
}
