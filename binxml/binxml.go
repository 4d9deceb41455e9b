// Package binxml compiles source XML (AndroidManifest.xml, and any file
// under res/xml/) into AAPT2's ResChunk-framed binary XML format. It is a
// faithful two-pass compiler: the first pass counts the distinct
// "android:"-namespaced attribute names used anywhere in the document so
// their internal-attribute IDs can be reserved as the leading slots of the
// string pool (lining up with the XmlResourceMap chunk); the second pass
// does the actual streamed compilation.
package binxml

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/google/pack/attrs"
	"github.com/google/pack/errs"
	"github.com/google/pack/reschunk"
	"github.com/google/pack/resource"
	"github.com/google/pack/stringpool"
)

const (
	androidNamespace = "http://schemas.android.com/apk/res/android"
	toolsNamespace   = "http://schemas.android.com/tools"

	androidCompileVersion  = "34"
	androidCompileCodename = "14"

	// androidInternalAttributeMagic is ORed with an attribute's internal id
	// to produce the framework attribute resource id.
	androidInternalAttributeMagic = 0x0101_0000

	// androidUniqueAttrPadding accounts for the synthetic
	// android:compileSdkVersion/compileSdkCodename attributes this compiler
	// injects into every <manifest> element.
	androidUniqueAttrPadding = 2

	uint32MinusOne = 0xFFFFFFFF
)

// ManifestInfo surfaces the facts the orchestrator needs from a compiled
// AndroidManifest.xml. Both fields are the empty string/false when the
// compiled document wasn't a manifest, or didn't declare them.
type ManifestInfo struct {
	PackageName string
	HasPackage  bool
	Label       string
	HasLabel    bool
}

// Compile performs the two-pass compilation described in the package doc,
// returning the XmlFile ResChunk bytes and any manifest-derived facts.
// resources is the already-sorted resource list, consulted by the resource
// id predictor for "@subdir/name" references.
func Compile(xmlBytes []byte, resources []resource.Resource) ([]byte, ManifestInfo, error) {
	uniqueAndroidAttrs, err := countUniqueAndroidAttrs(xmlBytes)
	if err != nil {
		return nil, ManifestInfo{}, err
	}
	uniqueAndroidAttrs += androidUniqueAttrPadding

	c := &compiler{
		resources:          resources,
		strings:            make([]string, uniqueAndroidAttrs),
		stringIDs:          make(map[string]uint32, uniqueAndroidAttrs),
		uniqueAndroidAttrs: uniqueAndroidAttrs,
		seenNamespaces:     make(map[string]bool),
	}
	for i := range c.strings {
		c.strings[i] = "TMP"
	}

	if err := c.walk(xmlBytes); err != nil {
		return nil, ManifestInfo{}, err
	}

	for len(c.xmlResourceMap) < uniqueAndroidAttrs {
		c.xmlResourceMap = append(c.xmlResourceMap, uint32MinusOne)
	}
	resourceMapBytes := make([]byte, 4*len(c.xmlResourceMap))
	for i, v := range c.xmlResourceMap {
		binary.LittleEndian.PutUint32(resourceMapBytes[4*i:4*i+4], v)
	}
	resourceMapChunk, err := reschunk.Frame(reschunk.ChunkXmlResourceMap, nil, resourceMapBytes)
	if err != nil {
		return nil, ManifestInfo{}, err
	}

	poolChunk, err := stringpool.BuildPool(c.strings)
	if err != nil {
		return nil, ManifestInfo{}, err
	}

	payload := append(append(append([]byte{}, poolChunk...), resourceMapChunk...), c.chunks...)
	xmlFile, err := reschunk.Frame(reschunk.ChunkXmlFile, nil, payload)
	if err != nil {
		return nil, ManifestInfo{}, err
	}
	return xmlFile, c.info, nil
}

// countUniqueAndroidAttrs is the compiler's first pass: a shallow scan for
// distinct "android:"-namespaced attribute local names. It must see the
// same document as the second pass for the string pool's reserved slots to
// line up with the XmlResourceMap.
func countUniqueAndroidAttrs(xmlBytes []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	seen := map[string]bool{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errs.Wrap(errs.XmlParsingFailed, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Space == androidNamespace && !seen[a.Name.Local] {
				seen[a.Name.Local] = true
			}
		}
	}
	return len(seen), nil
}

type compiler struct {
	resources          []resource.Resource
	strings            []string
	stringIDs          map[string]uint32
	uniqueAndroidAttrs int
	xmlResourceMap     []uint32
	seenNamespaces     map[string]bool
	nsStack            [][]uint32 // per open element: flat (prefixID, uriID) pairs to close
	chunks             []byte
	info               ManifestInfo
}

func (c *compiler) addOrUseString(s string) uint32 {
	if id, ok := c.stringIDs[s]; ok {
		return id
	}
	id := uint32(len(c.strings))
	c.strings = append(c.strings, s)
	c.stringIDs[s] = id
	return id
}

func (c *compiler) addOrUseAndroidString(s string) (uint32, error) {
	if id, ok := c.stringIDs[s]; ok {
		return id, nil
	}
	next := len(c.xmlResourceMap)
	if next >= c.uniqueAndroidAttrs {
		return 0, errs.Newf(errs.TooManyUniqueAndroidInternalAttributes, "reserved %d slots but saw another unique android: attribute %q", c.uniqueAndroidAttrs, s)
	}
	internalID, err := attrs.GetInternalAttributeID(s)
	if err != nil {
		return 0, err
	}
	c.xmlResourceMap = append(c.xmlResourceMap, androidInternalAttributeMagic|internalID)
	id := uint32(next)
	c.strings[next] = s
	c.stringIDs[s] = id
	return id, nil
}

type xmlAttr struct {
	space string // resolved namespace URI, "" if unprefixed
	local string
	value string
}

func (c *compiler) walk(xmlBytes []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errs.Wrap(errs.XmlParsingFailed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := c.startElement(t); err != nil {
				return err
			}
		case xml.EndElement:
			if err := c.endElement(t); err != nil {
				return err
			}
		}
	}
}

func (c *compiler) startElement(se xml.StartElement) error {
	var opened []uint32
	for _, a := range se.Attr {
		prefix, uri, isNS := namespaceDecl(a)
		if !isNS {
			continue
		}
		if prefix == "" || prefix == "tools" || prefix == "xml" || prefix == "xmlns" {
			continue
		}
		if c.seenNamespaces[prefix] {
			continue
		}
		c.seenNamespaces[prefix] = true
		prefixID := c.addOrUseString(prefix)
		uriID := c.addOrUseString(uri)
		chunk, err := namespaceChunk(true, prefixID, uriID)
		if err != nil {
			return err
		}
		c.chunks = append(c.chunks, chunk...)
		opened = append(opened, prefixID, uriID)
	}
	c.nsStack = append(c.nsStack, opened)

	elemLocal := se.Name.Local
	nameID := c.addOrUseString(elemLocal)
	elemNamespaceID := uint32(uint32MinusOne)
	if se.Name.Space != "" {
		elemNamespaceID = c.addOrUseString(se.Name.Space)
	}

	attrList := make([]xmlAttr, 0, len(se.Attr)+4)
	for _, a := range se.Attr {
		if _, _, isNS := namespaceDecl(a); isNS {
			continue
		}
		if a.Name.Space == toolsNamespace {
			continue
		}
		attrList = append(attrList, xmlAttr{space: a.Name.Space, local: a.Name.Local, value: a.Value})
	}
	if elemLocal == "manifest" {
		attrList = append(attrList,
			xmlAttr{space: androidNamespace, local: "compileSdkVersion", value: androidCompileVersion},
			xmlAttr{space: androidNamespace, local: "compileSdkCodename", value: androidCompileCodename},
			xmlAttr{space: "", local: "platformBuildVersionCode", value: androidCompileVersion},
			xmlAttr{space: "", local: "platformBuildVersionName", value: androidCompileCodename},
		)
	}

	var attrData []byte
	for _, a := range attrList {
		if elemLocal == "manifest" && a.local == "package" && a.space == "" {
			c.info.PackageName = a.value
			c.info.HasPackage = true
		}
		if elemLocal == "application" && a.local == "label" && a.space == androidNamespace {
			c.info.Label = a.value
			c.info.HasLabel = true
		}

		attrType := reschunk.AttrTypeString
		if a.value == "true" || a.value == "false" {
			attrType = reschunk.AttrTypeIntBool
		}
		if a.local == "platformBuildVersionCode" || a.local == "platformBuildVersionName" {
			attrType = reschunk.AttrTypeIntDec
		}
		if len(a.value) > 0 && a.value[0] == '@' {
			attrType = reschunk.AttrTypeReference
		}

		var attrNameID uint32
		var err error
		if a.space == androidNamespace {
			if attrType != reschunk.AttrTypeReference {
				attrType = attrs.TypeByName(a.local)
			}
			attrNameID, err = c.addOrUseAndroidString(a.local)
		} else {
			attrNameID = c.addOrUseString(a.local)
		}
		if err != nil {
			return err
		}

		namespaceID := uint32(uint32MinusOne)
		if a.space != "" {
			namespaceID = c.addOrUseString(a.space)
		}

		var rawValueID uint32 = uint32MinusOne
		if attrType == reschunk.AttrTypeString {
			rawValueID = c.addOrUseString(a.value)
		}

		var data uint32
		switch attrType {
		case reschunk.AttrTypeReference:
			data, err = resource.PredictResourceID(a.value, c.resources)
			if err != nil {
				return err
			}
		case reschunk.AttrTypeString:
			data = rawValueID
		case reschunk.AttrTypeIntDec:
			n, perr := strconv.ParseUint(a.value, 10, 32)
			if perr != nil {
				return errs.Wrapf(errs.IntegerAttributeParsingFailed, perr, "%q", a.value)
			}
			data = uint32(n)
		case reschunk.AttrTypeIntBool:
			if a.value == "true" {
				data = 1
			}
		}

		var entry [20]byte
		binary.LittleEndian.PutUint32(entry[0:4], namespaceID)
		binary.LittleEndian.PutUint32(entry[4:8], attrNameID)
		binary.LittleEndian.PutUint32(entry[8:12], rawValueID)
		binary.LittleEndian.PutUint16(entry[12:14], 8) // typed_value.size
		entry[14] = 0                                  // typed_value.res0
		entry[15] = byte(attrType)
		binary.LittleEndian.PutUint32(entry[16:20], data)
		attrData = append(attrData, entry[:]...)
	}

	var header [20]byte
	binary.LittleEndian.PutUint32(header[0:4], elemNamespaceID)
	binary.LittleEndian.PutUint32(header[4:8], nameID)
	binary.LittleEndian.PutUint16(header[8:10], 0x14) // attribute_start
	binary.LittleEndian.PutUint16(header[10:12], 0x14) // attribute_size
	binary.LittleEndian.PutUint16(header[12:14], uint16(len(attrList)))
	binary.LittleEndian.PutUint16(header[14:16], 0) // id_index
	binary.LittleEndian.PutUint16(header[16:18], 0) // class_index
	binary.LittleEndian.PutUint16(header[18:20], 0) // style_index

	payload := append(header[:], attrData...)
	chunk, err := xmlNodeChunk(reschunk.ChunkXmlTagStart, payload)
	if err != nil {
		return err
	}
	c.chunks = append(c.chunks, chunk...)
	return nil
}

func (c *compiler) endElement(ee xml.EndElement) error {
	nameID := c.stringIDs[ee.Name.Local]
	namespaceID := uint32(uint32MinusOne)
	if ee.Name.Space != "" {
		namespaceID = c.stringIDs[ee.Name.Space]
	}

	var payload [8]byte
	binary.LittleEndian.PutUint32(payload[0:4], namespaceID)
	binary.LittleEndian.PutUint32(payload[4:8], nameID)
	chunk, err := xmlNodeChunk(reschunk.ChunkXmlTagEnd, payload[:])
	if err != nil {
		return err
	}
	c.chunks = append(c.chunks, chunk...)

	n := len(c.nsStack) - 1
	toClose := c.nsStack[n]
	c.nsStack = c.nsStack[:n]
	for i := 0; i < len(toClose); i += 2 {
		nsChunk, err := namespaceChunk(false, toClose[i], toClose[i+1])
		if err != nil {
			return err
		}
		c.chunks = append(c.chunks, nsChunk...)
	}
	return nil
}

// namespaceDecl reports whether a is itself an xmlns declaration (either
// the default namespace or a prefixed one), returning the prefix ("" for
// default) and declared URI.
func namespaceDecl(a xml.Attr) (prefix, uri string, ok bool) {
	if a.Name.Space == "xmlns" {
		return a.Name.Local, a.Value, true
	}
	if a.Name.Space == "" && a.Name.Local == "xmlns" {
		return "", a.Value, true
	}
	return "", "", false
}

// xmlNodeChunk wraps payload (an already-serialized element/end/namespace
// struct) in the XmlNodeChunk envelope (line_number=1, comment=-1) every
// node within an XmlFile carries, then frames it as a ResChunk.
func xmlNodeChunk(chunkType uint16, payload []byte) ([]byte, error) {
	var extra [8]byte
	binary.LittleEndian.PutUint32(extra[0:4], 1)
	binary.LittleEndian.PutUint32(extra[4:8], uint32MinusOne)
	return reschunk.Frame(chunkType, extra[:], payload)
}

func namespaceChunk(start bool, prefixID, uriID uint32) ([]byte, error) {
	chunkType := uint16(reschunk.ChunkXmlNsStart)
	if !start {
		chunkType = reschunk.ChunkXmlNsEnd
	}
	var payload [8]byte
	binary.LittleEndian.PutUint32(payload[0:4], prefixID)
	binary.LittleEndian.PutUint32(payload[4:8], uriID)
	return xmlNodeChunk(chunkType, payload[:])
}
