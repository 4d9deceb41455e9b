// Package protoxml compiles source XML into bundletool's proto-XML tree:
// the AAB counterpart of package binxml's ResChunk-framed binary XML.
// Unlike binxml, the result isn't a self-contained chunk format; it's a
// single protobuf-encoded XmlNode message (aapt2's Resources.proto
// schema), built here directly against the wire format since this module
// has no generated .pb.go bindings to call into.
package protoxml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/google/pack/attrs"
	"github.com/google/pack/errs"
	"github.com/google/pack/reschunk"
	"github.com/google/pack/resource"
)

const (
	androidNamespace = "http://schemas.android.com/apk/res/android"

	androidInternalAttributeMagic = 0x0101_0000
)

// Field numbers below are aapt2's public Resources.proto schema (the
// format bundletool consumes); no .proto file ships in this environment,
// so these are reproduced directly as wire-format constants.
const (
	fieldXmlNodeElement = 1
	fieldXmlNodeText    = 2

	fieldXmlNamespacePrefix = 1
	fieldXmlNamespaceURI    = 2

	fieldXmlElementNamespaceDecl = 1
	fieldXmlElementNamespaceURI  = 2
	fieldXmlElementName          = 3
	fieldXmlElementAttribute     = 4
	fieldXmlElementChild         = 5

	fieldXmlAttributeNamespaceURI = 1
	fieldXmlAttributeName         = 2
	fieldXmlAttributeValue        = 3
	fieldXmlAttributeResourceID   = 5
	fieldXmlAttributeCompiledItem = 6

	fieldItemRef  = 1
	fieldItemPrim = 7

	fieldReferenceType       = 1
	fieldReferenceID         = 2
	fieldReferenceName       = 3
	fieldReferenceTypeFlags  = 5
	referenceTypeReference   = 0

	fieldPrimitiveIntDecimal = 4
	fieldPrimitiveBoolean    = 6
)

// Node is a compiled proto-XML tree node: an Element, or a leaf text node.
type Node struct {
	Element *Element
	Text     string
	IsText   bool
}

// Namespace is an `xmlns:prefix="uri"` declaration attached to the
// element that introduces it (proto-XML, unlike ResChunk XML, doesn't
// emit namespaces as separate sibling nodes).
type Namespace struct {
	Prefix string
	URI    string
}

// Element is a compiled XML element: its own namespace declarations,
// attributes, and children, in document order.
type Element struct {
	NamespaceDeclarations []Namespace
	NamespaceURI          string
	Name                  string
	Attributes            []Attribute
	Children              []Node
}

// Attribute is a compiled XML attribute. CompiledItem is nil unless the
// value is a resource reference or an Android-namespaced attribute whose
// value reads as an integer or boolean.
type Attribute struct {
	NamespaceURI string
	Name         string
	Value        string
	ResourceID   uint32
	CompiledItem *Item
}

// Item is the compiled, typed form of an attribute's value: exactly one
// of Reference or Primitive is set.
type Item struct {
	Reference *Reference
	Primitive *Primitive
}

// Reference is a compiled "@subdir/name" attribute value.
type Reference struct {
	ID        uint32
	Name      string
	TypeFlags uint32
}

// Primitive is a compiled decimal-integer or boolean attribute value.
type Primitive struct {
	IsBoolean bool
	BoolValue bool
	IntValue  int32
}

// Compile parses xmlBytes and returns its proto-XML tree's wire-format
// bytes (a single serialized XmlNode message), alongside the tree itself
// for callers (such as this package's tests) that want to inspect it
// directly.
func Compile(xmlBytes []byte, resources []resource.Resource) ([]byte, *Node, error) {
	root, err := compileTree(xmlBytes, resources)
	if err != nil {
		return nil, nil, err
	}
	return marshalNode(root), root, nil
}

func compileTree(xmlBytes []byte, resources []resource.Resource) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	seenNamespaces := map[string]bool{}

	var root *Node
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.XmlParsingFailed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var decls []Namespace
			for _, a := range t.Attr {
				prefix, uri, isNS := namespaceDecl(a)
				if !isNS {
					continue
				}
				if prefix == "" || prefix == "xml" || prefix == "xmlns" {
					continue
				}
				if seenNamespaces[prefix] {
					continue
				}
				seenNamespaces[prefix] = true
				decls = append(decls, Namespace{Prefix: prefix, URI: uri})
			}

			attributes, err := compileAttributes(t, resources)
			if err != nil {
				return nil, err
			}

			elem := &Element{
				NamespaceDeclarations: decls,
				NamespaceURI:          t.Name.Space,
				Name:                  t.Name.Local,
				Attributes:            attributes,
			}
			node := &Node{Element: elem}

			if root == nil {
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, *node)
			}
			stack = append(stack, elem)

		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	return root, nil
}

func compileAttributes(se xml.StartElement, resources []resource.Resource) ([]Attribute, error) {
	var out []Attribute
	for _, a := range se.Attr {
		if _, _, isNS := namespaceDecl(a); isNS {
			continue
		}

		var resourceID uint32
		var compiled *Item

		if a.Name.Space == androidNamespace {
			switch attrs.InferFromValue(a.Value) {
			case reschunk.AttrTypeIntDec:
				n, err := strconv.ParseInt(a.Value, 10, 32)
				if err != nil {
					return nil, errs.Wrapf(errs.IntegerAttributeParsingFailed, err, "%q", a.Value)
				}
				compiled = &Item{Primitive: &Primitive{IntValue: int32(n)}}
			case reschunk.AttrTypeIntBool:
				compiled = &Item{Primitive: &Primitive{IsBoolean: true, BoolValue: a.Value == "true"}}
			}

			internalID, err := attrs.GetInternalAttributeID(a.Name.Local)
			if err != nil {
				return nil, err
			}
			resourceID = androidInternalAttributeMagic | internalID
		}

		if len(a.Value) > 0 && a.Value[0] == '@' {
			resID, err := resource.PredictResourceID(a.Value, resources)
			if err != nil {
				return nil, err
			}
			compiled = &Item{Reference: &Reference{
				ID:        resID,
				Name:      a.Value[1:],
				TypeFlags: 0xFFFF,
			}}
		}

		out = append(out, Attribute{
			NamespaceURI: a.Name.Space,
			Name:         a.Name.Local,
			Value:        a.Value,
			ResourceID:   resourceID,
			CompiledItem: compiled,
		})
	}
	return out, nil
}

func namespaceDecl(a xml.Attr) (prefix, uri string, ok bool) {
	if a.Name.Space == "xmlns" {
		return a.Name.Local, a.Value, true
	}
	if a.Name.Space == "" && a.Name.Local == "xmlns" {
		return "", a.Value, true
	}
	return "", "", false
}

func marshalNode(n *Node) []byte {
	var b []byte
	if n.IsText {
		b = protowire.AppendTag(b, fieldXmlNodeText, protowire.BytesType)
		b = protowire.AppendString(b, n.Text)
		return b
	}
	elemBytes := marshalElement(n.Element)
	b = protowire.AppendTag(b, fieldXmlNodeElement, protowire.BytesType)
	b = protowire.AppendBytes(b, elemBytes)
	return b
}

func marshalElement(e *Element) []byte {
	var b []byte
	for _, ns := range e.NamespaceDeclarations {
		nsBytes := marshalNamespace(ns)
		b = protowire.AppendTag(b, fieldXmlElementNamespaceDecl, protowire.BytesType)
		b = protowire.AppendBytes(b, nsBytes)
	}
	if e.NamespaceURI != "" {
		b = protowire.AppendTag(b, fieldXmlElementNamespaceURI, protowire.BytesType)
		b = protowire.AppendString(b, e.NamespaceURI)
	}
	b = protowire.AppendTag(b, fieldXmlElementName, protowire.BytesType)
	b = protowire.AppendString(b, e.Name)
	for _, attr := range e.Attributes {
		attrBytes := marshalAttribute(attr)
		b = protowire.AppendTag(b, fieldXmlElementAttribute, protowire.BytesType)
		b = protowire.AppendBytes(b, attrBytes)
	}
	for _, child := range e.Children {
		childBytes := marshalNode(&child)
		b = protowire.AppendTag(b, fieldXmlElementChild, protowire.BytesType)
		b = protowire.AppendBytes(b, childBytes)
	}
	return b
}

func marshalNamespace(ns Namespace) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldXmlNamespacePrefix, protowire.BytesType)
	b = protowire.AppendString(b, ns.Prefix)
	b = protowire.AppendTag(b, fieldXmlNamespaceURI, protowire.BytesType)
	b = protowire.AppendString(b, ns.URI)
	return b
}

func marshalAttribute(a Attribute) []byte {
	var b []byte
	if a.NamespaceURI != "" {
		b = protowire.AppendTag(b, fieldXmlAttributeNamespaceURI, protowire.BytesType)
		b = protowire.AppendString(b, a.NamespaceURI)
	}
	b = protowire.AppendTag(b, fieldXmlAttributeName, protowire.BytesType)
	b = protowire.AppendString(b, a.Name)
	b = protowire.AppendTag(b, fieldXmlAttributeValue, protowire.BytesType)
	b = protowire.AppendString(b, a.Value)
	if a.ResourceID != 0 {
		b = protowire.AppendTag(b, fieldXmlAttributeResourceID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(a.ResourceID))
	}
	if a.CompiledItem != nil {
		itemBytes := marshalItem(a.CompiledItem)
		b = protowire.AppendTag(b, fieldXmlAttributeCompiledItem, protowire.BytesType)
		b = protowire.AppendBytes(b, itemBytes)
	}
	return b
}

func marshalItem(it *Item) []byte {
	var b []byte
	switch {
	case it.Reference != nil:
		refBytes := marshalReference(it.Reference)
		b = protowire.AppendTag(b, fieldItemRef, protowire.BytesType)
		b = protowire.AppendBytes(b, refBytes)
	case it.Primitive != nil:
		primBytes := marshalPrimitive(it.Primitive)
		b = protowire.AppendTag(b, fieldItemPrim, protowire.BytesType)
		b = protowire.AppendBytes(b, primBytes)
	}
	return b
}

func marshalReference(r *Reference) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldReferenceType, protowire.VarintType)
	b = protowire.AppendVarint(b, referenceTypeReference)
	b = protowire.AppendTag(b, fieldReferenceID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.ID))
	b = protowire.AppendTag(b, fieldReferenceName, protowire.BytesType)
	b = protowire.AppendString(b, r.Name)
	b = protowire.AppendTag(b, fieldReferenceTypeFlags, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.TypeFlags))
	return b
}

func marshalPrimitive(p *Primitive) []byte {
	var b []byte
	if p.IsBoolean {
		b = protowire.AppendTag(b, fieldPrimitiveBoolean, protowire.VarintType)
		if p.BoolValue {
			b = protowire.AppendVarint(b, 1)
		} else {
			b = protowire.AppendVarint(b, 0)
		}
		return b
	}
	b = protowire.AppendTag(b, fieldPrimitiveIntDecimal, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(p.IntValue)))
	return b
}
