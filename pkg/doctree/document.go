// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doctree models the structured document returned by the docling
// converter. The JSON layout follows the DoclingDocument schema: a flat
// array per item kind (texts, tables, pictures, groups) linked into a tree
// through JSON-pointer references rooted at the body.
package doctree

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SchemaName is the value docling writes into the schema_name field.
const SchemaName = "DoclingDocument"

// Kind tags the variant of an Item.
type Kind string

const (
	KindText    Kind = "text"
	KindTable   Kind = "table"
	KindPicture Kind = "picture"
	KindGroup   Kind = "group"
)

// Label is the layout label docling assigns to a node.
type Label string

const (
	LabelTitle         Label = "title"
	LabelSectionHeader Label = "section_header"
	LabelParagraph     Label = "paragraph"
	LabelText          Label = "text"
	LabelListItem      Label = "list_item"
	LabelCaption       Label = "caption"
	LabelFootnote      Label = "footnote"
	LabelCode          Label = "code"
	LabelFormula       Label = "formula"
	LabelPageHeader    Label = "page_header"
	LabelPageFooter    Label = "page_footer"
	LabelTable         Label = "table"
	LabelPicture       Label = "picture"
	LabelUnspecified   Label = "unspecified"
	LabelList          Label = "list"
)

// Content layers. Only body content is part of the reading order.
const (
	LayerBody      = "body"
	LayerFurniture = "furniture"
)

// ErrUnresolvedRef is returned when a reference points outside the document.
var ErrUnresolvedRef = errors.New("unresolved reference")

// RefItem is a JSON pointer to another node, e.g. {"$ref": "#/texts/3"}.
type RefItem struct {
	Ref string `json:"$ref" yaml:"$ref"`
}

// NodeItem holds the fields shared by every node in the tree.
type NodeItem struct {
	SelfRef      string    `json:"self_ref" yaml:"self_ref"`
	Parent       *RefItem  `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children     []RefItem `json:"children" yaml:"children"`
	ContentLayer string    `json:"content_layer,omitempty" yaml:"content_layer,omitempty"`
	Label        Label     `json:"label" yaml:"label"`
}

func (n *NodeItem) node() *NodeItem { return n }

// Ref returns the node's own reference.
func (n *NodeItem) Ref() string { return n.SelfRef }

// Item is implemented by every node variant: *TextItem, *TableItem,
// *PictureItem and *GroupItem.
type Item interface {
	Kind() Kind
	Ref() string
	node() *NodeItem
}

// GroupItem is a structural container (body, list, section group).
type GroupItem struct {
	NodeItem
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (*GroupItem) Kind() Kind { return KindGroup }

// TextItem carries a text payload. Section headers, titles, list items,
// captions and paragraphs are all text items distinguished by Label.
type TextItem struct {
	NodeItem
	Prov  []ProvenanceItem `json:"prov,omitempty" yaml:"prov,omitempty"`
	Orig  string           `json:"orig" yaml:"orig"`
	Text  string           `json:"text" yaml:"text"`
	Level int              `json:"level,omitempty" yaml:"level,omitempty"`
}

func (*TextItem) Kind() Kind { return KindText }

// IsSectionHeader reports whether the item is a section heading.
func (t *TextItem) IsSectionHeader() bool { return t.Label == LabelSectionHeader }

// Size is a width/height pair in points or pixels.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// BoundingBox locates an element on its page. docling emits PDF-style
// coordinates with a BOTTOMLEFT origin unless CoordOrigin says otherwise.
type BoundingBox struct {
	L           float64 `json:"l" yaml:"l"`
	T           float64 `json:"t" yaml:"t"`
	R           float64 `json:"r" yaml:"r"`
	B           float64 `json:"b" yaml:"b"`
	CoordOrigin string  `json:"coord_origin,omitempty" yaml:"coord_origin,omitempty"`
}

// ProvenanceItem ties an element to a region of a page.
type ProvenanceItem struct {
	PageNo   int         `json:"page_no" yaml:"page_no"`
	BBox     BoundingBox `json:"bbox" yaml:"bbox"`
	Charspan [2]int      `json:"charspan" yaml:"charspan"`
}

// ImageRef is an image embedded as a data URI or pointing at a file.
type ImageRef struct {
	Mimetype string `json:"mimetype" yaml:"mimetype"`
	DPI      int    `json:"dpi" yaml:"dpi"`
	Size     Size   `json:"size" yaml:"size"`
	URI      string `json:"uri" yaml:"uri"`
}

// Page describes one page of the source document.
type Page struct {
	PageNo int       `json:"page_no" yaml:"page_no"`
	Size   Size      `json:"size" yaml:"size"`
	Image  *ImageRef `json:"image,omitempty" yaml:"image,omitempty"`
}

// Document is the root of a converted document.
type Document struct {
	SchemaName string           `json:"schema_name,omitempty" yaml:"schema_name,omitempty"`
	Version    string           `json:"version,omitempty" yaml:"version,omitempty"`
	Name       string           `json:"name" yaml:"name"`
	Body       GroupItem        `json:"body" yaml:"body"`
	Furniture  *GroupItem       `json:"furniture,omitempty" yaml:"furniture,omitempty"`
	Groups     []*GroupItem     `json:"groups" yaml:"groups"`
	Texts      []*TextItem      `json:"texts" yaml:"texts"`
	Tables     []*TableItem     `json:"tables" yaml:"tables"`
	Pictures   []*PictureItem   `json:"pictures" yaml:"pictures"`
	Pages      map[string]*Page `json:"pages,omitempty" yaml:"pages,omitempty"`
}

// Decode reads a DoclingDocument JSON object from r.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if doc.SchemaName != "" && doc.SchemaName != SchemaName {
		return nil, fmt.Errorf("unexpected schema %q, want %q", doc.SchemaName, SchemaName)
	}
	if doc.Body.SelfRef == "" {
		doc.Body.SelfRef = "#/body"
	}
	return &doc, nil
}

// Load decodes the DoclingDocument JSON file at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Resolve returns the node addressed by ref.
func (d *Document) Resolve(ref string) (Item, error) {
	path, ok := strings.CutPrefix(ref, "#/")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, ref)
	}
	switch path {
	case "body":
		return &d.Body, nil
	case "furniture":
		if d.Furniture != nil {
			return d.Furniture, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, ref)
	}

	coll, idxStr, ok := strings.Cut(path, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, ref)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, ref)
	}

	var item Item
	switch coll {
	case "texts":
		if idx < len(d.Texts) {
			item = d.Texts[idx]
		}
	case "tables":
		if idx < len(d.Tables) {
			item = d.Tables[idx]
		}
	case "pictures":
		if idx < len(d.Pictures) {
			item = d.Pictures[idx]
		}
	case "groups":
		if idx < len(d.Groups) {
			item = d.Groups[idx]
		}
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvedRef, ref)
	}
	return item, nil
}

// PictureIndex returns the 1-based position of p among the document's
// pictures, or 0 if p does not belong to the document.
func (d *Document) PictureIndex(p *PictureItem) int {
	for i, pic := range d.Pictures {
		if pic == p {
			return i + 1
		}
	}
	return 0
}
