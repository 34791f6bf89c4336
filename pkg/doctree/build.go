// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doctree

import "fmt"

// New returns an empty document with a body root.
func New(name string) *Document {
	return &Document{
		SchemaName: SchemaName,
		Name:       name,
		Body: GroupItem{
			NodeItem: NodeItem{
				SelfRef:      "#/body",
				ContentLayer: LayerBody,
				Label:        LabelUnspecified,
			},
			Name: "_root_",
		},
		Pages: map[string]*Page{},
	}
}

// parentOf returns the node new children attach to; nil means the body.
func (d *Document) parentOf(parent Item) *NodeItem {
	if parent == nil {
		return &d.Body.NodeItem
	}
	return parent.node()
}

func (d *Document) link(parent Item, child *NodeItem) {
	p := d.parentOf(parent)
	child.Parent = &RefItem{Ref: p.SelfRef}
	if child.ContentLayer == "" {
		child.ContentLayer = LayerBody
	}
	p.Children = append(p.Children, RefItem{Ref: child.SelfRef})
}

// AddGroup appends a group under parent.
func (d *Document) AddGroup(label Label, name string, parent Item) *GroupItem {
	g := &GroupItem{
		NodeItem: NodeItem{SelfRef: fmt.Sprintf("#/groups/%d", len(d.Groups)), Label: label},
		Name:     name,
	}
	d.Groups = append(d.Groups, g)
	d.link(parent, &g.NodeItem)
	return g
}

// AddText appends a text item under parent.
func (d *Document) AddText(label Label, text string, parent Item) *TextItem {
	t := &TextItem{
		NodeItem: NodeItem{SelfRef: fmt.Sprintf("#/texts/%d", len(d.Texts)), Label: label},
		Orig:     text,
		Text:     text,
	}
	d.Texts = append(d.Texts, t)
	d.link(parent, &t.NodeItem)
	return t
}

// AddHeading appends a section header under parent.
func (d *Document) AddHeading(text string, level int, parent Item) *TextItem {
	t := d.AddText(LabelSectionHeader, text, parent)
	t.Level = level
	return t
}

// AddTable appends a table under parent.
func (d *Document) AddTable(data TableData, parent Item) *TableItem {
	t := &TableItem{
		NodeItem: NodeItem{SelfRef: fmt.Sprintf("#/tables/%d", len(d.Tables)), Label: LabelTable},
		Data:     data,
	}
	d.Tables = append(d.Tables, t)
	d.link(parent, &t.NodeItem)
	return t
}

// AddPicture appends a picture under parent. img may be nil.
func (d *Document) AddPicture(img *ImageRef, parent Item) *PictureItem {
	p := &PictureItem{
		NodeItem:    NodeItem{SelfRef: fmt.Sprintf("#/pictures/%d", len(d.Pictures)), Label: LabelPicture},
		Annotations: []Annotation{},
		Image:       img,
	}
	d.Pictures = append(d.Pictures, p)
	d.link(parent, &p.NodeItem)
	return p
}

// AddCaption attaches a caption text to a picture or table.
func (d *Document) AddCaption(target Item, text string) *TextItem {
	t := d.AddText(LabelCaption, text, target)
	switch v := target.(type) {
	case *PictureItem:
		v.Captions = append(v.Captions, RefItem{Ref: t.SelfRef})
	case *TableItem:
		v.Captions = append(v.Captions, RefItem{Ref: t.SelfRef})
	}
	return t
}

// TableFromRows builds table data from string rows. When header is true the
// first row is flagged as column header.
func TableFromRows(rows [][]string, header bool) TableData {
	data := TableData{NumRows: len(rows)}
	for i, row := range rows {
		if len(row) > data.NumCols {
			data.NumCols = len(row)
		}
		for j, text := range row {
			data.TableCells = append(data.TableCells, TableCell{
				Text:         text,
				RowSpan:      1,
				ColSpan:      1,
				StartRow:     i,
				EndRow:       i + 1,
				StartCol:     j,
				EndCol:       j + 1,
				ColumnHeader: header && i == 0,
			})
		}
	}
	return data
}
