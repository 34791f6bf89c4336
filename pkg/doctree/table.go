// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doctree

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidTable is returned when a table cannot be exported to a grid.
var ErrInvalidTable = errors.New("invalid table")

// TableCell is one cell of a table. Offsets are half-open ranges over the
// table grid; spanning cells cover more than one grid slot.
type TableCell struct {
	Text         string `json:"text" yaml:"text"`
	RowSpan      int    `json:"row_span,omitempty" yaml:"row_span,omitempty"`
	ColSpan      int    `json:"col_span,omitempty" yaml:"col_span,omitempty"`
	StartRow     int    `json:"start_row_offset_idx" yaml:"start_row_offset_idx"`
	EndRow       int    `json:"end_row_offset_idx" yaml:"end_row_offset_idx"`
	StartCol     int    `json:"start_col_offset_idx" yaml:"start_col_offset_idx"`
	EndCol       int    `json:"end_col_offset_idx" yaml:"end_col_offset_idx"`
	ColumnHeader bool   `json:"column_header,omitempty" yaml:"column_header,omitempty"`
	RowHeader    bool   `json:"row_header,omitempty" yaml:"row_header,omitempty"`
}

// TableData holds the recognised table structure.
type TableData struct {
	TableCells []TableCell   `json:"table_cells" yaml:"table_cells"`
	NumRows    int           `json:"num_rows" yaml:"num_rows"`
	NumCols    int           `json:"num_cols" yaml:"num_cols"`
	Grid       [][]TableCell `json:"grid,omitempty" yaml:"grid,omitempty"`
}

// TableItem is a table recognised in the document.
type TableItem struct {
	NodeItem
	Prov     []ProvenanceItem `json:"prov,omitempty" yaml:"prov,omitempty"`
	Captions []RefItem        `json:"captions,omitempty" yaml:"captions,omitempty"`
	Data     TableData        `json:"data" yaml:"data"`
}

func (*TableItem) Kind() Kind { return KindTable }

// grid returns the row-major cell grid, building it from the cell list
// when the converter did not ship one.
func (t *TableItem) grid() ([][]TableCell, error) {
	if len(t.Data.Grid) > 0 {
		return t.Data.Grid, nil
	}
	rows, cols := t.Data.NumRows, t.Data.NumCols
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %s has %d rows and %d columns", ErrInvalidTable, t.SelfRef, rows, cols)
	}

	g := make([][]TableCell, rows)
	for i := range g {
		g[i] = make([]TableCell, cols)
		for j := range g[i] {
			g[i][j] = TableCell{StartRow: i, EndRow: i + 1, StartCol: j, EndCol: j + 1}
		}
	}
	for _, c := range t.Data.TableCells {
		if c.StartRow < 0 || c.StartCol < 0 || c.EndRow > rows || c.EndCol > cols ||
			c.StartRow >= c.EndRow || c.StartCol >= c.EndCol {
			return nil, fmt.Errorf("%w: %s cell %q out of bounds [%d:%d, %d:%d]",
				ErrInvalidTable, t.SelfRef, c.Text, c.StartRow, c.EndRow, c.StartCol, c.EndCol)
		}
		for i := c.StartRow; i < c.EndRow; i++ {
			for j := c.StartCol; j < c.EndCol; j++ {
				g[i][j] = c
			}
		}
	}
	return g, nil
}

// ExportGrid flattens the table into column names and data rows. Leading
// rows containing a column header become the column names, joined with "."
// when several header rows stack; without header rows the columns are
// numbered from 0.
func (t *TableItem) ExportGrid() (columns []string, rows [][]string, err error) {
	g, err := t.grid()
	if err != nil {
		return nil, nil, err
	}
	ncols := t.Data.NumCols
	if ncols <= 0 && len(g) > 0 {
		ncols = len(g[0])
	}
	if ncols <= 0 {
		return nil, nil, fmt.Errorf("%w: %s has no columns", ErrInvalidTable, t.SelfRef)
	}
	for i, row := range g {
		if len(row) != ncols {
			return nil, nil, fmt.Errorf("%w: %s row %d has %d cells, want %d", ErrInvalidTable, t.SelfRef, i, len(row), ncols)
		}
	}

	headers := 0
	for _, row := range g {
		if !rowHasHeader(row) {
			break
		}
		headers++
	}

	columns = make([]string, ncols)
	if headers == 0 {
		for j := range columns {
			columns[j] = strconv.Itoa(j)
		}
	} else {
		for i := 0; i < headers; i++ {
			for j, c := range g[i] {
				if columns[j] != "" {
					columns[j] += "."
				}
				columns[j] += c.Text
			}
		}
	}

	rows = make([][]string, 0, len(g)-headers)
	for _, row := range g[headers:] {
		r := make([]string, len(row))
		for j, c := range row {
			r[j] = c.Text
		}
		rows = append(rows, r)
	}
	return columns, rows, nil
}

func rowHasHeader(row []TableCell) bool {
	for _, c := range row {
		if c.ColumnHeader {
			return true
		}
	}
	return false
}
