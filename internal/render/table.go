// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// PipeTable renders columns and rows as a GitHub-flavoured pipe table.
// Columns whose values are all numeric are right-aligned.
func PipeTable(columns []string, rows [][]string) (string, error) {
	ncols := len(columns)
	header := make([]string, ncols)
	for j, c := range columns {
		header[j] = escapeCell(c)
	}
	body := make([][]string, len(rows))
	for i, row := range rows {
		body[i] = make([]string, ncols)
		for j := 0; j < ncols && j < len(row); j++ {
			body[i][j] = escapeCell(row[j])
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithAlignment(alignments(body, ncols)),
	)
	table.Header(header)
	if err := table.Bulk(body); err != nil {
		return "", fmt.Errorf("adding table rows: %w", err)
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// alignments right-aligns columns holding only numbers and at least one value.
func alignments(body [][]string, ncols int) tw.Alignment {
	align := make(tw.Alignment, ncols)
	for j := range align {
		numeric, seen := true, false
		for _, row := range body {
			if row[j] == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(row[j], 64); err != nil {
				numeric = false
				break
			}
		}
		align[j] = tw.AlignLeft
		if numeric && seen {
			align[j] = tw.AlignRight
		}
	}
	return align
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.TrimSpace(s)
}
