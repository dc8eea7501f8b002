// Package render re-serializes structured content items into positionally
// faithful text: every paragraph, table, image, and embedded object
// appears exactly once, at the slot it was resolved to.
package render

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/docstruct/parser"
)

// Items renders a contiguous range of content items, joined by blank
// lines. Rendering the whole item list and rendering it chunk-by-chunk
// over a partition of ranges produce the same text.
func Items(items []parser.ContentItem) string {
	parts := make([]string, 0, len(items))
	for i := range items {
		if s := Item(&items[i]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Item renders one content item: leveled heading markup, rich paragraph
// text, a table grid, and inline references for the assets anchored here.
func Item(it *parser.ContentItem) string {
	var b strings.Builder

	switch it.Type {
	case parser.ItemHeading:
		b.WriteString(strings.Repeat("#", headingDepth(it.Level)))
		b.WriteString(" ")
		b.WriteString(it.Text)
	case parser.ItemTable:
		b.WriteString(Table(it.Table))
	default:
		b.WriteString(it.Text)
	}

	for _, img := range it.Images {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "![image_%d](%s)", img.ImageID, filePath(img.FilePath))
	}
	for _, obj := range it.OLEObjects {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[embedded: %s](%s)", obj.Name, filePath(obj.FilePath))
	}

	return strings.TrimRight(b.String(), "\n")
}

// Table renders a table as a markdown grid with a header separator row.
func Table(t *parser.TableData) string {
	if t == nil || len(t.Headers) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow(&b, t.Headers, t.ColCount)
	sep := make([]string, t.ColCount)
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep, t.ColCount)
	for _, row := range t.Rows {
		writeRow(&b, row, t.ColCount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string, cols int) {
	if cols < len(cells) {
		cols = len(cells)
	}
	padded := make([]string, cols)
	for i := 0; i < cols; i++ {
		if i < len(cells) {
			padded[i] = strings.ReplaceAll(cells[i], "|", "\\|")
		}
	}
	b.WriteString("| " + strings.Join(padded, " | ") + " |\n")
}

// headingDepth clamps a heading level into markdown's 1..6 range.
func headingDepth(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// filePath normalizes asset paths for inline references.
func filePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
