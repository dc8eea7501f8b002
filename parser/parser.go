// Package parser walks a word-processing document's body model in original
// order and produces a flat list of structured content items with resolved
// images, embedded objects, links, and tables attached at the positions
// where they actually occur.
package parser

// ItemType classifies one structured content item.
type ItemType string

const (
	ItemHeading   ItemType = "heading"
	ItemParagraph ItemType = "paragraph"
	ItemTable     ItemType = "table"
	ItemImageOnly ItemType = "image_only"
	ItemOLEOnly   ItemType = "ole_only"
)

// LinkKind classifies a hyperlink target.
type LinkKind string

const (
	LinkInternal LinkKind = "internal"
	LinkExternal LinkKind = "external"
	LinkFile     LinkKind = "file"
)

// Link is one hyperlink extracted from a paragraph.
type Link struct {
	Text string   `json:"text"`
	URL  string   `json:"url"`
	Kind LinkKind `json:"kind"`
}

// TableData holds the cell grid of one table.
type TableData struct {
	TableID  int        `json:"table_id"`
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"row_count"`
	ColCount int        `json:"col_count"`
}

// ContentItem is one paragraph or table encountered during the single
// top-to-bottom walk, in document order. Items are immutable once the
// parse result is returned.
type ContentItem struct {
	Type       ItemType     `json:"type"`
	Level      int          `json:"level"` // heading depth, 0 for non-headings
	Text       string       `json:"text"`  // rich-text markup; empty for pure table/asset items
	Links      []Link       `json:"links,omitempty"`
	Images     []*Image     `json:"images,omitempty"`
	OLEObjects []*OLEObject `json:"ole_objects,omitempty"`
	Table      *TableData   `json:"table_data,omitempty"`
}

// Match methods for image position resolution, in strict priority order.
const (
	MatchReferenceID        = "reference_id"
	MatchKeywordFallback    = "keyword_fallback"
	MatchSequentialFallback = "sequential_fallback"
)

// positionUnresolved marks an image that has not been anchored yet. It
// never survives past the fallback chain.
const positionUnresolved = -1

// ImageContext is descriptive metadata about an image's surroundings. It
// never alters the resolved position.
type ImageContext struct {
	Heading  string   `json:"heading,omitempty"` // nearest enclosing heading title
	Previous []string `json:"previous,omitempty"`
	Own      string   `json:"own,omitempty"`
	Next     []string `json:"next,omitempty"`
}

// Image is one resolved embedded raster graphic. One image asset placed
// twice yields two Image records: ids follow first-encountered document
// order, not byte identity.
type Image struct {
	ImageID         int          `json:"image_id"`
	Position        int          `json:"position"` // index into the content item list
	ReferenceID     string       `json:"reference_id,omitempty"`
	FilePath        string       `json:"file_path"`
	Format          string       `json:"format"`
	ByteSize        int          `json:"byte_size"`
	MatchMethod     string       `json:"match_method"`
	MatchConfidence float64      `json:"match_confidence"`
	Context         ImageContext `json:"context"`
}

// OLEObject is one embedded foreign-document reference. RecoveredExtension
// reflects the detected payload format, not the declared one.
type OLEObject struct {
	OLEID              int    `json:"ole_id"`
	Position           int    `json:"position"`
	Name               string `json:"name"`
	DeclaredKind       string `json:"declared_kind"` // spreadsheet/word/slideshow/unknown
	FilePath           string `json:"file_path"`
	RecoveredExtension string `json:"recovered_extension"`
}

// Metadata holds document properties from the package's core-properties part.
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// Result is the full outcome of parsing one document. It is owned by the
// caller; the parser keeps no state between invocations.
type Result struct {
	TextContent string        `json:"text_content"`
	Items       []ContentItem `json:"structured_content"`
	Images      []*Image      `json:"images"`
	Links       []Link        `json:"links"`
	OLEObjects  []*OLEObject  `json:"ole_objects"`
	Tables      []*TableData  `json:"tables"`
	Metadata    Metadata      `json:"metadata"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// Options configures one parse run.
type Options struct {
	// ImageDir is where extracted raster images are written.
	ImageDir string
	// OLEDir is where recovered embedded-object payloads are written.
	OLEDir string
	// ContextWindow is the number of neighbouring paragraphs captured on
	// each side of an image as context. Defaults to 1.
	ContextWindow int
	// MinImageBytes drops images smaller than this size (icons, bullets).
	MinImageBytes int
}
