// Package chunker re-partitions a document's structured content list into
// token-bounded chunks. Boundaries are chosen by a selectable strategy;
// chunk ranges always partition the item list exactly once, with no item
// lost or duplicated.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brunobiangulo/docstruct/parser"
	"github.com/brunobiangulo/docstruct/render"
)

var (
	// ErrInvalidStrategy is returned for unknown strategy names.
	ErrInvalidStrategy = errors.New("chunker: invalid strategy")

	// ErrAutoUnresolved is returned when strategy "auto" reaches Split
	// without having been mapped to a concrete strategy first. The
	// splitter has no selection logic of its own.
	ErrAutoUnresolved = errors.New("chunker: auto strategy must be resolved before splitting")
)

// DefaultMaxTokens is the token budget used when the caller passes 0.
const DefaultMaxTokens = 8000

// continuationSuffix marks chunks produced by the overflow rule.
const continuationSuffix = " (cont.)"

// Strategy selects how chunk boundaries are chosen.
type Strategy struct {
	kind  strategyKind
	level int // heading depth for KindHeading
}

type strategyKind int

const (
	kindNoSplit strategyKind = iota
	kindHeading
	kindFixedToken
	kindAuto
)

// Canonical strategies.
var (
	NoSplit    = Strategy{kind: kindNoSplit}
	FixedToken = Strategy{kind: kindFixedToken}
	Auto       = Strategy{kind: kindAuto}
)

// HeadingLevel returns the strategy that starts a new chunk at every
// heading of depth <= n. n is clamped to 1..5.
func HeadingLevel(n int) Strategy {
	if n < 1 {
		n = 1
	}
	if n > 5 {
		n = 5
	}
	return Strategy{kind: kindHeading, level: n}
}

// ParseStrategy maps a strategy name ("no-split", "heading-level-1" ..
// "heading-level-5", "fixed-token", "auto") to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "no-split":
		return NoSplit, nil
	case "fixed-token":
		return FixedToken, nil
	case "auto":
		return Auto, nil
	}
	if rest, ok := strings.CutPrefix(name, "heading-level-"); ok {
		n, err := strconv.Atoi(rest)
		if err == nil && n >= 1 && n <= 5 {
			return HeadingLevel(n), nil
		}
	}
	return Strategy{}, fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
}

func (s Strategy) String() string {
	switch s.kind {
	case kindNoSplit:
		return "no-split"
	case kindHeading:
		return fmt.Sprintf("heading-level-%d", s.level)
	case kindFixedToken:
		return "fixed-token"
	case kindAuto:
		return "auto"
	}
	return "unknown"
}

// Chunk is one contiguous, token-bounded slice of the content item list.
type Chunk struct {
	ChunkID    int                 `json:"chunk_id"`
	Title      string              `json:"title"`
	Level      int                 `json:"level"`
	Content    string              `json:"content"`
	TokenCount int                 `json:"token_count"`
	StartIndex int                 `json:"start_index"` // inclusive
	EndIndex   int                 `json:"end_index"`   // exclusive
	IsSplit    bool                `json:"is_split"`    // logical section exceeded the budget
	Images     []*parser.Image     `json:"images,omitempty"`
	Tables     []*parser.TableData `json:"tables,omitempty"`
}

// Split partitions items into chunks under the given strategy and token
// budget. The union of chunk [StartIndex, EndIndex) ranges covers the item
// list exactly once. A chunk whose first item alone exceeds the budget is
// emitted oversized: items are the smallest splitting unit.
func Split(items []parser.ContentItem, strategy Strategy, maxTokens int) ([]Chunk, error) {
	if strategy.kind == kindAuto {
		return nil, ErrAutoUnresolved
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if len(items) == 0 {
		return nil, nil
	}

	b := &builder{items: items, maxTokens: maxTokens}
	switch strategy.kind {
	case kindNoSplit:
		b.splitNone()
	case kindHeading:
		b.splitByHeadings(strategy.level)
	case kindFixedToken:
		b.splitByTokens()
	}
	return b.chunks, nil
}

// builder accumulates one chunk at a time over the item list. All state
// is per-Split-call; two runs never share anything.
type builder struct {
	items     []parser.ContentItem
	maxTokens int

	chunks  []Chunk
	start   int      // first item index of the open chunk
	parts   []string // rendered items of the open chunk
	title   string
	level   int
	isSplit bool
}

func (b *builder) splitNone() {
	b.title, b.level = firstHeading(b.items)
	for i := range b.items {
		b.parts = append(b.parts, render.Item(&b.items[i]))
	}
	b.close(len(b.items))
}

func (b *builder) splitByHeadings(maxLevel int) {
	for i := range b.items {
		item := &b.items[i]

		if item.Type == parser.ItemHeading && item.Level <= maxLevel {
			if i > b.start {
				b.close(i)
			}
			b.title = item.Text
			b.level = item.Level
			b.isSplit = false
			b.append(item)
			continue
		}

		if b.wouldOverflow(item) && i > b.start {
			// Budget exceeded before the next qualifying heading: force a
			// continuation chunk for the same logical section.
			b.isSplit = true
			b.close(i)
			b.title = continuationTitle(b.title)
			b.isSplit = true
		}
		b.append(item)
	}
	b.close(len(b.items))
}

func (b *builder) splitByTokens() {
	for i := range b.items {
		item := &b.items[i]
		if b.wouldOverflow(item) && i > b.start {
			b.close(i)
		}
		if item.Type == parser.ItemHeading {
			// Headings never force a boundary here, but they still name
			// the chunks that follow them.
			if len(b.parts) == 0 {
				b.title = item.Text
				b.level = item.Level
			}
		}
		b.append(item)
	}
	b.close(len(b.items))
}

// wouldOverflow reports whether appending item to the open chunk would
// push its rendered content past the budget. The check uses the same
// estimator that final token counts use, so emitted chunks never exceed
// the budget except when a single item does on its own.
func (b *builder) wouldOverflow(item *parser.ContentItem) bool {
	candidate := append(append([]string(nil), b.parts...), render.Item(item))
	return EstimateTokens(strings.Join(candidate, "\n\n")) > b.maxTokens
}

func (b *builder) append(item *parser.ContentItem) {
	b.parts = append(b.parts, render.Item(item))
}

// close emits the open chunk covering [b.start, end) and opens the next
// one at end.
func (b *builder) close(end int) {
	if end <= b.start {
		return
	}
	content := strings.Join(b.parts, "\n\n")
	chunk := Chunk{
		ChunkID:    len(b.chunks) + 1,
		Title:      b.title,
		Level:      b.level,
		Content:    content,
		TokenCount: EstimateTokens(content),
		StartIndex: b.start,
		EndIndex:   end,
		IsSplit:    b.isSplit,
	}
	for i := b.start; i < end; i++ {
		chunk.Images = append(chunk.Images, b.items[i].Images...)
		if b.items[i].Table != nil {
			chunk.Tables = append(chunk.Tables, b.items[i].Table)
		}
	}
	b.chunks = append(b.chunks, chunk)
	b.start = end
	b.parts = b.parts[:0]
}

// continuationTitle suffixes a section title exactly once, however many
// physical chunks the section spills into.
func continuationTitle(title string) string {
	if strings.HasSuffix(title, continuationSuffix) {
		return title
	}
	return title + continuationSuffix
}

// firstHeading returns the first heading's text and level, or defaults.
func firstHeading(items []parser.ContentItem) (string, int) {
	for i := range items {
		if items[i].Type == parser.ItemHeading {
			return items[i].Text, items[i].Level
		}
	}
	return "", 0
}
