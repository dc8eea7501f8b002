// Package docstruct parses word-processing documents into a faithful,
// reconstructible structured mirror — paragraphs, tables, links, embedded
// raster images, and embedded foreign-format objects, each anchored at its
// true position — and re-partitions the content into token-bounded chunks
// with stable, replayable boundaries.
package docstruct

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/docstruct/chunker"
	"github.com/brunobiangulo/docstruct/parser"
	"github.com/brunobiangulo/docstruct/render"
)

// Re-exported result types. The parse result is owned by the caller; the
// engine holds no state between invocations beyond the per-document output
// namespace.
type (
	ParseResult = parser.Result
	ContentItem = parser.ContentItem
	Image       = parser.Image
	OLEObject   = parser.OLEObject
	Link        = parser.Link
	TableData   = parser.TableData
	Chunk       = chunker.Chunk
	ChunkStats  = chunker.Stats
)

// StrategyResolver maps a parsed document to a concrete chunking strategy
// when the configured strategy is "auto". Implemented by an external
// collaborator; the engine ships none.
type StrategyResolver interface {
	Resolve(items []ContentItem, filename string) (string, error)
}

// ResultSink receives chunks and asset references for persistence or
// indexing. Implemented by an external collaborator.
type ResultSink interface {
	StoreChunks(namespace string, chunks []Chunk, stats ChunkStats) error
}

// Namespace derives the per-document output namespace used to keep asset
// paths of concurrently parsed documents from colliding. Deterministic for
// a given path, so re-parsing overwrites rather than accumulates.
func Namespace(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sum := sha256.Sum256([]byte(path))
	return base + "_" + hex.EncodeToString(sum[:])[:8]
}

// ParseDocument parses the document at path, writing extracted assets
// under cfg.OutputDir within the given namespace (derived from the path
// when empty). Only an unopenable container fails; degraded assets produce
// warnings on the result instead.
func ParseDocument(path string, cfg Config, namespace string) (*ParseResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !supportedExt(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if namespace == "" {
		namespace = Namespace(path)
	}

	res, err := parser.ParseFile(path, parser.Options{
		ImageDir:      cfg.imageDir(namespace),
		OLEDir:        cfg.oleDir(namespace),
		ContextWindow: cfg.ContextWindow,
		MinImageBytes: cfg.MinImageBytes,
	})
	if err != nil {
		return nil, err
	}
	res.TextContent = render.Items(res.Items)

	slog.Info("parsed document",
		"path", path,
		"items", len(res.Items),
		"images", len(res.Images),
		"ole_objects", len(res.OLEObjects),
		"tables", len(res.Tables),
		"warnings", len(res.Warnings))
	return res, nil
}

// ChunkDocument splits an already-parsed document under the named strategy
// and token budget. Strategy "auto" must have been resolved first.
func ChunkDocument(res *ParseResult, strategyName string, maxTokens int) ([]Chunk, ChunkStats, error) {
	strategy, err := chunker.ParseStrategy(strategyName)
	if err != nil {
		return nil, ChunkStats{}, err
	}
	chunks, err := chunker.Split(res.Items, strategy, maxTokens)
	if err != nil {
		return nil, ChunkStats{}, err
	}
	stats := chunker.ComputeStats(chunks, maxTokens)
	return chunks, stats, nil
}

// Output bundles a full parse-and-chunk run.
type Output struct {
	Result *ParseResult `json:"result"`
	Chunks []Chunk      `json:"chunks"`
	Stats  ChunkStats   `json:"stats"`
}

// ParseAndChunk runs the whole pipeline. resolver may be nil unless
// cfg.Strategy is "auto".
func ParseAndChunk(path string, cfg Config, resolver StrategyResolver) (*Output, error) {
	res, err := ParseDocument(path, cfg, "")
	if err != nil {
		return nil, err
	}

	strategyName := cfg.Strategy
	if strategyName == "auto" {
		if resolver == nil {
			return nil, ErrAutoUnresolved
		}
		strategyName, err = resolver.Resolve(res.Items, filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("resolving auto strategy: %w", err)
		}
	}

	chunks, stats, err := ChunkDocument(res, strategyName, cfg.MaxTokens)
	if err != nil {
		return nil, err
	}
	return &Output{Result: res, Chunks: chunks, Stats: stats}, nil
}

func supportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx", ".docm":
		return true
	}
	return false
}
