package docstruct

import (
	"fmt"
	"path/filepath"
)

// Config holds all configuration for the docstruct engine.
type Config struct {
	// OutputDir is the root directory for extracted assets. Parsed
	// documents write images under OutputDir/extracted_images/<ns>/ and
	// embedded objects under OutputDir/extracted_ole/<ns>/.
	OutputDir string `json:"output_dir"`

	// Strategy selects how chunk boundaries are chosen. One of
	// "no-split", "heading-level-1" .. "heading-level-5", "fixed-token",
	// or "auto" (must be resolved by a StrategyResolver before chunking).
	Strategy string `json:"strategy"`

	// MaxTokens is the token budget per chunk.
	MaxTokens int `json:"max_tokens"`

	// ContextWindow is the number of neighbouring paragraphs captured on
	// each side of an image as descriptive context.
	ContextWindow int `json:"context_window"`

	// MinImageBytes filters out extracted images smaller than this size
	// (icons, list bullets). Zero keeps everything.
	MinImageBytes int `json:"min_image_bytes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OutputDir:     "output",
		Strategy:      "heading-level-2",
		MaxTokens:     8000,
		ContextWindow: 1,
		MinImageBytes: 0,
	}
}

// Validate checks the configuration for values the engine cannot work
// with. Strategy names are validated later, at chunking time.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir must not be empty", ErrInvalidConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must not be negative", ErrInvalidConfig)
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("%w: context_window must not be negative", ErrInvalidConfig)
	}
	if c.MinImageBytes < 0 {
		return fmt.Errorf("%w: min_image_bytes must not be negative", ErrInvalidConfig)
	}
	return nil
}

// imageDir returns the asset directory for images of one document namespace.
func (c *Config) imageDir(ns string) string {
	return filepath.Join(c.OutputDir, "extracted_images", ns)
}

// oleDir returns the asset directory for embedded objects of one namespace.
func (c *Config) oleDir(ns string) string {
	return filepath.Join(c.OutputDir, "extracted_ole", ns)
}
