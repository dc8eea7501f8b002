package docstruct

import (
	"errors"

	"github.com/brunobiangulo/docstruct/chunker"
	"github.com/brunobiangulo/docstruct/container"
)

var (
	// ErrContainerCorrupt is returned when the source package cannot be
	// opened at all. This is the only hard failure: no partial result is
	// produced.
	ErrContainerCorrupt = container.ErrCorrupt

	// ErrEntryNotFound is returned when a referenced internal part is
	// missing from the container. Callers treat it as recoverable and
	// route the asset to a fallback.
	ErrEntryNotFound = container.ErrEntryNotFound

	// ErrUnsupportedFormat is returned for source files that are not
	// word-processing packages.
	ErrUnsupportedFormat = errors.New("docstruct: unsupported document format")

	// ErrInvalidStrategy is returned for unknown chunking strategy names.
	ErrInvalidStrategy = chunker.ErrInvalidStrategy

	// ErrAutoUnresolved is returned when strategy "auto" reaches the
	// splitter without a StrategyResolver having mapped it to a concrete
	// strategy first.
	ErrAutoUnresolved = chunker.ErrAutoUnresolved

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docstruct: invalid configuration")
)
