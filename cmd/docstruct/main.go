package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/brunobiangulo/docstruct"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	out := flag.String("out", "", "Output directory for extracted assets")
	strategy := flag.String("strategy", "", "Chunking strategy (no-split, heading-level-N, fixed-token)")
	maxTokens := flag.Int("max-tokens", 0, "Token budget per chunk")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// Structured JSON logging on stderr; stdout carries the result.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	cfg := docstruct.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables, then flags.
	if v := os.Getenv("DOCSTRUCT_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("DOCSTRUCT_STRATEGY"); v != "" {
		cfg.Strategy = v
	}
	if *out != "" {
		cfg.OutputDir = *out
	}
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	if *maxTokens > 0 {
		cfg.MaxTokens = *maxTokens
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: docstruct [flags] <document.docx>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	output, err := docstruct.ParseAndChunk(path, cfg, nil)
	if err != nil {
		slog.Error("processing document", "path", path, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		slog.Error("encoding result", "error", err)
		os.Exit(1)
	}
}
