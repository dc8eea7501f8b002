// Package detect determines the real underlying format of a binary payload.
// Declared extensions and ProgIDs on embedded objects are frequently wrong
// or generic, so detection runs a prioritized chain of typed detectors:
// container signature, compound-file stream enumeration, raw signature,
// declared-hint keyword match. Detection never fails: unrecognized content
// degrades to a generic binary extension with the original bytes preserved.
package detect

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/docstruct/container"
)

// Kind classifies the detected payload.
type Kind string

const (
	KindSpreadsheet Kind = "spreadsheet"
	KindWord        Kind = "word"
	KindSlideshow   Kind = "slideshow"
	KindPDF         Kind = "pdf"
	KindArchive     Kind = "archive"
	KindUnknown     Kind = "unknown"
)

// Result is the structured outcome of one detection run.
type Result struct {
	// Extension is the corrected file extension, dot included. Never empty.
	Extension string
	// Kind is the broad payload classification.
	Kind Kind
	// Confidence reflects how the result was obtained: 1.0 for a
	// signature+structure match, lower for hint-only fallbacks.
	Confidence float64
	// Payload is the recovered inner payload when the input was itself a
	// wrapper that had to be unpacked (e.g. a Workbook stream inside a
	// compound container). Nil means the input bytes are the payload.
	Payload []byte
	// Title is the document title recovered from a compound container's
	// summary-information stream, when present.
	Title string
	// SheetNames lists worksheet names for spreadsheet payloads.
	SheetNames []string
	// PageCount is the page count for PDF payloads (0 if unknown).
	PageCount int
	// Method names the detector that produced the result.
	Method string
}

// Bytes returns the payload to persist: the recovered inner payload when
// one was extracted, otherwise the original input.
func (r Result) Bytes(original []byte) []byte {
	if r.Payload != nil {
		return r.Payload
	}
	return original
}

// A detector inspects a byte buffer and either claims it or passes.
type detector interface {
	name() string
	detect(data []byte, hint string) (Result, bool)
}

// chain is the strict priority order. Earlier detectors win.
var chain = []detector{
	zipDetector{},
	cfbfDetector{},
	pdfDetector{},
	hintDetector{},
}

// Detect runs the detector chain over data. The hint is the declared
// extension or ProgID (possibly empty or wrong) and is only consulted by
// the last detector in the chain.
func Detect(data []byte, hint string) Result {
	for _, d := range chain {
		if res, ok := d.detect(data, hint); ok {
			res.Method = d.name()
			return res
		}
	}
	// Unreachable: hintDetector always claims.
	return Result{Extension: ".bin", Kind: KindUnknown, Confidence: 0, Method: "none"}
}

// Save persists the detected payload as {outDir}/{baseID}{ext} and returns
// the written path.
func Save(res Result, original []byte, outDir, baseID string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, baseID+res.Extension)
	if err := os.WriteFile(path, res.Bytes(original), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ---------------------------------------------------------------------------
// ZIP / OPC packages
// ---------------------------------------------------------------------------

var zipSignature = []byte{0x50, 0x4B, 0x03, 0x04} // "PK\x03\x04"

type zipDetector struct{}

func (zipDetector) name() string { return "zip_package" }

func (zipDetector) detect(data []byte, _ string) (Result, bool) {
	if !bytes.HasPrefix(data, zipSignature) {
		return Result{}, false
	}
	pkg, err := container.OpenBytes(data)
	if err != nil {
		// Truncated or self-extracting archive: signature matched but the
		// central directory is unreadable. Preserve the bytes as-is.
		return Result{Extension: ".zip", Kind: KindArchive, Confidence: 0.4}, true
	}

	switch {
	case pkg.Has("xl/workbook.xml"):
		res := Result{Extension: ".xlsx", Kind: KindSpreadsheet, Confidence: 1.0}
		res.SheetNames = sheetNames(data)
		return res, true
	case pkg.Has("word/document.xml"):
		return Result{Extension: ".docx", Kind: KindWord, Confidence: 1.0}, true
	case pkg.Has("ppt/presentation.xml"):
		return Result{Extension: ".pptx", Kind: KindSlideshow, Confidence: 1.0}, true
	}
	return Result{Extension: ".zip", Kind: KindArchive, Confidence: 0.8}, true
}

// sheetNames confirms a workbook payload and pulls its worksheet names.
// Best effort: a workbook excelize cannot open still detects as .xlsx from
// the package structure alone.
func sheetNames(data []byte) []string {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		slog.Debug("detect: excelize rejected workbook payload", "error", err)
		return nil
	}
	defer f.Close()
	return f.GetSheetList()
}

// ---------------------------------------------------------------------------
// Legacy compound binary containers (CFBF)
// ---------------------------------------------------------------------------

var cfbfSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

type cfbfDetector struct{}

func (cfbfDetector) name() string { return "compound_file" }

func (cfbfDetector) detect(data []byte, hint string) (Result, bool) {
	if !bytes.HasPrefix(data, cfbfSignature) {
		return Result{}, false
	}
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		slog.Debug("detect: compound container unreadable", "error", err)
		return Result{Extension: ".bin", Kind: KindUnknown, Confidence: 0.2}, true
	}

	streams := make(map[string][]byte)
	var title string
	for {
		entry, err := doc.Next()
		if err != nil {
			break
		}
		switch entry.Name {
		case "Workbook", "Book", "WordDocument", "PowerPoint Document", "Package":
			streams[entry.Name], _ = io.ReadAll(entry)
		case "\x05SummaryInformation":
			title = summaryTitle(entry)
		}
	}

	// The Workbook stream is the actual BIFF payload: extract it rather
	// than keeping the outer wrapper.
	if wb, ok := streams["Workbook"]; ok {
		return Result{Extension: ".xls", Kind: KindSpreadsheet, Confidence: 1.0, Payload: wb, Title: title}, true
	}
	if wb, ok := streams["Book"]; ok {
		return Result{Extension: ".xls", Kind: KindSpreadsheet, Confidence: 1.0, Payload: wb, Title: title}, true
	}
	if _, ok := streams["WordDocument"]; ok {
		return Result{Extension: ".doc", Kind: KindWord, Confidence: 1.0, Title: title}, true
	}
	if _, ok := streams["PowerPoint Document"]; ok {
		return Result{Extension: ".ppt", Kind: KindSlideshow, Confidence: 1.0, Title: title}, true
	}

	// A compound container can wrap a modern ZIP package in a "Package"
	// stream; re-sniff its bytes.
	if inner, ok := streams["Package"]; ok && len(inner) > 0 {
		res := Detect(inner, hint)
		if res.Payload == nil {
			res.Payload = inner
		}
		if res.Title == "" {
			res.Title = title
		}
		return res, true
	}

	// No recognizable stream: fall back to the declared ProgID keywords.
	if ext, kind, ok := hintFormat(hint); ok {
		return Result{Extension: ext, Kind: kind, Confidence: 0.5, Title: title}, true
	}
	return Result{Extension: ".bin", Kind: KindUnknown, Confidence: 0.2, Title: title}, true
}

// summaryTitle reads the Title property from a summary-information stream.
func summaryTitle(r io.Reader) string {
	props := msoleps.New()
	if err := props.Reset(r); err != nil {
		return ""
	}
	for _, p := range props.Property {
		if p.Name == "Title" {
			return strings.TrimSpace(p.String())
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// PDF
// ---------------------------------------------------------------------------

var pdfSignature = []byte("%PDF-")

type pdfDetector struct{}

func (pdfDetector) name() string { return "pdf_signature" }

func (pdfDetector) detect(data []byte, _ string) (Result, bool) {
	if !bytes.HasPrefix(data, pdfSignature) {
		return Result{}, false
	}
	return Result{Extension: ".pdf", Kind: KindPDF, Confidence: 1.0, PageCount: pdfPages(data)}, true
}

// pdfPages returns the page count of a PDF payload, 0 when unreadable.
// The pdf package can panic on malformed cross-reference tables, so the
// count is computed under recover.
func pdfPages(data []byte) (n int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("detect: pdf page count failed", "panic", r)
			n = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}

// ---------------------------------------------------------------------------
// Declared-hint fallback
// ---------------------------------------------------------------------------

type hintDetector struct{}

func (hintDetector) name() string { return "declared_hint" }

func (hintDetector) detect(_ []byte, hint string) (Result, bool) {
	if ext, kind, ok := hintFormat(hint); ok {
		return Result{Extension: ext, Kind: kind, Confidence: 0.4}, true
	}
	if ext := hintExtension(hint); ext != "" {
		return Result{Extension: ext, Kind: KindUnknown, Confidence: 0.3}, true
	}
	return Result{Extension: ".bin", Kind: KindUnknown, Confidence: 0.1}, true
}

// hintFormat matches the declared hint (extension or ProgID, e.g.
// "Excel.Sheet.12") against known application keywords.
func hintFormat(hint string) (string, Kind, bool) {
	h := strings.ToLower(hint)
	switch {
	case h == "":
		return "", KindUnknown, false
	case strings.Contains(h, "excel"), strings.Contains(h, "xls"):
		return ".xls", KindSpreadsheet, true
	case strings.Contains(h, "powerpoint"), strings.Contains(h, "ppt"):
		return ".ppt", KindSlideshow, true
	// PDF before word: Acrobat ProgIDs ("AcroExch.Document") contain "doc".
	case strings.Contains(h, "pdf"), strings.Contains(h, "acro"):
		return ".pdf", KindPDF, true
	case strings.Contains(h, "word"), strings.Contains(h, "doc"):
		return ".doc", KindWord, true
	}
	return "", KindUnknown, false
}

// hintExtension extracts a plain file extension from the hint, if it has
// one. ProgID-shaped hints ("Vendor.Thing.12") are rejected: their dotted
// segments are capitalized or numeric, not extensions.
func hintExtension(hint string) string {
	hint = strings.TrimSpace(hint)
	ext := filepath.Ext(hint)
	if strings.HasPrefix(hint, ".") && !strings.Contains(hint[1:], ".") {
		ext = hint
	}
	if len(ext) < 3 || len(ext) > 6 {
		return ""
	}
	hasLetter := false
	for _, r := range ext[1:] {
		switch {
		case r >= 'a' && r <= 'z':
			hasLetter = true
		case r >= '0' && r <= '9':
		default:
			return ""
		}
	}
	if !hasLetter {
		return ""
	}
	return ext
}
