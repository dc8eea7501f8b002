package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/brunobiangulo/docstruct/detect"
)

// extractOLEObjects resolves, detects, and persists the embedded-object
// references of one paragraph. Ids are sequential in document order and
// independent of image numbering. The recovered extension always reflects
// the detected payload, not the declared ProgID.
func (w *walker) extractOLEObjects(refs *oleRefs, itemIdx int) []*OLEObject {
	var out []*OLEObject
	for _, rid := range refs.order {
		progID := refs.prog[rid]

		rel, ok := w.rels[rid]
		if !ok {
			slog.Debug("parser: object relationship missing", "rId", rid)
			w.warn("object %s: relationship missing", rid)
			continue
		}
		data, err := w.pkg.ReadEntry(rel.Target)
		if err != nil {
			slog.Debug("parser: object entry missing", "rId", rid, "target", rel.Target)
			w.warn("object %s: entry %s missing", rid, rel.Target)
			continue
		}

		w.nextOLEID++
		id := w.nextOLEID

		res := detect.Detect(data, progID)
		path, err := detect.Save(res, data, w.opts.OLEDir, fmt.Sprintf("%d", id))
		if err != nil {
			slog.Warn("parser: saving object failed", "rId", rid, "error", err)
			w.warn("object %s: save failed: %v", rid, err)
			w.nextOLEID--
			continue
		}
		if res.Kind == detect.KindUnknown {
			w.warn("object %s: format detection inconclusive, kept as %s", rid, res.Extension)
		}

		obj := &OLEObject{
			OLEID:              id,
			Position:           itemIdx,
			Name:               objectName(res, id),
			DeclaredKind:       declaredKind(progID),
			FilePath:           path,
			RecoveredExtension: res.Extension,
		}
		w.oles = append(w.oles, obj)
		out = append(out, obj)
	}
	return out
}

// objectName synthesizes a display name: the compound container's own
// title when it carries one, otherwise a generic name matching the
// recovered extension.
func objectName(res detect.Result, id int) string {
	if res.Title != "" {
		return res.Title + res.Extension
	}
	if len(res.SheetNames) == 1 {
		return res.SheetNames[0] + res.Extension
	}
	return fmt.Sprintf("embedded_object_%d%s", id, res.Extension)
}

// declaredKind classifies the embedding markup's ProgID. This is what the
// authoring tool claimed, which detection frequently contradicts.
func declaredKind(progID string) string {
	p := strings.ToLower(progID)
	switch {
	case p == "":
		return "unknown"
	case strings.Contains(p, "excel"), strings.Contains(p, "sheet"):
		return "spreadsheet"
	// PDF before word: Acrobat ProgIDs ("AcroExch.Document") contain
	// "document".
	case strings.Contains(p, "pdf"), strings.Contains(p, "acro"):
		return "pdf"
	case strings.Contains(p, "word"), strings.Contains(p, "document"):
		return "word"
	case strings.Contains(p, "powerpoint"), strings.Contains(p, "show"), strings.Contains(p, "slide"):
		return "slideshow"
	}
	return "unknown"
}
