package parser

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// figureKeywords mark paragraphs that plausibly caption a nearby image.
// Used only by the keyword fallback pass, never by the primary pass.
var figureKeywords = []string{
	"figure", "fig.", "diagram", "chart", "image", "illustration",
	"screenshot", "graph", "photo",
	"图", "圖", "图表", "示意图", "截图",
}

// extractImages resolves and persists the drawing references of one
// paragraph. This is the primary pass of the resolver: a reference id that
// appears in the relationship table anchors the image at the current
// paragraph index with full confidence. Every occurrence is saved as its
// own file; the format legitimately places one asset several times.
func (w *walker) extractImages(refIDs []string, itemIdx int) []*Image {
	var out []*Image
	for _, rid := range refIDs {
		rel, ok := w.rels[rid]
		if !ok {
			// Recoverable: the media file, if present, is picked up by
			// the unreferenced-media sweep and the fallback chain.
			slog.Debug("parser: drawing relationship missing", "rId", rid)
			w.warn("drawing %s: relationship missing", rid)
			continue
		}
		data, err := w.pkg.ReadEntry(rel.Target)
		if err != nil {
			slog.Debug("parser: media entry missing", "rId", rid, "target", rel.Target)
			w.warn("drawing %s: media entry %s missing", rid, rel.Target)
			continue
		}
		if w.opts.MinImageBytes > 0 && len(data) < w.opts.MinImageBytes {
			continue
		}

		w.usedMedia[rel.Target] = true
		img := w.newImage(rel.Target, data)
		if img == nil {
			continue
		}
		img.ReferenceID = rid
		img.Position = itemIdx
		img.MatchMethod = MatchReferenceID
		img.MatchConfidence = 1.0
		w.paraHasImage[itemIdx] = true
		out = append(out, img)
	}
	return out
}

// newImage persists image bytes and creates the record with the next
// sequential id. Position stays unresolved until a pass assigns it.
func (w *walker) newImage(target string, data []byte) *Image {
	w.nextImageID++
	ext := mediaExt(target)
	path, err := saveAsset(w.opts.ImageDir, fmt.Sprintf("%d", w.nextImageID), ext, data)
	if err != nil {
		slog.Warn("parser: saving image failed", "target", target, "error", err)
		w.warn("image %s: save failed: %v", target, err)
		w.nextImageID--
		return nil
	}
	img := &Image{
		ImageID:  w.nextImageID,
		Position: positionUnresolved,
		FilePath: path,
		Format:   strings.TrimPrefix(ext, "."),
		ByteSize: len(data),
	}
	w.images = append(w.images, img)
	return img
}

// sweepUnreferencedMedia creates unresolved image records for media parts
// that no drawing reference claimed: either the markup used an idiom we do
// not parse, or its relationship entry was broken. The fallback chain
// anchors them afterwards.
func (w *walker) sweepUnreferencedMedia() {
	var leftovers []string
	for _, name := range w.pkg.Entries() {
		if !strings.HasPrefix(name, "word/media/") || w.usedMedia[name] {
			continue
		}
		if !isRasterExt(mediaExt(name)) {
			continue
		}
		leftovers = append(leftovers, name)
	}
	sort.Strings(leftovers)

	for _, name := range leftovers {
		data, err := w.pkg.ReadEntry(name)
		if err != nil {
			continue
		}
		if w.opts.MinImageBytes > 0 && len(data) < w.opts.MinImageBytes {
			continue
		}
		w.newImage(name, data)
	}
}

// resolveFallbacks runs the two fallback passes of the position resolver
// state machine: unresolved → keyword match → sequential fallback. Earlier
// assignments are never overridden.
func (w *walker) resolveFallbacks() {
	if len(w.items) == 0 {
		// Degenerate case: assets but no content items. Nothing to anchor
		// to, so drop the unresolved records with a diagnostic.
		var kept []*Image
		for _, img := range w.images {
			if img.Position == positionUnresolved {
				slog.Warn("parser: image dropped, document has no content items", "image_id", img.ImageID)
				w.warn("image %d: no content items to anchor to", img.ImageID)
				continue
			}
			kept = append(kept, img)
		}
		w.images = kept
		return
	}

	// Keyword pass: attach each remaining image to the first paragraph
	// that has no image yet and whose text mentions a figure keyword.
	for _, img := range w.images {
		if img.Position != positionUnresolved {
			continue
		}
		for idx, item := range w.items {
			if w.paraHasImage[idx] || item.Type == ItemTable {
				continue
			}
			if !containsFigureKeyword(item.Text) {
				continue
			}
			img.Position = idx
			img.MatchMethod = MatchKeywordFallback
			img.MatchConfidence = 0.6
			w.paraHasImage[idx] = true
			w.attachImage(img, idx)
			break
		}
	}

	// Terminal pass: whatever is still unresolved goes to the last item.
	last := len(w.items) - 1
	for _, img := range w.images {
		if img.Position != positionUnresolved {
			continue
		}
		img.Position = last
		img.MatchMethod = MatchSequentialFallback
		img.MatchConfidence = 0.3
		w.attachImage(img, last)
		slog.Warn("parser: image anchored by sequential fallback",
			"image_id", img.ImageID, "position", last)
		w.warn("image %d: anchored to last paragraph by sequential fallback", img.ImageID)
	}
}

// attachImage adds a fallback-resolved image to its owning item.
func (w *walker) attachImage(img *Image, idx int) {
	w.items[idx].Images = append(w.items[idx].Images, img)
}

// fillImageContexts records the text surroundings of every image once all
// positions are final. Context is descriptive metadata only.
func (w *walker) fillImageContexts() {
	win := w.opts.ContextWindow
	for _, img := range w.images {
		idx := img.Position
		if idx < 0 || idx >= len(w.items) {
			continue
		}
		ctx := ImageContext{Own: w.items[idx].Text}
		for i := idx - 1; i >= 0 && i >= idx-win; i-- {
			if t := w.items[i].Text; t != "" {
				ctx.Previous = append([]string{t}, ctx.Previous...)
			}
		}
		for i := idx + 1; i < len(w.items) && i <= idx+win; i++ {
			if t := w.items[i].Text; t != "" {
				ctx.Next = append(ctx.Next, t)
			}
		}
		for i := idx; i >= 0; i-- {
			if w.items[i].Type == ItemHeading {
				ctx.Heading = w.items[i].Text
				break
			}
		}
		img.Context = ctx
	}
}

func containsFigureKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range figureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isRasterExt reports whether an extension names a raster format the sweep
// should pick up. Vector metafiles are excluded: they have no stable
// renderable form here.
func isRasterExt(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif", ".webp":
		return true
	}
	return false
}
