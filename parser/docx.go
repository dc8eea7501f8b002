package parser

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/brunobiangulo/docstruct/container"
)

const documentPart = "word/document.xml"

// ParseFile opens the package at path and runs the single top-to-bottom
// walk of its body. It is the only entry point; the returned Result is
// fully resolved (no image leaves with an unresolved position).
func ParseFile(name string, opts Options) (*Result, error) {
	pkg, err := container.Open(name)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()
	return Parse(pkg, opts)
}

// Parse walks an already-opened package.
func Parse(pkg *container.Package, opts Options) (*Result, error) {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 1
	}

	data, err := pkg.ReadEntry(documentPart)
	if err != nil {
		return nil, fmt.Errorf("%w: no word/document.xml", container.ErrCorrupt)
	}

	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", container.ErrCorrupt, err)
	}

	w := &walker{
		pkg:          pkg,
		opts:         opts,
		usedMedia:    make(map[string]bool),
		paraHasImage: make(map[int]bool),
	}

	// A missing relationship table is recoverable: assets degrade to the
	// fallback chain, text and tables still parse.
	w.rels, err = pkg.Relationships(documentPart)
	if err != nil {
		slog.Warn("parser: relationship table unavailable", "error", err)
		w.warn("relationship table unavailable: %v", err)
		w.rels = map[string]container.Relationship{}
	}

	for _, el := range doc.Body.Elements {
		switch {
		case el.Para != nil:
			w.walkParagraph(el.Para)
		case el.Table != nil:
			w.walkTable(el.Table)
		}
	}

	w.sweepUnreferencedMedia()
	w.resolveFallbacks()
	w.fillImageContexts()

	res := &Result{
		Items:      w.items,
		Images:     w.images,
		Links:      w.links,
		OLEObjects: w.oles,
		Tables:     w.tables,
		Metadata:   readMetadata(pkg),
		Warnings:   w.warnings,
	}
	return res, nil
}

// walker holds the per-parse-run state: the item list under construction
// and the sequential id counters. One walker per parse run keeps runs
// fully isolated from each other.
type walker struct {
	pkg  *container.Package
	rels map[string]container.Relationship
	opts Options

	items    []ContentItem
	images   []*Image
	oles     []*OLEObject
	links    []Link
	tables   []*TableData
	warnings []string

	nextImageID int
	nextOLEID   int
	nextTableID int

	usedMedia    map[string]bool
	paraHasImage map[int]bool
}

func (w *walker) warn(format string, args ...any) {
	w.warnings = append(w.warnings, fmt.Sprintf(format, args...))
}

// walkParagraph converts one w:p into at most one content item, extracting
// rich text, links, images, and embedded objects from its runs. The asset
// extraction happens here, inline, so item positions and asset positions
// stay consistent without a second pass.
func (w *walker) walkParagraph(p *xmlPara) {
	itemIdx := len(w.items)

	var text strings.Builder
	var links []Link
	var imageRefs []string
	oleRefs := newOLERefs()

	for _, child := range p.Children {
		switch {
		case child.Run != nil:
			r := child.Run
			text.WriteString(runMarkup(r))
			imageRefs = append(imageRefs, r.imageRefIDs()...)
			r.collectOLERefs(oleRefs)
		case child.Link != nil:
			link, linkText := w.resolveHyperlink(child.Link)
			text.WriteString(linkText)
			if link != nil {
				links = append(links, *link)
			}
		}
	}

	images := w.extractImages(imageRefs, itemIdx)
	oles := w.extractOLEObjects(oleRefs, itemIdx)

	content := strings.TrimSpace(text.String())
	level := headingLevel(p.style())

	var itemType ItemType
	switch {
	case content != "" && level > 0:
		itemType = ItemHeading
	case content != "":
		itemType = ItemParagraph
		level = 0
	case len(images) > 0:
		itemType = ItemImageOnly
		level = 0
	case len(oles) > 0:
		itemType = ItemOLEOnly
		level = 0
	default:
		// Empty paragraph with no assets: occupies no item slot.
		return
	}

	w.links = append(w.links, links...)
	w.items = append(w.items, ContentItem{
		Type:       itemType,
		Level:      level,
		Text:       content,
		Links:      links,
		Images:     images,
		OLEObjects: oles,
	})
}

// walkTable converts one w:tbl into a table item. The first row is taken
// as the header row.
func (w *walker) walkTable(t *xmlTable) {
	var headers []string
	var rows [][]string
	cols := 0

	for i, tr := range t.Rows {
		cells := make([]string, 0, len(tr.Cells))
		for _, tc := range tr.Cells {
			cells = append(cells, tc.text())
		}
		if len(cells) > cols {
			cols = len(cells)
		}
		if i == 0 {
			headers = cells
		} else {
			rows = append(rows, cells)
		}
	}
	if len(headers) == 0 {
		return
	}

	w.nextTableID++
	table := &TableData{
		TableID:  w.nextTableID,
		Headers:  headers,
		Rows:     rows,
		RowCount: len(rows) + 1,
		ColCount: cols,
	}
	w.tables = append(w.tables, table)
	w.items = append(w.items, ContentItem{Type: ItemTable, Table: table})
}

// resolveHyperlink maps a w:hyperlink to a Link plus its display text.
// Links with an unresolvable reference id keep their text but produce no
// Link record.
func (w *walker) resolveHyperlink(h *xmlHyperlink) (*Link, string) {
	var text strings.Builder
	for _, r := range h.Runs {
		text.WriteString(runMarkup(&r))
	}
	display := strings.TrimSpace(text.String())

	if h.RID == "" {
		if h.Anchor != "" {
			return &Link{Text: display, URL: "#" + h.Anchor, Kind: LinkInternal}, display
		}
		return nil, display
	}

	rel, ok := w.rels[h.RID]
	if !ok {
		slog.Debug("parser: hyperlink relationship missing", "rId", h.RID)
		w.warn("hyperlink %s: relationship missing", h.RID)
		return nil, display
	}

	url := rel.Target
	kind := LinkInternal
	if rel.External {
		kind = LinkExternal
		lower := strings.ToLower(url)
		if strings.HasPrefix(lower, "file:") || !strings.Contains(lower, "://") {
			kind = LinkFile
		}
	}
	if h.Anchor != "" && !rel.External {
		url = "#" + h.Anchor
	}
	return &Link{Text: display, URL: url, Kind: kind}, display
}

// ---------------------------------------------------------------------------
// XML body model
// ---------------------------------------------------------------------------

type xmlDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    xmlBody  `xml:"body"`
}

// xmlBody preserves the original interleaving of paragraphs and tables,
// which a plain struct unmarshal would lose.
type xmlBody struct {
	Elements []bodyElement
}

type bodyElement struct {
	Para  *xmlPara
	Table *xmlTable
}

func (b *xmlBody) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				var p xmlPara
				if err := d.DecodeElement(&p, &t); err != nil {
					return err
				}
				b.Elements = append(b.Elements, bodyElement{Para: &p})
			case "tbl":
				var tbl xmlTable
				if err := d.DecodeElement(&tbl, &t); err != nil {
					return err
				}
				b.Elements = append(b.Elements, bodyElement{Table: &tbl})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

// xmlPara keeps its runs and hyperlinks in document order.
type xmlPara struct {
	PPr      *xmlParaPr
	Children []paraChild
}

type paraChild struct {
	Run  *xmlRun
	Link *xmlHyperlink
}

func (p *xmlPara) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				var pr xmlParaPr
				if err := d.DecodeElement(&pr, &t); err != nil {
					return err
				}
				p.PPr = &pr
			case "r":
				var r xmlRun
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				p.Children = append(p.Children, paraChild{Run: &r})
			case "hyperlink":
				var h xmlHyperlink
				if err := d.DecodeElement(&h, &t); err != nil {
					return err
				}
				p.Children = append(p.Children, paraChild{Link: &h})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

func (p *xmlPara) style() string {
	if p.PPr != nil && p.PPr.Style != nil {
		return p.PPr.Style.Val
	}
	return ""
}

type xmlParaPr struct {
	Style *xmlVal `xml:"pStyle"`
}

type xmlVal struct {
	Val string `xml:"val,attr"`
}

type xmlHyperlink struct {
	RID    string   `xml:"id,attr"`
	Anchor string   `xml:"anchor,attr"`
	Runs   []xmlRun `xml:"r"`
}

// xmlRun captures the structured embedding idioms (drawing blips, VML
// imagedata, w:object OLE) and keeps the raw inner markup for the generic
// keyword-scan fallback.
type xmlRun struct {
	RPr       *xmlRunPr      `xml:"rPr"`
	Texts     []string       `xml:"t"`
	Tabs      []xmlEmpty     `xml:"tab"`
	Breaks    []xmlEmpty     `xml:"br"`
	Drawings  []xmlDrawing   `xml:"drawing"`
	Picts     []xmlPict      `xml:"pict"`
	Objects   []xmlObject    `xml:"object"`
	OLEDirect []xmlOLEObject `xml:"OLEObject"`
	Inner     string         `xml:",innerxml"`
}

type xmlEmpty struct{}

type xmlRunPr struct {
	Bold      *xmlOnOff `xml:"b"`
	Italic    *xmlOnOff `xml:"i"`
	Underline *xmlVal   `xml:"u"`
	Strike    *xmlOnOff `xml:"strike"`
}

type xmlOnOff struct {
	Val string `xml:"val,attr"`
}

// on reports whether a toggle property is enabled. The element's presence
// means "on" unless val says otherwise.
func (o *xmlOnOff) on() bool {
	if o == nil {
		return false
	}
	switch strings.ToLower(o.Val) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

type xmlDrawing struct {
	Inline []xmlBlip `xml:"inline>graphic>graphicData>pic>blipFill>blip"`
	Anchor []xmlBlip `xml:"anchor>graphic>graphicData>pic>blipFill>blip"`
}

type xmlBlip struct {
	Embed string `xml:"embed,attr"`
}

type xmlPict struct {
	ImageData []xmlImageData `xml:"shape>imagedata"`
}

type xmlImageData struct {
	RID string `xml:"id,attr"`
}

type xmlObject struct {
	OLE *xmlOLEObject `xml:"OLEObject"`
}

type xmlOLEObject struct {
	RID    string `xml:"id,attr"`
	ProgID string `xml:"ProgID,attr"`
}

// imageRefIDs returns the drawing reference ids of one run, from both the
// DrawingML idiom (a:blip r:embed) and the VML idiom (v:imagedata r:id).
func (r *xmlRun) imageRefIDs() []string {
	var ids []string
	for _, d := range r.Drawings {
		for _, b := range d.Inline {
			if b.Embed != "" {
				ids = append(ids, b.Embed)
			}
		}
		for _, b := range d.Anchor {
			if b.Embed != "" {
				ids = append(ids, b.Embed)
			}
		}
	}
	for _, p := range r.Picts {
		for _, img := range p.ImageData {
			if img.RID != "" {
				ids = append(ids, img.RID)
			}
		}
	}
	return ids
}

// oleRefs accumulates embedded-object references for one paragraph,
// deduplicated by reference id. The same id in two different paragraphs is
// intentionally extracted twice.
type oleRefs struct {
	order []string
	prog  map[string]string
}

func newOLERefs() *oleRefs {
	return &oleRefs{prog: make(map[string]string)}
}

func (o *oleRefs) add(rid, progID string) {
	if rid == "" {
		return
	}
	if _, seen := o.prog[rid]; seen {
		return
	}
	o.order = append(o.order, rid)
	o.prog[rid] = progID
}

// oleMarkupPattern is the keyword-scan fallback for authoring tools whose
// embedding markup uses neither the w:object nor the bare o:OLEObject
// idiom. It matches whole elements that name an oleObject, so attribute
// extraction stays scoped to one element at a time.
var oleMarkupPattern = regexp.MustCompile(`(?i)<[^>]*oleobject[^>]*>`)

var (
	oleRIDPattern = regexp.MustCompile(`(?i)r:id="([^"]+)"`)
	progIDPattern = regexp.MustCompile(`ProgID="([^"]+)"`)
)

func (r *xmlRun) collectOLERefs(refs *oleRefs) {
	for _, obj := range r.Objects {
		if obj.OLE != nil {
			refs.add(obj.OLE.RID, obj.OLE.ProgID)
		}
	}
	for _, ole := range r.OLEDirect {
		refs.add(ole.RID, ole.ProgID)
	}
	// Generic scan over the run's raw markup. The ProgID must come from
	// the same element as the reference id it is paired with.
	for _, el := range oleMarkupPattern.FindAllString(r.Inner, -1) {
		rm := oleRIDPattern.FindStringSubmatch(el)
		if rm == nil {
			continue
		}
		progID := ""
		if pm := progIDPattern.FindStringSubmatch(el); pm != nil {
			progID = pm[1]
		}
		refs.add(rm[1], progID)
	}
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

type xmlTable struct {
	Rows []xmlTableRow `xml:"tr"`
}

type xmlTableRow struct {
	Cells []xmlTableCell `xml:"tc"`
}

type xmlTableCell struct {
	Paras []xmlPara `xml:"p"`
}

// text flattens a cell to plain text, joining its paragraphs with spaces.
func (c *xmlTableCell) text() string {
	var b strings.Builder
	for _, p := range c.Paras {
		t := plainText(&p)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(t)
	}
	return b.String()
}

func plainText(p *xmlPara) string {
	var b strings.Builder
	for _, child := range p.Children {
		switch {
		case child.Run != nil:
			b.WriteString(child.Run.plainText())
		case child.Link != nil:
			for _, r := range child.Link.Runs {
				b.WriteString(r.plainText())
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// ---------------------------------------------------------------------------
// Heading styles
// ---------------------------------------------------------------------------

// headingLevel maps a paragraph style to its heading depth. "Title" counts
// as level 1; localized style prefixes cover documents produced by
// non-English Word builds.
func headingLevel(style string) int {
	lower := strings.ToLower(style)
	if lower == "" {
		return 0
	}
	if lower == "title" {
		return 1
	}
	for _, prefix := range []string{"heading", "titre", "berschrift", "标题"} {
		idx := strings.Index(lower, prefix)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(lower[idx+len(prefix):])
		for lvl := 9; lvl >= 1; lvl-- {
			if strings.HasPrefix(rest, fmt.Sprintf("%d", lvl)) {
				return lvl
			}
		}
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Metadata
// ---------------------------------------------------------------------------

type coreProperties struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

// readMetadata pulls document properties from docProps/core.xml. A missing
// or malformed part degrades to empty metadata.
func readMetadata(pkg *container.Package) Metadata {
	data, err := pkg.ReadEntry("docProps/core.xml")
	if err != nil {
		return Metadata{}
	}
	var props coreProperties
	if err := xml.Unmarshal(data, &props); err != nil {
		slog.Debug("parser: core properties unreadable", "error", err)
		return Metadata{}
	}
	return Metadata{
		Title:    props.Title,
		Author:   props.Creator,
		Created:  props.Created,
		Modified: props.Modified,
	}
}

// ---------------------------------------------------------------------------
// Asset persistence helpers
// ---------------------------------------------------------------------------

// saveAsset writes raw bytes under dir as base+ext.
func saveAsset(dir, base, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, base+ext)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// mediaExt returns the lowercase extension of an internal media path,
// defaulting to .png when the path has none.
func mediaExt(target string) string {
	ext := strings.ToLower(path.Ext(target))
	if ext == "" {
		return ".png"
	}
	return ext
}
