// Package container reads the outer OPC package of a word-processing
// document: a ZIP archive of XML parts plus relationship tables that map
// logical reference ids to internal part paths.
package container

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

var (
	// ErrCorrupt is returned when the archive cannot be opened at all.
	ErrCorrupt = errors.New("container: corrupt or unreadable package")

	// ErrEntryNotFound is returned when a named part is missing. Callers
	// treat it as recoverable.
	ErrEntryNotFound = errors.New("container: entry not found")
)

// Relationship is one row of a part's relationship table.
type Relationship struct {
	ID       string
	Type     string
	Target   string // normalized package path, or raw URL when External
	External bool
}

// Package is an opened document package. It holds a read handle only; all
// methods are safe for sequential use within one parse run.
type Package struct {
	reader *zip.Reader
	closer io.Closer
	index  map[string]*zip.File
}

// Open opens the package at path.
func Open(name string) (*Package, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	p := newPackage(&rc.Reader)
	p.closer = rc
	return p, nil
}

// OpenBytes opens a package held in memory. Used for embedded sub-packages
// and tests.
func OpenBytes(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return newPackage(zr), nil
}

func newPackage(zr *zip.Reader) *Package {
	index := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		index[f.Name] = f
	}
	return &Package{reader: zr, index: index}
}

// Close releases the underlying file handle, if any.
func (p *Package) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// Entries returns the names of all parts in the package, sorted.
func (p *Package) Entries() []string {
	names := make([]string, 0, len(p.index))
	for name := range p.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a part exists.
func (p *Package) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// ReadEntry returns the full bytes of one part.
func (p *Package) ReadEntry(name string) ([]byte, error) {
	f, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", name, err)
	}
	return data, nil
}

// relationships is the .rels XML structure.
type relationships struct {
	XMLName xml.Name          `xml:"Relationships"`
	Rels    []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// Relationships parses the relationship table of one part, e.g.
// Relationships("word/document.xml") reads word/_rels/document.xml.rels.
// Internal targets are normalized against the owning part's directory so
// that "media/image1.png" becomes "word/media/image1.png". A missing
// relationship part yields ErrEntryNotFound.
func (p *Package) Relationships(part string) (map[string]Relationship, error) {
	dir := path.Dir(part)
	relsPath := path.Join(dir, "_rels", path.Base(part)+".rels")

	data, err := p.ReadEntry(relsPath)
	if err != nil {
		return nil, err
	}

	var parsed relationships
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", relsPath, err)
	}

	out := make(map[string]Relationship, len(parsed.Rels))
	for _, r := range parsed.Rels {
		rel := Relationship{ID: r.ID, Type: r.Type, Target: r.Target}
		if strings.EqualFold(r.TargetMode, "External") {
			rel.External = true
		} else {
			rel.Target = resolveTarget(dir, r.Target)
		}
		out[rel.ID] = rel
	}
	return out, nil
}

// resolveTarget normalizes a relationship target against the owning part's
// directory. Targets may be part-relative ("media/image1.png"), may climb
// out ("../media/image1.png"), or may be package-absolute ("/word/...").
func resolveTarget(dir, target string) string {
	target = strings.ReplaceAll(target, "\\", "/")
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Clean(path.Join(dir, target))
}
