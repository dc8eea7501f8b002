package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating entry %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("writing entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func TestOpenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Open on garbage = %v, want ErrCorrupt", err)
	}
}

func TestReadEntry(t *testing.T) {
	pkg, err := OpenBytes(buildZip(t, map[string][]byte{
		"word/document.xml": []byte("<document/>"),
	}))
	if err != nil {
		t.Fatal(err)
	}

	data, err := pkg.ReadEntry("word/document.xml")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(data) != "<document/>" {
		t.Errorf("ReadEntry = %q", data)
	}

	if _, err := pkg.ReadEntry("word/missing.xml"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("missing entry = %v, want ErrEntryNotFound", err)
	}
}

func TestRelationships(t *testing.T) {
	rels := `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type=".../image" Target="media/image1.png"/>
  <Relationship Id="rId2" Type=".../image" Target="../word/media/image2.png"/>
  <Relationship Id="rId3" Type=".../image" Target="/word/media/image3.png"/>
  <Relationship Id="rId4" Type=".../hyperlink" Target="https://example.com/doc" TargetMode="External"/>
</Relationships>`
	pkg, err := OpenBytes(buildZip(t, map[string][]byte{
		"word/_rels/document.xml.rels": []byte(rels),
	}))
	if err != nil {
		t.Fatal(err)
	}

	got, err := pkg.Relationships("word/document.xml")
	if err != nil {
		t.Fatalf("Relationships: %v", err)
	}

	tests := []struct {
		id       string
		target   string
		external bool
	}{
		{"rId1", "word/media/image1.png", false},
		{"rId2", "word/media/image2.png", false},
		{"rId3", "word/media/image3.png", false},
		{"rId4", "https://example.com/doc", true},
	}
	for _, tt := range tests {
		rel, ok := got[tt.id]
		if !ok {
			t.Errorf("missing relationship %s", tt.id)
			continue
		}
		if rel.Target != tt.target {
			t.Errorf("%s: Target = %q, want %q", tt.id, rel.Target, tt.target)
		}
		if rel.External != tt.external {
			t.Errorf("%s: External = %v, want %v", tt.id, rel.External, tt.external)
		}
	}
}

func TestRelationshipsMissingPart(t *testing.T) {
	pkg, err := OpenBytes(buildZip(t, map[string][]byte{"word/document.xml": []byte("<d/>")}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pkg.Relationships("word/document.xml"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("missing rels part = %v, want ErrEntryNotFound", err)
	}
}
