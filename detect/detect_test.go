package detect

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

// ---------------------------------------------------------------------------
// Fixture builders
// ---------------------------------------------------------------------------

// buildZip returns an in-memory ZIP archive with the given entries.
func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

const (
	sectFree       = 0xFFFFFFFF
	sectEndOfChain = 0xFFFFFFFE
	sectFAT        = 0xFFFFFFFD
)

// buildCompoundFile returns a minimal valid compound binary container
// holding one stream. The payload must be at least 4096 bytes so the
// stream lands in regular sectors rather than the mini stream.
func buildCompoundFile(t *testing.T, streamName string, payload []byte) []byte {
	t.Helper()
	if len(payload) < 4096 {
		t.Fatalf("payload must be >= 4096 bytes, got %d", len(payload))
	}

	dataSectors := (len(payload) + 511) / 512

	// Header (512 bytes).
	header := make([]byte, 512)
	copy(header, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	binary.LittleEndian.PutUint16(header[24:], 0x003E) // minor version
	binary.LittleEndian.PutUint16(header[26:], 3)      // major version
	binary.LittleEndian.PutUint16(header[28:], 0xFFFE) // byte order
	binary.LittleEndian.PutUint16(header[30:], 9)      // sector shift (512)
	binary.LittleEndian.PutUint16(header[32:], 6)      // mini sector shift
	binary.LittleEndian.PutUint32(header[44:], 1)      // FAT sector count
	binary.LittleEndian.PutUint32(header[48:], 1)      // first directory sector
	binary.LittleEndian.PutUint32(header[56:], 4096)   // mini stream cutoff
	binary.LittleEndian.PutUint32(header[60:], sectEndOfChain)
	binary.LittleEndian.PutUint32(header[64:], 0)
	binary.LittleEndian.PutUint32(header[68:], sectEndOfChain)
	binary.LittleEndian.PutUint32(header[72:], 0)
	binary.LittleEndian.PutUint32(header[76:], 0) // DIFAT[0]: FAT at sector 0
	for off := 80; off < 512; off += 4 {
		binary.LittleEndian.PutUint32(header[off:], sectFree)
	}

	// FAT (sector 0).
	fat := make([]byte, 512)
	for i := 0; i < 128; i++ {
		binary.LittleEndian.PutUint32(fat[i*4:], sectFree)
	}
	binary.LittleEndian.PutUint32(fat[0:], sectFAT)        // sector 0: the FAT itself
	binary.LittleEndian.PutUint32(fat[4:], sectEndOfChain) // sector 1: directory
	for i := 0; i < dataSectors; i++ {
		next := uint32(sectEndOfChain)
		if i < dataSectors-1 {
			next = uint32(2 + i + 1)
		}
		binary.LittleEndian.PutUint32(fat[(2+i)*4:], next)
	}

	// Directory (sector 1): root entry + one stream entry.
	dir := make([]byte, 512)
	writeDirEntry(dir[0:], "Root Entry", 5, sectFree, sectFree, 1, sectEndOfChain, 0)
	writeDirEntry(dir[128:], streamName, 2, sectFree, sectFree, sectFree, 2, uint64(len(payload)))
	for i := 2; i < 4; i++ {
		binary.LittleEndian.PutUint32(dir[i*128+68:], sectFree)
		binary.LittleEndian.PutUint32(dir[i*128+72:], sectFree)
		binary.LittleEndian.PutUint32(dir[i*128+76:], sectFree)
	}

	padded := make([]byte, dataSectors*512)
	copy(padded, payload)

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(fat)
	buf.Write(dir)
	buf.Write(padded)
	return buf.Bytes()
}

func writeDirEntry(entry []byte, name string, objType byte, left, right, child, start uint32, size uint64) {
	encoded := utf16.Encode([]rune(name))
	for i, u := range encoded {
		binary.LittleEndian.PutUint16(entry[i*2:], u)
	}
	binary.LittleEndian.PutUint16(entry[64:], uint16((len(encoded)+1)*2))
	entry[66] = objType
	entry[67] = 1 // black
	binary.LittleEndian.PutUint32(entry[68:], left)
	binary.LittleEndian.PutUint32(entry[72:], right)
	binary.LittleEndian.PutUint32(entry[76:], child)
	binary.LittleEndian.PutUint32(entry[116:], start)
	binary.LittleEndian.PutUint64(entry[120:], size)
}

// ---------------------------------------------------------------------------
// ZIP package detection
// ---------------------------------------------------------------------------

func TestDetectZipPackages(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string][]byte
		wantExt string
		wantKnd Kind
	}{
		{"spreadsheet", map[string][]byte{"xl/workbook.xml": []byte("<workbook/>")}, ".xlsx", KindSpreadsheet},
		{"word", map[string][]byte{"word/document.xml": []byte("<document/>")}, ".docx", KindWord},
		{"slideshow", map[string][]byte{"ppt/presentation.xml": []byte("<presentation/>")}, ".pptx", KindSlideshow},
		{"generic", map[string][]byte{"readme.txt": []byte("hi")}, ".zip", KindArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Detect(buildZip(t, tt.entries), "")
			if res.Extension != tt.wantExt {
				t.Errorf("Extension = %q, want %q", res.Extension, tt.wantExt)
			}
			if res.Kind != tt.wantKnd {
				t.Errorf("Kind = %q, want %q", res.Kind, tt.wantKnd)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Compound binary containers
// ---------------------------------------------------------------------------

func TestDetectCompoundWorkbook(t *testing.T) {
	// An embedding whose declared type is empty but whose bytes are a
	// compound container with a Workbook stream: the detector must report
	// a spreadsheet and extract the stream bytes, not the outer wrapper.
	payload := bytes.Repeat([]byte{0x09, 0x08}, 2048) // 4096 bytes of BIFF-ish noise
	cf := buildCompoundFile(t, "Workbook", payload)

	res := Detect(cf, "")
	if res.Extension != ".xls" {
		t.Fatalf("Extension = %q, want .xls", res.Extension)
	}
	if res.Kind != KindSpreadsheet {
		t.Errorf("Kind = %q, want %q", res.Kind, KindSpreadsheet)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", res.Confidence)
	}
	if !bytes.Equal(res.Payload, payload) {
		t.Errorf("Payload is not the Workbook stream bytes (got %d bytes, want %d)", len(res.Payload), len(payload))
	}
}

func TestDetectCompoundWordDocument(t *testing.T) {
	cf := buildCompoundFile(t, "WordDocument", bytes.Repeat([]byte{0xEC, 0xA5}, 2048))
	res := Detect(cf, "")
	if res.Extension != ".doc" {
		t.Fatalf("Extension = %q, want .doc", res.Extension)
	}
	if res.Payload != nil {
		t.Error("WordDocument containers keep the outer bytes, Payload should be nil")
	}
}

func TestDetectCompoundPackageRecursion(t *testing.T) {
	// A compound container can wrap a modern ZIP package in a "Package"
	// stream; the detector must recurse and re-sniff the inner bytes.
	inner := buildZip(t, map[string][]byte{"word/document.xml": []byte("<document/>")})
	padded := make([]byte, 4096)
	copy(padded, inner)
	cf := buildCompoundFile(t, "Package", padded)

	res := Detect(cf, "")
	if res.Extension != ".docx" {
		t.Fatalf("Extension = %q, want .docx", res.Extension)
	}
	if res.Payload == nil {
		t.Fatal("recursed detection should surface the inner package as payload")
	}
}

func TestDetectCompoundHintFallback(t *testing.T) {
	// No recognizable stream: the declared ProgID keyword decides.
	cf := buildCompoundFile(t, "Contents", make([]byte, 4096))
	res := Detect(cf, "Excel.Sheet.12")
	if res.Extension != ".xls" {
		t.Errorf("Extension = %q, want .xls from ProgID hint", res.Extension)
	}
	if res.Confidence >= 1.0 {
		t.Errorf("hint fallback should not claim full confidence, got %v", res.Confidence)
	}
}

func TestDetectCompoundUnknownNeverFails(t *testing.T) {
	cf := buildCompoundFile(t, "Contents", make([]byte, 4096))
	res := Detect(cf, "")
	if res.Extension != ".bin" {
		t.Errorf("Extension = %q, want .bin for unrecognized compound content", res.Extension)
	}
	if res.Kind != KindUnknown {
		t.Errorf("Kind = %q, want %q", res.Kind, KindUnknown)
	}
}

// ---------------------------------------------------------------------------
// Raw signatures and hints
// ---------------------------------------------------------------------------

func TestDetectPDF(t *testing.T) {
	res := Detect([]byte("%PDF-1.7 not really a pdf"), "")
	if res.Extension != ".pdf" {
		t.Errorf("Extension = %q, want .pdf", res.Extension)
	}
	if res.PageCount != 0 {
		t.Errorf("PageCount = %d, want 0 for a malformed body", res.PageCount)
	}
}

func TestDetectHints(t *testing.T) {
	tests := []struct {
		hint    string
		wantExt string
	}{
		{"Excel.Sheet.12", ".xls"},
		{"Word.Document.8", ".doc"},
		{"PowerPoint.Show.8", ".ppt"},
		{"AcroExch.Document", ".pdf"},
		{"report.csv", ".csv"},
		{"", ".bin"},
		{"NoSuchVendor.Thing", ".bin"},
	}
	for _, tt := range tests {
		res := Detect([]byte("arbitrary bytes"), tt.hint)
		if res.Extension != tt.wantExt {
			t.Errorf("Detect(hint=%q).Extension = %q, want %q", tt.hint, res.Extension, tt.wantExt)
		}
	}
}

func TestSaveWritesPayload(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte{0xAB}, 4096)
	cf := buildCompoundFile(t, "Workbook", payload)

	res := Detect(cf, "")
	path, err := Save(res, cf, dir, "3")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "3.xls"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved payload: %v", err)
	}
	if !bytes.Equal(written, payload) {
		t.Error("saved file should hold the extracted Workbook stream, not the container")
	}
}
