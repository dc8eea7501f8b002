package parser

import (
	"encoding/xml"
	"io"
	"strings"
)

// runMarkup converts one run to markup-agnostic rich text: bold, italic,
// underline, and strikethrough survive as inline markers, everything else
// is dropped.
func runMarkup(r *xmlRun) string {
	text := r.plainText()
	if strings.TrimSpace(text) == "" {
		return text
	}
	if r.RPr == nil {
		return text
	}

	// Markers wrap the trimmed core so trailing spaces don't break the
	// markup; surrounding whitespace is re-attached afterwards.
	core := strings.TrimSpace(text)
	prefix := text[:strings.Index(text, core)]
	suffix := text[strings.Index(text, core)+len(core):]

	if r.RPr.Strike.on() {
		core = "~~" + core + "~~"
	}
	if underlineOn(r.RPr.Underline) {
		core = "<u>" + core + "</u>"
	}
	if r.RPr.Italic.on() {
		core = "*" + core + "*"
	}
	if r.RPr.Bold.on() {
		core = "**" + core + "**"
	}
	return prefix + core + suffix
}

func underlineOn(u *xmlVal) bool {
	if u == nil {
		return false
	}
	return !strings.EqualFold(u.Val, "none")
}

// plainText flattens a run to its raw text, with tabs and line breaks
// normalized to whitespace at the positions they actually occupy between
// the text elements. Non-text subtrees (drawings, objects) contribute
// nothing.
func (r *xmlRun) plainText() string {
	dec := xml.NewDecoder(strings.NewReader(r.Inner))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return b.String()
		}
		if err != nil {
			return r.plainTextUnordered()
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "t":
			var s string
			if err := dec.DecodeElement(&s, &se); err != nil {
				return r.plainTextUnordered()
			}
			b.WriteString(s)
		case "tab":
			b.WriteString("\t")
			if err := dec.Skip(); err != nil {
				return r.plainTextUnordered()
			}
		case "br", "cr":
			b.WriteString("\n")
			if err := dec.Skip(); err != nil {
				return r.plainTextUnordered()
			}
		default:
			if err := dec.Skip(); err != nil {
				return r.plainTextUnordered()
			}
		}
	}
}

// plainTextUnordered is the field-based assembly used when the raw markup
// of a run cannot be re-walked.
func (r *xmlRun) plainTextUnordered() string {
	var b strings.Builder
	for range r.Tabs {
		b.WriteString("\t")
	}
	for _, t := range r.Texts {
		b.WriteString(t)
	}
	for range r.Breaks {
		b.WriteString("\n")
	}
	return b.String()
}
