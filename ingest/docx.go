package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// documentBodyEntry is the archive entry holding the document body XML.
const documentBodyEntry = "word/document.xml"

// textRunRe matches the content of a single text run. A structural scan is
// enough here; the body XML never needs a full parse to find its runs.
var textRunRe = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)

// xmlEntities reverses the escaping applied to run content.
var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// DocxParser extracts text from zip-based XML Word documents.
type DocxParser struct{}

// NewDocxParser creates a parser for .docx files.
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Parse opens the file as a zip archive, locates the document body entry,
// and joins all text runs with spaces. A missing body entry, an unreadable
// archive, or a body with no runs all yield *NoTextExtractedError.
func (p *DocxParser) Parse(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &NoTextExtractedError{Format: "docx", Cause: fmt.Errorf("open archive: %w", err)}
	}

	var body []byte
	for _, f := range zr.File {
		if f.Name != documentBodyEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", &NoTextExtractedError{Format: "docx", Cause: fmt.Errorf("open %s: %w", documentBodyEntry, err)}
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", &NoTextExtractedError{Format: "docx", Cause: fmt.Errorf("read %s: %w", documentBodyEntry, err)}
		}
		break
	}
	if body == nil {
		return "", &NoTextExtractedError{Format: "docx", Cause: fmt.Errorf("missing %s", documentBodyEntry)}
	}

	matches := textRunRe.FindAllSubmatch(body, -1)
	if len(matches) == 0 {
		return "", &NoTextExtractedError{Format: "docx", Cause: ErrNoText}
	}

	runs := make([]string, 0, len(matches))
	for _, m := range matches {
		run := xmlEntities.Replace(string(m[1]))
		if run != "" {
			runs = append(runs, run)
		}
	}

	text := Normalize(strings.Join(runs, " "))
	if text == "" {
		return "", &NoTextExtractedError{Format: "docx", Cause: ErrNoText}
	}

	return text, nil
}

// Extensions returns the extensions handled by this parser.
func (p *DocxParser) Extensions() []string {
	return []string{".docx"}
}
