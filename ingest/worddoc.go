package ingest

import "strings"

// DocParser extracts text from legacy binary Word documents. There is no
// structured reader for the OLE compound format here; extraction is
// best-effort, keeping only the printable ASCII range from the raw byte
// stream.
type DocParser struct {
	limits Limits
}

// NewDocParser creates a parser for .doc files with the given limits.
func NewDocParser(limits Limits) *DocParser {
	return &DocParser{limits: limits}
}

// Parse filters the byte stream to printable characters and normalizes the
// result. The size ceiling is enforced before extraction so a huge binary
// blob never gets scanned; too little surviving text fails the parse.
func (p *DocParser) Parse(content []byte) (string, error) {
	if int64(len(content)) > p.limits.MaxDocBytes {
		return "", &FileTooLargeError{
			Format: "doc",
			Size:   int64(len(content)),
			Limit:  p.limits.MaxDocBytes,
		}
	}

	var sb strings.Builder
	sb.Grow(len(content))
	for _, b := range content {
		if (b >= 0x20 && b <= 0x7E) || b == '\n' || b == '\r' || b == '\t' {
			sb.WriteByte(b)
		}
	}

	text := Normalize(sb.String())
	if len(text) < p.limits.MinDocChars {
		return "", &InsufficientTextError{
			Format: "doc",
			Chars:  len(text),
			Min:    p.limits.MinDocChars,
		}
	}

	return text, nil
}

// Extensions returns the extensions handled by this parser.
func (p *DocParser) Extensions() []string {
	return []string{".doc"}
}
