package ingest

// TextParser handles plain-text and markdown documents. Markdown is kept
// as-is; its structure is meaningful to downstream prompts.
type TextParser struct{}

// NewTextParser creates a parser for .txt and .md files.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse reads the bytes as UTF-8 text and normalizes them.
func (p *TextParser) Parse(content []byte) (string, error) {
	return Normalize(string(content)), nil
}

// Extensions returns the extensions handled by this parser.
func (p *TextParser) Extensions() []string {
	return []string{".txt", ".md"}
}
