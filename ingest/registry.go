// Package ingest converts uploaded document bytes into normalized plain
// text. Dispatch is purely by file extension; each format handler converts
// its own failures into a typed error so nothing propagates raw to callers.
package ingest

import (
	"path/filepath"
	"strings"
	"sync"
)

// Default extraction limits for the legacy binary format.
const (
	DefaultMaxDocBytes = 10 * 1024 * 1024
	DefaultMinDocChars = 50
)

// Parser extracts normalized text from one document format.
type Parser interface {
	// Parse extracts and normalizes text from raw document bytes.
	Parse(content []byte) (string, error)

	// Extensions returns the lower-cased file extensions this parser
	// handles, dot included.
	Extensions() []string
}

// Limits bounds best-effort extraction for formats that need it.
type Limits struct {
	// MaxDocBytes is the size ceiling for legacy binary documents,
	// enforced before extraction is attempted.
	MaxDocBytes int64

	// MinDocChars is the minimum usable text length a best-effort
	// extraction must yield.
	MinDocChars int
}

// DefaultLimits returns the standard extraction limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDocBytes: DefaultMaxDocBytes,
		MinDocChars: DefaultMinDocChars,
	}
}

// Registry dispatches document parsing by file extension.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // keyed by extension, dot included
}

// NewRegistry creates a registry with all supported format parsers
// registered: .txt, .md, .doc, .docx, and .pdf.
func NewRegistry(limits Limits) *Registry {
	if limits.MaxDocBytes <= 0 {
		limits.MaxDocBytes = DefaultMaxDocBytes
	}
	if limits.MinDocChars <= 0 {
		limits.MinDocChars = DefaultMinDocChars
	}

	r := &Registry{
		parsers: make(map[string]Parser),
	}

	r.Register(NewTextParser())
	r.Register(NewDocParser(limits))
	r.Register(NewDocxParser())
	r.Register(NewPDFParser())

	return r
}

// Register adds a parser under each of its extensions.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.Extensions() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// Get returns the parser for a file extension, or nil when the extension is
// not supported.
func (r *Registry) Get(ext string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parsers[strings.ToLower(ext)]
}

// Parse extracts normalized text from the named file's bytes. Unknown
// extensions return *UnsupportedFormatError.
func (r *Registry) Parse(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	p := r.Get(ext)
	if p == nil {
		return "", &UnsupportedFormatError{Ext: ext}
	}
	return p.Parse(content)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	return exts
}
