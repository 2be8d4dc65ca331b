package ingest

import (
	"errors"
	"fmt"
)

// ErrParse is the sentinel all typed ingestion errors unwrap to, so callers
// can match the whole family with errors.Is.
var ErrParse = errors.New("document parse failed")

// ErrNoText indicates a document was structurally valid but contained no
// extractable text.
var ErrNoText = errors.New("no text content extracted")

// UnsupportedFormatError is returned when no parser is registered for a
// file's extension.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q", e.Ext)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrParse }

// FileTooLargeError is returned when a document exceeds the size ceiling
// before extraction is attempted.
type FileTooLargeError struct {
	Format string
	Size   int64
	Limit  int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s document too large: %d bytes exceeds limit of %d", e.Format, e.Size, e.Limit)
}

func (e *FileTooLargeError) Unwrap() error { return ErrParse }

// InsufficientTextError is returned when best-effort extraction yields too
// little text to be a usable document.
type InsufficientTextError struct {
	Format string
	Chars  int
	Min    int
}

func (e *InsufficientTextError) Error() string {
	return fmt.Sprintf("%s extraction yielded %d characters, need at least %d", e.Format, e.Chars, e.Min)
}

func (e *InsufficientTextError) Unwrap() error { return ErrParse }

// NoTextExtractedError is returned when a container format is missing its
// document body or the body holds no text runs.
type NoTextExtractedError struct {
	Format string
	Cause  error
}

func (e *NoTextExtractedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no text extracted from %s document: %v", e.Format, e.Cause)
	}
	return fmt.Sprintf("no text extracted from %s document", e.Format)
}

func (e *NoTextExtractedError) Unwrap() error { return ErrParse }

// PdfParseError wraps any failure from the PDF extraction library.
type PdfParseError struct {
	Cause error
}

func (e *PdfParseError) Error() string {
	return fmt.Sprintf("pdf parse failed: %v", e.Cause)
}

func (e *PdfParseError) Unwrap() error { return ErrParse }
