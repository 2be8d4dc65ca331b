package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts text from page-based PDF documents via the external
// extraction library.
type PDFParser struct{}

// NewPDFParser creates a parser for .pdf files.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts plain text page by page. Library failures, including
// panics on malformed input, surface as *PdfParseError; an image-only PDF
// with no extractable text fails with ErrNoText as the cause.
func (p *PDFParser) Parse(content []byte) (text string, err error) {
	// The extraction library panics on some malformed documents; convert
	// those into the same typed error as ordinary failures.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &PdfParseError{Cause: fmt.Errorf("extraction panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(newBytesReaderAt(content), int64(len(content)))
	if err != nil {
		return "", &PdfParseError{Cause: err}
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Some pages fail to decode on otherwise readable
			// documents; keep what the rest of the pages give us.
			continue
		}

		if pageText != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(pageText)
		}
	}

	text = Normalize(sb.String())
	if text == "" {
		return "", &PdfParseError{Cause: ErrNoText}
	}

	return text, nil
}

// Extensions returns the extensions handled by this parser.
func (p *PDFParser) Extensions() []string {
	return []string{".pdf"}
}

// bytesReaderAt adapts a byte slice to io.ReaderAt for the PDF library.
type bytesReaderAt struct {
	data []byte
}

func newBytesReaderAt(data []byte) *bytesReaderAt {
	return &bytesReaderAt{data: data}
}

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset")
	}
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n = copy(p, r.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return n, err
}
