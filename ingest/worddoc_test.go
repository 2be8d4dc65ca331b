package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDocParserExtractsPrintableText(t *testing.T) {
	p := NewDocParser(Limits{MaxDocBytes: DefaultMaxDocBytes, MinDocChars: 10})

	// Interleave binary noise with readable content, the shape of a real
	// legacy binary document.
	var buf bytes.Buffer
	buf.Write([]byte{0xD0, 0xCF, 0x11, 0xE0, 0x01, 0x02})
	buf.WriteString("The system shall support ")
	buf.Write([]byte{0x00, 0x03, 0x9F})
	buf.WriteString("ten thousand users.")
	buf.Write([]byte{0x07, 0xFF})

	got, err := p.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !strings.Contains(got, "The system shall support") {
		t.Errorf("extracted text missing content: %q", got)
	}
	if strings.ContainsAny(got, "\x00\x07\x9f") {
		t.Errorf("binary bytes survived extraction: %q", got)
	}
}

func TestDocParserSizeCeiling(t *testing.T) {
	p := NewDocParser(Limits{MaxDocBytes: 100, MinDocChars: 10})

	_, err := p.Parse(bytes.Repeat([]byte("a"), 101))
	if err == nil {
		t.Fatal("expected size-rejection error")
	}

	var tooLarge *FileTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("error = %T, want *FileTooLargeError", err)
	}
	if tooLarge.Size != 101 || tooLarge.Limit != 100 {
		t.Errorf("FileTooLargeError = %+v, want Size=101 Limit=100", tooLarge)
	}
}

func TestDocParserAtCeilingSucceeds(t *testing.T) {
	p := NewDocParser(Limits{MaxDocBytes: 100, MinDocChars: 10})

	if _, err := p.Parse(bytes.Repeat([]byte("a"), 100)); err != nil {
		t.Errorf("Parse() at exact ceiling error = %v", err)
	}
}

func TestDocParserInsufficientText(t *testing.T) {
	p := NewDocParser(Limits{MaxDocBytes: DefaultMaxDocBytes, MinDocChars: 50})

	// Mostly binary, only a few printable characters survive.
	content := append(bytes.Repeat([]byte{0x00, 0x01, 0x9F}, 200), []byte("hi")...)

	_, err := p.Parse(content)
	if err == nil {
		t.Fatal("expected insufficient-text error")
	}

	var insufficient *InsufficientTextError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %T, want *InsufficientTextError", err)
	}
	if insufficient.Min != 50 {
		t.Errorf("Min = %d, want 50", insufficient.Min)
	}
	if insufficient.Chars >= 50 {
		t.Errorf("Chars = %d, should be under the minimum", insufficient.Chars)
	}
}
