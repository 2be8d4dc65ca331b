package ingest

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trims outer whitespace",
			input: "  hello world\n\n",
			want:  "hello world",
		},
		{
			name:  "windows line endings",
			input: "line one\r\nline two\r\n",
			want:  "line one\nline two",
		},
		{
			name:  "bare carriage returns",
			input: "line one\rline two",
			want:  "line one\nline two",
		},
		{
			name:  "collapses excess blank lines",
			input: "para one\n\n\n\n\npara two",
			want:  "para one\n\npara two",
		},
		{
			name:  "keeps single paragraph break",
			input: "para one\n\npara two",
			want:  "para one\n\npara two",
		},
		{
			name:  "collapses horizontal whitespace",
			input: "too   many\tspaces \t here",
			want:  "too many spaces here",
		},
		{
			name:  "newlines survive horizontal collapse",
			input: "a  b\nc\td",
			want:  "a b\nc d",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: " \t \n\n \r\n ",
			want:  "",
		},
		{
			name:  "mixed endings and blanks",
			input: "one\r\n\r\n\r\n\r\ntwo\r\nthree",
			want:  "one\n\ntwo\nthree",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"plain text",
		"  padded  \r\n\r\n\r\n with\tblanks  ",
		"para\n\n\n\npara\n \n \npara",
		"# Heading\n\nBody   text\nmore",
		"",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}
