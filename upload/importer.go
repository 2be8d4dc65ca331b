package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/planforge/planforge/ingest"
)

// Importer defaults.
const (
	DefaultImportTimeout  = 30 * time.Second
	DefaultImportMaxBytes = 5 << 20
	DefaultUserAgent      = "planforge/1.0 (+https://github.com/planforge/planforge)"
)

// ImporterConfig configures the web importer. Zero fields fall back to
// defaults.
type ImporterConfig struct {
	// Timeout bounds the whole fetch.
	Timeout time.Duration

	// MaxBytes caps the response body.
	MaxBytes int64

	// UserAgent identifies the importer to the remote site.
	UserAgent string

	Logger *slog.Logger
}

// ImportResult is the extracted page content.
type ImportResult struct {
	// Title is the best available page title.
	Title string

	// Text is the readable page content as normalized markdown.
	Text string
}

// Importer turns a web page into a requirements draft: fetch, readability
// extraction, markdown conversion, normalization. The caller decides which
// project the text lands on.
type Importer struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	converter *md.Converter
	logger    *slog.Logger
}

// NewImporter creates a web importer.
func NewImporter(cfg ImporterConfig) *Importer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultImportTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultImportMaxBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Importer{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return fmt.Errorf("redirect blocked: unsupported scheme %s", req.URL.Scheme)
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		converter: converter,
		logger:    logger,
	}
}

// ImportURL fetches the page and extracts its readable content.
func (i *Importer) ImportURL(ctx context.Context, rawURL string) (*ImportResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL has no host: %s", rawURL)
	}

	body, err := i.fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}

	markdown, err := i.converter.ConvertString(article.Content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}

	text := ingest.Normalize(markdown)
	if text == "" {
		return nil, fmt.Errorf("page yielded no readable content: %s", rawURL)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = extractHTMLTitle(body)
	}
	if title == "" {
		title = extractMarkdownTitle(text)
	}

	i.logger.Info("Imported page", "url", rawURL, "title", title, "chars", len(text))

	return &ImportResult{Title: title, Text: text}, nil
}

// fetch retrieves the page body with a size cap.
func (i *Importer) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", i.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > i.maxBytes {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", i.maxBytes)
	}

	return body, nil
}

// extractHTMLTitle extracts the <title> text from HTML.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)

	return title
}

// extractMarkdownTitle extracts the first H1 heading from markdown.
func extractMarkdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
