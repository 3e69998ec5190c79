package webtools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// TruncationMarker is appended when scraped text is cut at the soft cap.
const TruncationMarker = "\n[content truncated]"

// ScrapeResult is the cleaned text of one page.
type ScrapeResult struct {
	Title         string `json:"title"`
	TextContent   string `json:"text_content"`
	StatusMessage string `json:"status_message"`
}

// Scraper fetches and cleans a single web page.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*ScrapeResult, error)
}

// HTTPScraper implements Scraper over plain HTTP with HTML text extraction.
type HTTPScraper struct {
	client   *http.Client
	maxChars int
}

// NewHTTPScraper creates a scraper. maxChars is the soft cap on extracted
// text (the documented default is 10,000).
func NewHTTPScraper(client *http.Client, maxChars int) *HTTPScraper {
	if client == nil {
		client = http.DefaultClient
	}
	if maxChars <= 0 {
		maxChars = 10_000
	}
	return &HTTPScraper{client: client, maxChars: maxChars}
}

// Scrape fetches the URL and extracts readable text. Failures return typed
// errors; the ScrapeResult's StatusMessage always describes the outcome so
// callers can proceed with reduced information.
func (s *HTTPScraper) Scrape(ctx context.Context, url string) (*ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ScrapeFormatError{URL: url, Detail: fmt.Sprintf("invalid URL: %v", err)}
	}
	req.Header.Set("User-Agent", "prospector/1.0 (+lead enrichment)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &ScrapeTimeoutError{URL: url, Err: err}
		}
		return nil, &ScrapeTransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ScrapeHTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text/plain") {
		return nil, &ScrapeFormatError{URL: url, Detail: fmt.Sprintf("unsupported content type %q", ct)}
	}

	// Cap the raw read well above maxChars: markup overhead means the
	// extracted text is much shorter than the document.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.maxChars)*20))
	if err != nil {
		return nil, &ScrapeFormatError{URL: url, Detail: fmt.Sprintf("failed to read body: %v", err)}
	}

	title, text := ExtractText(string(body))
	text = Truncate(text, s.maxChars)

	return &ScrapeResult{
		Title:         title,
		TextContent:   text,
		StatusMessage: fmt.Sprintf("fetched %s (%d chars)", url, len(text)),
	}, nil
}

// ExtractText parses HTML and returns (title, cleaned body text): scripts,
// styles and markup stripped, entities decoded by the parser, whitespace
// collapsed.
func ExtractText(htmlSrc string) (string, string) {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		// Fall back to the raw text with whitespace collapsed.
		return "", collapseWhitespace(htmlSrc)
	}

	var title string
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, collapseWhitespace(sb.String())
}

// Truncate cuts text at the soft cap, appending the truncation marker. The
// cut backs up to a rune boundary so the result stays valid UTF-8.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + TruncationMarker
}

// collapseWhitespace folds runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
