package webtools

import "fmt"

// SearchUnavailableError signals the external search API could not serve the
// query (transport failure, non-2xx, open circuit). The orchestrator reacts
// by synthesizing a fallback lead.
type SearchUnavailableError struct {
	Err error
}

func (e *SearchUnavailableError) Error() string {
	return fmt.Sprintf("webtools: search unavailable: %v", e.Err)
}
func (e *SearchUnavailableError) Unwrap() error { return e.Err }

// ScrapeTimeoutError signals the page fetch exceeded its deadline.
type ScrapeTimeoutError struct {
	URL string
	Err error
}

func (e *ScrapeTimeoutError) Error() string {
	return fmt.Sprintf("webtools: scrape of %s timed out: %v", e.URL, e.Err)
}
func (e *ScrapeTimeoutError) Unwrap() error { return e.Err }

// ScrapeTransportError signals the fetch failed before any HTTP response
// arrived (connection refused, DNS failure, TLS handshake).
type ScrapeTransportError struct {
	URL string
	Err error
}

func (e *ScrapeTransportError) Error() string {
	return fmt.Sprintf("webtools: scrape of %s failed: %v", e.URL, e.Err)
}
func (e *ScrapeTransportError) Unwrap() error { return e.Err }

// ScrapeHTTPError signals a non-success HTTP status. 4xx statuses are
// permanent; the caller proceeds with whatever text it has.
type ScrapeHTTPError struct {
	URL        string
	StatusCode int
}

func (e *ScrapeHTTPError) Error() string {
	return fmt.Sprintf("webtools: scrape of %s returned HTTP %d", e.URL, e.StatusCode)
}

// Permanent reports whether retrying cannot help (4xx).
func (e *ScrapeHTTPError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ScrapeFormatError signals unusable page content (not HTML, empty body).
type ScrapeFormatError struct {
	URL    string
	Detail string
}

func (e *ScrapeFormatError) Error() string {
	return fmt.Sprintf("webtools: scrape of %s: %s", e.URL, e.Detail)
}
