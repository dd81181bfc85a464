package source

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// HTTP fetches the JSON event document from a URL.
type HTTP struct {
	URL    string
	Client *http.Client
}

// NewHTTP returns an HTTP provider with a bounded client timeout.
func NewHTTP(rawURL string) *HTTP {
	return &HTTP{URL: rawURL, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (h *HTTP) Name() string { return "http:" + RedactURL(h.URL) }

func (h *HTTP) Fetch(ctx context.Context) (Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Batch{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return Batch{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Batch{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return Decode(resp.Body, h.Name())
}

// StatusError reports a non-200 response from an HTTP provider.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string { return "unexpected status: " + e.Status }

// RedactURL hides path and query of a feed URL for logging, since private
// calendar links embed their access token.
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "url://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
