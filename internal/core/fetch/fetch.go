// Package fetch retrieves pages of the breeder directory. Page 1 is the base
// URL as given; page N>1 is the base URL with its query replaced by ?page=N.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Page is the raw result of one successful fetch.
type Page struct {
	URL        string
	Number     int
	HTML       string
	StatusCode int
}

type Fetcher interface {
	Fetch(ctx context.Context, baseURL string, page int) (*Page, error)
}

// Error is returned for every non-success response and transport failure.
type Error struct {
	URL        string
	Page       int
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (page %d): status %d: %s", e.URL, e.Page, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s (page %d): %s", e.URL, e.Page, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CanonicalURL validates raw as an absolute http(s) URL and strips the
// fragment and any page parameter so it can serve as a session and cache key.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripPageParam(u.RawQuery)
	u.ForceQuery = false
	return u.String(), nil
}

// stripPageParam drops page pairs from a raw query, leaving the other pairs
// in their original order and escaping.
func stripPageParam(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil && k == "page" {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// PageURL builds the address of page n for baseURL.
func PageURL(baseURL string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", n)
	}
	if n == 1 {
		return baseURL, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", baseURL, err)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return u.String() + "?page=" + strconv.Itoa(n), nil
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
