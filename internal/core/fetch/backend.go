package fetch

import (
	"fmt"
	"time"
)

// BackendOptions configures NewBackend.
type BackendOptions struct {
	// Name is the FETCH_BACKEND value: http, colly or browser.
	Name    string
	Timeout time.Duration
	// HeaderProfile is the FETCH_HEADER_PROFILE value: desktop, mobile or bot.
	HeaderProfile string
}

// NewBackend returns the configured fetcher and a function releasing what
// it holds.
func NewBackend(opts BackendOptions) (Fetcher, func() error, error) {
	strategy, err := ParseHeaderStrategy(opts.HeaderProfile)
	if err != nil {
		return nil, nil, err
	}
	noop := func() error { return nil }
	switch opts.Name {
	case "", "http":
		return NewHTTPFetcher(opts.Timeout).WithStrategy(strategy), noop, nil
	case "colly":
		return NewCollyFetcher(opts.Timeout).WithStrategy(strategy), noop, nil
	case "browser":
		b := NewBrowserFetcher(opts.Timeout).WithStrategy(strategy)
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetch backend %q", opts.Name)
	}
}
