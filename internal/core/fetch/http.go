package fetch

import (
	"context"
	"time"

	"breederchat/internal/logger"

	"github.com/go-resty/resty/v2"
)

// HTTPFetcher issues a plain GET with a browser-like header profile.
type HTTPFetcher struct {
	client   *resty.Client
	strategy HeaderStrategy
	log      *logger.Logger
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &HTTPFetcher{client: client, strategy: StrategyDesktop, log: logger.New("HTTPFetcher")}
}

// WithStrategy switches the header profile family.
func (f *HTTPFetcher) WithStrategy(s HeaderStrategy) *HTTPFetcher {
	f.strategy = s
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, baseURL string, page int) (*Page, error) {
	target, err := PageURL(baseURL, page)
	if err != nil {
		return nil, &Error{URL: baseURL, Page: page, Message: err.Error(), Err: err}
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(Profile(f.strategy).Headers()).
		Get(target)
	if err != nil {
		f.log.LogDebugf("GET %s failed: %v", target, err)
		return nil, &Error{URL: target, Page: page, Message: "request failed", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &Error{URL: target, Page: page, StatusCode: resp.StatusCode(), Message: resp.Status()}
	}
	return &Page{URL: target, Number: page, HTML: resp.String(), StatusCode: resp.StatusCode()}, nil
}
