package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/gocolly/colly"
)

const (
	collyBodyKey   = "body"
	collyStatusKey = "status"
)

// CollyFetcher drives a synchronous colly collector, one request per call.
// The collector is shared, so revisits are allowed and each request carries
// its own colly context.
type CollyFetcher struct {
	c        *colly.Collector
	strategy HeaderStrategy
}

func NewCollyFetcher(timeout time.Duration) *CollyFetcher {
	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(timeout)

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(collyBodyKey, string(r.Body))
		r.Ctx.Put(collyStatusKey, r.StatusCode)
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(collyStatusKey, r.StatusCode)
		}
	})
	return &CollyFetcher{c: c, strategy: StrategyDesktop}
}

func (f *CollyFetcher) WithStrategy(s HeaderStrategy) *CollyFetcher {
	f.strategy = s
	return f
}

func (f *CollyFetcher) Fetch(ctx context.Context, baseURL string, page int) (*Page, error) {
	target, err := PageURL(baseURL, page)
	if err != nil {
		return nil, &Error{URL: baseURL, Page: page, Message: err.Error(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{URL: target, Page: page, Message: "request cancelled", Err: err}
	}

	hdr := http.Header{}
	for k, v := range Profile(f.strategy).Headers() {
		hdr.Set(k, v)
	}

	cctx := colly.NewContext()
	if err := f.c.Request(http.MethodGet, target, nil, cctx, hdr); err != nil {
		status, _ := cctx.GetAny(collyStatusKey).(int)
		return nil, &Error{URL: target, Page: page, StatusCode: status, Message: err.Error(), Err: err}
	}

	status, _ := cctx.GetAny(collyStatusKey).(int)
	if !isSuccess(status) {
		return nil, &Error{URL: target, Page: page, StatusCode: status, Message: http.StatusText(status)}
	}
	return &Page{URL: target, Number: page, HTML: cctx.Get(collyBodyKey), StatusCode: status}, nil
}
