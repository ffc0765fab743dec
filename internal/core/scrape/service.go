package scrape

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"breederchat/internal/core/archive"
	"breederchat/internal/core/cache"
	"breederchat/internal/core/extract"
	"breederchat/internal/core/fetch"
	"breederchat/internal/core/record"
	"breederchat/internal/core/session"
	"breederchat/internal/logger"
	"breederchat/internal/metrics"
)

type Options struct {
	// PageDelay separates successive network fetches inside one range request.
	PageDelay     time.Duration
	FetchTimeout  time.Duration
	MaxRangePages int
	// PreviewLimit bounds the page preview attached to NotFound errors.
	PreviewLimit int
}

func DefaultOptions() Options {
	return Options{PageDelay: 500 * time.Millisecond, FetchTimeout: 30 * time.Second, MaxRangePages: 6, PreviewLimit: 500}
}

type Deps struct {
	Fetcher   fetch.Fetcher
	Extractor extract.Extractor
	Cache     cache.Cache
	Archive   archive.Archiver
	Sessions  *session.Store
	Metrics   *metrics.Metrics
}

// Service is the scrape orchestrator. Each call holds the session lock for
// its whole duration, so calls on one session are serialized while calls on
// different sessions run in parallel.
type Service struct {
	fetcher   fetch.Fetcher
	extractor extract.Extractor
	cache     cache.Cache
	archive   archive.Archiver
	sessions  *session.Store
	metrics   *metrics.Metrics
	opts      Options
	log       *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewService(d Deps, opts Options) *Service {
	s := &Service{
		fetcher:   d.Fetcher,
		extractor: d.Extractor,
		cache:     d.Cache,
		archive:   d.Archive,
		sessions:  d.Sessions,
		metrics:   d.Metrics,
		opts:      opts,
		log:       logger.New("ScrapeService"),
		sleep:     sleepCtx,
		now:       time.Now,
	}
	if s.extractor == nil {
		s.extractor = extract.NewTableExtractor()
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.archive == nil {
		s.archive = archive.Noop{}
	}
	if s.opts.MaxRangePages < 1 {
		s.opts.MaxRangePages = DefaultOptions().MaxRangePages
	}
	if s.opts.FetchTimeout <= 0 {
		s.opts.FetchTimeout = DefaultOptions().FetchTimeout
	}
	return s
}

func (s *Service) Sessions() *session.Store { return s.sessions }

// Scrape runs one request against its session. Every returned error is a *Error.
func (s *Service) Scrape(ctx context.Context, req Request) (*Result, error) {
	sess, id, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()
	return s.ScrapeLocked(ctx, sess, id, req)
}

// Resolve finds the session req runs against. Pagination needs an existing
// session; the other variants create one when the id is empty or unknown.
func (s *Service) Resolve(req Request) (*session.Session, string, error) {
	variant, err := req.Variant()
	if err != nil {
		s.metrics.ScrapeRequest("invalid", string(CodeOf(err)))
		return nil, "", err
	}
	if variant == VariantNextPage {
		sess, ok := s.sessions.Get(req.SessionID)
		if !ok || req.SessionID == "" {
			s.metrics.ScrapeRequest(string(variant), string(CodeNoPriorURL))
			return nil, "", newError(CodeNoPriorURL, "no previous search to continue; send a url first", nil)
		}
		return sess, req.SessionID, nil
	}
	sess, id := s.sessions.GetOrCreate(req.SessionID)
	return sess, id, nil
}

// ScrapeLocked runs req against sess. The caller holds the session lock,
// which lets it read or extend the session in the same critical section.
func (s *Service) ScrapeLocked(ctx context.Context, sess *session.Session, id string, req Request) (*Result, error) {
	variant, err := req.Variant()
	if err != nil {
		s.metrics.ScrapeRequest("invalid", string(CodeOf(err)))
		return nil, err
	}

	var res *Result
	switch variant {
	case VariantInitial:
		res, err = s.initial(ctx, sess, req)
	case VariantNextPage:
		res, err = s.nextPage(ctx, sess, req)
	case VariantPageRange:
		res, err = s.pageRange(ctx, sess, req)
	}
	if err != nil {
		s.metrics.ScrapeRequest(string(variant), string(CodeOf(err)))
		s.log.Info().Str("session", id).Str("variant", string(variant)).Err(err).Msg("scrape failed")
		return nil, err
	}

	res.SessionID = id
	res.Variant = variant
	res.TotalItems = len(res.Records)
	s.metrics.ScrapeRequest(string(variant), "OK")
	s.log.Info().Str("session", id).Str("variant", string(variant)).Int("page", res.Page).Int("items", res.TotalItems).Msg("scrape complete")
	return res, nil
}

func (s *Service) initial(ctx context.Context, sess *session.Session, req Request) (*Result, error) {
	base, err := fetch.CanonicalURL(req.URL)
	if err != nil {
		return nil, newError(CodeInvalidRequest, err.Error(), nil)
	}

	if entry, ok := s.lookup(ctx, base); ok && len(entry.Records) > 0 {
		recs := record.Merge(nil, entry.Records)
		sess.Reset(base)
		sess.Pages[1] = recs
		sess.CurrentPage = 1
		sess.Results = recs
		return &Result{
			Message:   fmt.Sprintf("Loaded %d breeders from cache.", len(recs)),
			Records:   recs,
			Page:      1,
			HasMore:   true,
			FromCache: true,
		}, nil
	}

	page, html, err := s.fetchPage(ctx, base, 1)
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, &Error{
			Code:    CodeNotFound,
			Message: "no breeder records found at this url",
			URL:     base,
			Page:    1,
			Details: extract.Preview(html, s.opts.PreviewLimit),
		}
	}

	recs := record.Merge(nil, page.Records)
	sess.Reset(base)
	sess.Pages[1] = recs
	sess.CurrentPage = 1
	sess.Results = recs
	s.persist(ctx, base, recs, 1)

	return &Result{
		Message: fmt.Sprintf("Found %d breeders on page 1.", len(recs)),
		Records: recs,
		Page:    1,
		HasMore: extract.HasMorePages(page, len(recs)),
	}, nil
}

func (s *Service) nextPage(ctx context.Context, sess *session.Session, req Request) (*Result, error) {
	if sess.LastURL == "" {
		return nil, newError(CodeNoPriorURL, "no previous search to continue; send a url first", nil)
	}
	if req.URL != "" {
		base, err := fetch.CanonicalURL(req.URL)
		if err != nil || base != sess.LastURL {
			return nil, &Error{Code: CodeInvalidRequest, Message: "pagination continues the session's last url; send a new url without pagination to start over", URL: req.URL}
		}
	}

	target := sess.CurrentPage + 1
	recs, cached := sess.Pages[target]
	hasMore := true
	if cached {
		s.metrics.PageCacheHit()
	} else {
		page, _, err := s.fetchPage(ctx, sess.LastURL, target)
		if err != nil {
			return nil, err
		}
		if len(page.Records) == 0 {
			return nil, &Error{
				Code:    CodeNoMoreResults,
				Message: fmt.Sprintf("no more results after page %d", sess.CurrentPage),
				URL:     sess.LastURL,
				Page:    target,
			}
		}
		recs = record.NormalizeAll(page.Records)
		sess.Pages[target] = recs
		if page.TotalEntries != nil {
			hasMore = len(record.Merge(sess.Results, recs)) < *page.TotalEntries
		}
	}

	sess.CurrentPage = target
	sess.Results = record.Merge(sess.Results, recs)
	s.persist(ctx, sess.LastURL, sess.Results, target)

	return &Result{
		Message: fmt.Sprintf("Loaded page %d; %d breeders so far.", target, len(sess.Results)),
		Records: sess.Results,
		Page:    target,
		HasMore: hasMore,
	}, nil
}

func (s *Service) pageRange(ctx context.Context, sess *session.Session, req Request) (*Result, error) {
	base := sess.LastURL
	if req.URL != "" {
		u, err := fetch.CanonicalURL(req.URL)
		if err != nil {
			return nil, newError(CodeInvalidRequest, err.Error(), nil)
		}
		base = u
	}
	if base == "" {
		return nil, newError(CodeInvalidRequest, "url is required for a page range when the session has no previous search", nil)
	}
	rng, err := req.PageRange.Clamp(s.opts.MaxRangePages)
	if err != nil {
		return nil, err
	}

	// Work on a copy; the session is only updated once the loop has a result.
	pages := make(map[int][]record.Record)
	if base == sess.LastURL && sess.Pages != nil {
		pages = maps.Clone(sess.Pages)
	}

	var (
		last      int
		fetched   bool
		exhausted bool
		failure   *Error
		total     *int
	)
	for p := rng.Start; p <= rng.End; p++ {
		if _, ok := pages[p]; ok {
			s.metrics.PageCacheHit()
			last = p
			continue
		}
		if fetched {
			if err := s.sleep(ctx, s.opts.PageDelay); err != nil {
				failure = &Error{Code: CodeFetchFailed, Message: "request cancelled", URL: base, Page: p, Err: err}
				break
			}
		}
		fetched = true

		page, _, err := s.fetchPage(ctx, base, p)
		if err != nil {
			errors.As(err, &failure)
			break
		}
		if len(page.Records) == 0 {
			exhausted = true
			break
		}
		pages[p] = record.NormalizeAll(page.Records)
		if page.TotalEntries != nil {
			total = page.TotalEntries
		}
		last = p
	}

	window := make([][]record.Record, 0, max(0, last-rng.Start+1))
	for p := rng.Start; p <= last; p++ {
		window = append(window, pages[p])
	}
	results := record.MergePages(window...)

	if len(results) == 0 {
		if failure != nil {
			return nil, failure
		}
		return nil, &Error{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("no breeder records found in pages %d-%d", rng.Start, rng.End),
			URL:     base,
			Page:    rng.Start,
		}
	}

	if base != sess.LastURL {
		sess.Reset(base)
	}
	sess.Pages = pages
	sess.CurrentPage = last
	sess.Results = results
	s.persist(ctx, base, results, last)

	res := &Result{
		Message:   fmt.Sprintf("Loaded pages %d-%d; %d breeders.", rng.Start, last, len(results)),
		Records:   results,
		Page:      last,
		PageRange: &PageRange{Start: rng.Start, End: rng.End},
		HasMore:   !exhausted && (total == nil || len(results) < *total),
	}
	if failure != nil {
		res.Incomplete = true
		res.HasMore = true
		res.Warning = fmt.Sprintf("stopped at page %d: %s; results cover pages %d-%d only", failure.Page, failure.Message, rng.Start, last)
	}
	return res, nil
}

// fetchPage fetches and extracts one page under the per-fetch timeout.
func (s *Service) fetchPage(ctx context.Context, base string, n int) (extract.Result, string, error) {
	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	p, err := s.fetcher.Fetch(fctx, base, n)
	if err != nil {
		s.metrics.Fetch("error")
		return extract.Result{}, "", fetchFailed(base, n, err)
	}
	s.metrics.Fetch("ok")
	s.archivePage(ctx, p)

	res, err := s.extractor.Extract(p.HTML)
	if err != nil {
		return extract.Result{}, "", &Error{Code: CodeServiceError, Message: "could not read page content", URL: p.URL, Page: n, Err: err}
	}
	return res, p.HTML, nil
}

func fetchFailed(base string, n int, err error) *Error {
	e := &Error{Code: CodeFetchFailed, Message: fmt.Sprintf("failed to fetch page %d", n), URL: base, Page: n, Err: err}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		e.URL = fe.URL
		if fe.StatusCode != 0 {
			e.Message = fmt.Sprintf("failed to fetch page %d: http status %d", n, fe.StatusCode)
		}
		e.Details = fe.Error()
	} else {
		e.Details = err.Error()
	}
	return e
}

func (s *Service) lookup(ctx context.Context, url string) (cache.Entry, bool) {
	e, ok, err := s.cache.Lookup(ctx, url)
	switch {
	case err != nil:
		s.metrics.DurableCache("lookup", "error")
		s.log.LogWarnf("durable cache lookup %s: %v", url, err)
		return cache.Entry{}, false
	case ok:
		s.metrics.DurableCache("lookup", "hit")
	default:
		s.metrics.DurableCache("lookup", "miss")
	}
	return e, ok
}

// persist is the single catch point for durable cache writes.
func (s *Service) persist(ctx context.Context, url string, recs []record.Record, pageCount int) {
	err := s.cache.Upsert(ctx, cache.Entry{URL: url, Records: recs, PageCount: pageCount, ScrapedAt: s.now().UTC()})
	if err != nil {
		s.metrics.DurableCache("upsert", "error")
		s.log.LogWarnf("durable cache upsert %s: %v", url, err)
		return
	}
	s.metrics.DurableCache("upsert", "ok")
}

func (s *Service) archivePage(ctx context.Context, p *fetch.Page) {
	if err := s.archive.Archive(ctx, p); err != nil {
		s.log.LogWarnf("archive %s: %v", p.URL, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
