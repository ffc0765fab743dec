// Package cache is the durable, best-effort store of aggregated results per
// URL. Callers treat every error as non-fatal.
package cache

import (
	"context"
	"time"

	"breederchat/internal/core/record"
	rds "breederchat/internal/platform/redis"

	supa "github.com/antoineross/supabase-go"
)

// Entry mirrors the persisted row {url, content, scraped_at, page_count}.
type Entry struct {
	URL       string          `json:"url"`
	Records   []record.Record `json:"records"`
	PageCount int             `json:"page_count"`
	ScrapedAt time.Time       `json:"scraped_at"`
}

type Cache interface {
	// Lookup reports ok=false on a miss; err is reserved for backend failures.
	Lookup(ctx context.Context, url string) (Entry, bool, error)
	Upsert(ctx context.Context, e Entry) error
}

// Noop never hits and discards writes.
type Noop struct{}

func (Noop) Lookup(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }
func (Noop) Upsert(context.Context, Entry) error                { return nil }

// Select builds the durable cache named by backend. A backend whose client
// is missing degrades to Noop, since the cache is best-effort.
func Select(backend string, r *rds.Service, s *supa.Client, table string, ttl time.Duration) Cache {
	switch backend {
	case "redis":
		if r != nil {
			return NewRedis(r, ttl)
		}
	case "supabase":
		if s != nil {
			return NewSupabase(s, table)
		}
	}
	return Noop{}
}
