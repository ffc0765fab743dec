package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"breederchat/internal/core/record"

	supa "github.com/antoineross/supabase-go"
)

// row is the scraped_data table layout. content holds the JSON-encoded records.
type row struct {
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	ScrapedAt time.Time `json:"scraped_at"`
	PageCount int       `json:"page_count"`
}

type Supabase struct {
	client *supa.Client
	table  string
}

func NewSupabase(client *supa.Client, table string) *Supabase {
	return &Supabase{client: client, table: table}
}

// The postgrest client takes no context, so ctx is only checked up front.
func (c *Supabase) Lookup(ctx context.Context, url string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	var rows []row
	_, err := c.client.From(c.table).
		Select("*", "", false).
		Eq("url", url).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return Entry{}, false, fmt.Errorf("supabase lookup %s: %w", url, err)
	}
	if len(rows) == 0 {
		return Entry{}, false, nil
	}
	return fromRow(rows[0])
}

func (c *Supabase) Upsert(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := toRow(e)
	if err != nil {
		return err
	}
	if _, _, err := c.client.From(c.table).Upsert(r, "url", "", "").Execute(); err != nil {
		return fmt.Errorf("supabase upsert %s: %w", e.URL, err)
	}
	return nil
}

func toRow(e Entry) (row, error) {
	b, err := json.Marshal(e.Records)
	if err != nil {
		return row{}, fmt.Errorf("encode records: %w", err)
	}
	return row{URL: e.URL, Content: string(b), ScrapedAt: e.ScrapedAt.UTC(), PageCount: e.PageCount}, nil
}

func fromRow(r row) (Entry, bool, error) {
	var recs []record.Record
	if err := json.Unmarshal([]byte(r.Content), &recs); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached content for %s: %w", r.URL, err)
	}
	return Entry{URL: r.URL, Records: record.NormalizeAll(recs), PageCount: r.PageCount, ScrapedAt: r.ScrapedAt}, true, nil
}
