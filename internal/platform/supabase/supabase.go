// Package supabase builds the shared supabase client used by the durable
// cache table and the page archive bucket.
package supabase

import (
	"fmt"

	supa "github.com/antoineross/supabase-go"
)

type Options struct {
	URL        string
	ServiceKey string
}

func New(opts Options) (*supa.Client, error) {
	if opts.URL == "" || opts.ServiceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	client, err := supa.NewClient(opts.URL, opts.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return client, nil
}
