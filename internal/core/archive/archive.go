// Package archive keeps a copy of every fetched page in object storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"breederchat/internal/core/fetch"

	supa "github.com/antoineross/supabase-go"
	storage_go "github.com/supabase-community/storage-go"
)

type Archiver interface {
	Archive(ctx context.Context, p *fetch.Page) error
}

type Noop struct{}

func (Noop) Archive(context.Context, *fetch.Page) error { return nil }

// Uploader is the subset of the storage client used here.
type Uploader interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
}

type Supabase struct {
	storage Uploader
	bucket  string
	now     func() time.Time
}

func NewSupabase(client *supa.Client, bucket string) *Supabase {
	return &Supabase{storage: client.Storage, bucket: bucket, now: time.Now}
}

func (s *Supabase) Archive(ctx context.Context, p *fetch.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := ObjectPath(p, s.now())
	mime := "text/html; charset=utf-8"
	if _, err := s.storage.UploadFile(s.bucket, path, strings.NewReader(p.HTML), storage_go.FileOptions{ContentType: &mime}); err != nil {
		return fmt.Errorf("archive upload %s: %w", path, err)
	}
	return nil
}

// ObjectPath is pages/<host>/<unix-millis>_p<n>.html.
func ObjectPath(p *fetch.Page, at time.Time) string {
	host := "unknown"
	if u, err := url.Parse(p.URL); err == nil && u.Host != "" {
		host = strings.ReplaceAll(strings.ToLower(u.Host), ":", "_")
	}
	return fmt.Sprintf("pages/%s/%d_p%d.html", host, at.UnixMilli(), p.Number)
}
