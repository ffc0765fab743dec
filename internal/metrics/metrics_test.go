package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Fetch("ok")
	m.PageCacheHit()
	m.DurableCache("lookup", "hit")
	m.ScrapeRequest("initial", "OK")
	m.ChatReply("ok")
	m.SetSessions(3)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Fetch("ok")
	m.Fetch("error")
	m.ScrapeRequest("page_range", "NOT_FOUND")
	m.SetSessions(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	require.Contains(t, out, `breederchat_page_fetches_total{outcome="ok"} 1`)
	require.Contains(t, out, `breederchat_scrape_requests_total{code="NOT_FOUND",variant="page_range"} 1`)
	require.Contains(t, out, `breederchat_sessions_live 2`)
}
