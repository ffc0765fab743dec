package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		base string
		page int
		want string
	}{
		{"https://breeders.example/list?state=tx", 1, "https://breeders.example/list?state=tx"},
		{"https://breeders.example/list?state=tx", 2, "https://breeders.example/list?page=2"},
		{"https://breeders.example/list", 7, "https://breeders.example/list?page=7"},
		{"https://breeders.example/list?page=3", 4, "https://breeders.example/list?page=4"},
	}
	for _, tt := range tests {
		got, err := PageURL(tt.base, tt.page)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := PageURL("https://breeders.example/list", 0)
	require.Error(t, err)
}

func TestCanonicalURL(t *testing.T) {
	got, err := CanonicalURL("  https://breeders.example/list?page=3#top ")
	require.NoError(t, err)
	require.Equal(t, "https://breeders.example/list", got)

	got, err = CanonicalURL("https://breeders.example/list?state=tx&page=2")
	require.NoError(t, err)
	require.Equal(t, "https://breeders.example/list?state=tx", got)

	got, err = CanonicalURL("https://breeders.example/list?")
	require.NoError(t, err)
	require.Equal(t, "https://breeders.example/list", got)

	for _, bad := range []string{"", "breeders.example/list", "ftp://breeders.example", "https://", "::::"} {
		_, err := CanonicalURL(bad)
		require.Error(t, err, bad)
	}
}

func TestCanonicalURLKeepsQueryOrderAndEscaping(t *testing.T) {
	raw := "https://breeders.example/dir?state=TX&breed=lab%20mix"
	got, err := CanonicalURL(raw)
	require.NoError(t, err)
	require.Equal(t, raw, got)

	first, err := PageURL(got, 1)
	require.NoError(t, err)
	require.Equal(t, raw, first)

	got, err = CanonicalURL("https://breeders.example/dir?state=TX&page=3&breed=lab%20mix&pag%65=4")
	require.NoError(t, err)
	require.Equal(t, raw, got)

	got, err = CanonicalURL("https://breeders.example/dir?pages=2&page")
	require.NoError(t, err)
	require.Equal(t, "https://breeders.example/dir?pages=2", got)
}

func newDirectoryServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RequestURI())
		mu.Unlock()
		switch r.URL.Query().Get("page") {
		case "", "1", "2":
			fmt.Fprintf(w, "<table><tr><th>n</th></tr><tr><td>page %s</td><td>1</td><td>x</td></tr></table>", r.URL.Query().Get("page"))
		case "9":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestHTTPFetcher(t *testing.T) {
	srv, seen := newDirectoryServer(t)
	f := NewHTTPFetcher(5 * time.Second)

	p, err := f.Fetch(context.Background(), srv.URL+"/list?state=tx", 1)
	require.NoError(t, err)
	require.Equal(t, 200, p.StatusCode)
	require.Contains(t, p.HTML, "<table>")

	p, err = f.Fetch(context.Background(), srv.URL+"/list?state=tx", 2)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/list?page=2", p.URL)
	require.Equal(t, []string{"/list?state=tx", "/list?page=2"}, *seen)

	_, err = f.Fetch(context.Background(), srv.URL+"/list", 5)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
	require.Equal(t, 5, fe.Page)
}

func TestHTTPFetcherTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), addr, 1)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	require.Zero(t, fe.StatusCode)
	require.Error(t, fe.Unwrap())
}

func TestCollyFetcher(t *testing.T) {
	srv, _ := newDirectoryServer(t)
	f := NewCollyFetcher(5 * time.Second)

	p, err := f.Fetch(context.Background(), srv.URL+"/list", 2)
	require.NoError(t, err)
	require.Contains(t, p.HTML, "page 2")

	// Same URL again must not be deduplicated by the collector.
	p, err = f.Fetch(context.Background(), srv.URL+"/list", 2)
	require.NoError(t, err)
	require.Contains(t, p.HTML, "page 2")

	_, err = f.Fetch(context.Background(), srv.URL+"/list", 9)
	var fe *Error
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusInternalServerError, fe.StatusCode)
}

type stubFetcher struct {
	mu    sync.Mutex
	times []time.Time
}

func (s *stubFetcher) Fetch(_ context.Context, baseURL string, page int) (*Page, error) {
	s.mu.Lock()
	s.times = append(s.times, time.Now())
	s.mu.Unlock()
	return &Page{URL: baseURL, Number: page, StatusCode: 200}, nil
}

func TestThrottledSpacesSameHost(t *testing.T) {
	stub := &stubFetcher{}
	spacing := 60 * time.Millisecond
	f := Throttled(stub, NewHostLimiter(spacing))

	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), "https://breeders.example/list", n)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, stub.times, 3)
	first, last := stub.times[0], stub.times[0]
	for _, ts := range stub.times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	require.GreaterOrEqual(t, last.Sub(first), 2*spacing-10*time.Millisecond)
}

func TestThrottledCancelled(t *testing.T) {
	f := Throttled(&stubFetcher{}, NewHostLimiter(time.Hour))
	_, err := f.Fetch(context.Background(), "https://breeders.example/a", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, "https://breeders.example/a", 2)
	var fe *Error
	require.True(t, errors.As(err, &fe))
}

func TestNewBackend(t *testing.T) {
	f, closeFn, err := NewBackend(BackendOptions{Name: "http", Timeout: time.Second})
	require.NoError(t, err)
	require.IsType(t, &HTTPFetcher{}, f)
	require.Equal(t, StrategyDesktop, f.(*HTTPFetcher).strategy)
	require.NoError(t, closeFn())

	f, _, err = NewBackend(BackendOptions{Name: "colly", Timeout: time.Second, HeaderProfile: "bot"})
	require.NoError(t, err)
	require.IsType(t, &CollyFetcher{}, f)
	require.Equal(t, StrategyBot, f.(*CollyFetcher).strategy)

	_, _, err = NewBackend(BackendOptions{Name: "carrier-pigeon", Timeout: time.Second})
	require.Error(t, err)

	_, _, err = NewBackend(BackendOptions{Name: "http", Timeout: time.Second, HeaderProfile: "tablet"})
	require.Error(t, err)
}

func newUserAgentServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		fmt.Fprint(w, "<table><tr><th>n</th></tr></table>")
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), agents...)
	}
}

func TestHeaderProfileReachesRequest(t *testing.T) {
	for _, backend := range []string{"http", "colly"} {
		for _, profile := range []string{"mobile", "bot"} {
			t.Run(backend+"/"+profile, func(t *testing.T) {
				srv, agents := newUserAgentServer(t)
				strategy, err := ParseHeaderStrategy(profile)
				require.NoError(t, err)

				f, closeFn, err := NewBackend(BackendOptions{Name: backend, Timeout: 5 * time.Second, HeaderProfile: profile})
				require.NoError(t, err)
				defer closeFn()

				_, err = f.Fetch(context.Background(), srv.URL+"/list", 1)
				require.NoError(t, err)
				require.Equal(t, []string{Profile(strategy).UserAgent}, agents())
			})
		}
	}
}
