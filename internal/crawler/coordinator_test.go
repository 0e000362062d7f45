package crawler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/elijahthis/pitscrapy/internal/parser"
	"github.com/elijahthis/pitscrapy/internal/shared"
	"github.com/elijahthis/pitscrapy/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><script>console.log(1)</script></head>
<body><a href="/a">a</a><a>no href</a><a href="https://x.com/b">b</a><img src="/img.png"></body></html>`

func newTestScraper(t *testing.T, base string, opts ...Option) *Scraper {
	t.Helper()
	return NewScraper(
		NewWebFetcher("PitScrapy/test", time.Second),
		parser.NewHTMLParser(),
		storage.NewPersister(storage.NewFileStorage(base)),
		opts...,
	)
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readFile(t *testing.T, path ...string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(path...))
	require.NoError(t, err)
	return string(data)
}

func TestExtractAllEndToEnd(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePage)
	base := filepath.Join(t.TempDir(), "data_found")

	report, err := newTestScraper(t, base).ExtractAll(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, "/a\nhttps://x.com/b\n", readFile(t, base, "links", "links_found.txt"))
	assert.Equal(t, "/img.png\n", readFile(t, base, "images", "images_found.txt"))
	assert.Equal(t, "console.log(1)\n", readFile(t, base, "scripts_without_src", "scripts_without_src_found.js"))
	assert.Equal(t, samplePage, readFile(t, base, "source_code.html"))

	assert.NoDirExists(t, filepath.Join(base, "videos"))
	assert.NoDirExists(t, filepath.Join(base, "scripts_with_src"))

	require.Len(t, report.Outcomes, 5)
	for _, o := range report.Outcomes {
		switch o.Category {
		case shared.Videos, shared.ScriptsWithSrc:
			assert.ErrorIs(t, o.Err, shared.ErrEmptyResult)
		default:
			assert.NoError(t, o.Err)
		}
	}
	require.NotNil(t, report.Source)
	assert.Equal(t, filepath.Join(base, "source_code.html"), report.Source.Path)
}

func TestExtractAllWritesUTF8ForLatin1Page(t *testing.T) {
	latin1 := "<html><head><meta charset=\"iso-8859-1\"></head><body><a href=\"/caf\xe9\">x</a></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, latin1)
	}))
	defer srv.Close()
	base := t.TempDir()

	_, err := newTestScraper(t, base).ExtractAll(context.Background(), srv.URL)
	require.NoError(t, err)

	links := readFile(t, base, "links", "links_found.txt")
	assert.Equal(t, "/café\n", links)
	assert.True(t, utf8.ValidString(links))
	// the source artifact keeps the bytes as served
	assert.Equal(t, latin1, readFile(t, base, "source_code.html"))
}

func TestExtractAllRerunOverwrites(t *testing.T) {
	var body atomic.Value
	body.Store(samplePage)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body.Load().(string))
	}))
	defer srv.Close()
	base := t.TempDir()
	s := newTestScraper(t, base)

	_, err := s.ExtractAll(context.Background(), srv.URL)
	require.NoError(t, err)

	body.Store(`<a href="/only"></a>`)
	_, err = s.ExtractAll(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "/only\n", readFile(t, base, "links", "links_found.txt"))
	assert.Equal(t, `<a href="/only"></a>`, readFile(t, base, "source_code.html"))
}

func TestExtractAllInvalidURLMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	base := filepath.Join(t.TempDir(), "out")
	s := newTestScraper(t, base)

	for _, u := range []string{"example.com", "ftp://" + srv.Listener.Addr().String(), "http://", "/relative"} {
		_, err := s.ExtractAll(context.Background(), u)
		assert.ErrorIs(t, err, shared.ErrInvalidURL, u)
	}
	assert.Zero(t, hits.Load())
	assert.NoDirExists(t, base)
}

func TestExtractAllFetchFailureWritesNothing(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, samplePage)
	base := filepath.Join(t.TempDir(), "out")

	report, err := newTestScraper(t, base).ExtractAll(context.Background(), srv.URL)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, shared.ErrFetchFailed)
	assert.NoDirExists(t, base)
}

func TestExtractAllTimeoutWritesNothing(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	base := filepath.Join(t.TempDir(), "out")
	s := NewScraper(
		NewWebFetcher("", 50*time.Millisecond),
		parser.NewHTMLParser(),
		storage.NewPersister(storage.NewFileStorage(base)),
	)

	_, err := s.ExtractAll(context.Background(), srv.URL)
	assert.ErrorIs(t, err, shared.ErrFetchTimeout)
	assert.NotErrorIs(t, err, shared.ErrFetchFailed)
	assert.NoDirExists(t, base)
}

type brokenParser struct{}

func (brokenParser) Parse(ctx context.Context, r io.Reader, contentType string) (*shared.Document, error) {
	return nil, errors.New("malformed")
}

func TestExtractAllUnparsableWritesOnlySource(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePage)
	base := t.TempDir()
	s := NewScraper(
		NewWebFetcher("", time.Second),
		brokenParser{},
		storage.NewPersister(storage.NewFileStorage(base)),
	)

	report, err := s.ExtractAll(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Zero(t, report.Results.Total())
	for _, o := range report.Outcomes {
		assert.ErrorIs(t, o.Err, shared.ErrEmptyResult)
	}
	assert.Equal(t, samplePage, readFile(t, base, "source_code.html"))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type selectiveStorage struct {
	*storage.FileStorage
	fail string
}

func (s selectiveStorage) Save(ctx context.Context, key string, data []byte) error {
	if key == s.fail {
		return os.ErrPermission
	}
	return s.FileStorage.Save(ctx, key, data)
}

func TestExtractAllStorageErrorIsIsolated(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePage)
	base := t.TempDir()
	store := selectiveStorage{FileStorage: storage.NewFileStorage(base), fail: shared.Links.Key()}
	s := NewScraper(NewWebFetcher("", time.Second), parser.NewHTMLParser(), storage.NewPersister(store))

	report, err := s.ExtractAll(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.ErrorIs(t, report.Err(), shared.ErrStorage)
	assert.NoFileExists(t, filepath.Join(base, "links", "links_found.txt"))
	assert.FileExists(t, filepath.Join(base, "images", "images_found.txt"))
	assert.FileExists(t, filepath.Join(base, "source_code.html"))
}

func TestExtractCategories(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePage)
	base := t.TempDir()

	report, err := newTestScraper(t, base).ExtractCategories(context.Background(), srv.URL, shared.Images, shared.Videos)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.NoError(t, report.Outcomes[0].Err)
	assert.ErrorIs(t, report.Outcomes[1].Err, shared.ErrEmptyResult)
	assert.FileExists(t, filepath.Join(base, "images", "images_found.txt"))
	assert.NoDirExists(t, filepath.Join(base, "links"))
	assert.NoFileExists(t, filepath.Join(base, "source_code.html"))
	// the report still exposes every category of the snapshot
	assert.Equal(t, []string{"/a", "https://x.com/b"}, report.Results.Links)
}

func TestSourceAndSaveSource(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePage)
	base := t.TempDir()
	s := newTestScraper(t, base)

	raw, err := s.Source(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, samplePage, string(raw))
	assert.NoFileExists(t, filepath.Join(base, "source_code.html"))

	report, err := s.SaveSource(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, samplePage, readFile(t, base, "source_code.html"))
}

type denyAll struct{}

func (denyAll) IsAllowed(ctx context.Context, targetURL string) bool { return false }

func TestLoadRespectsRobots(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePage)

	_, err := newTestScraper(t, t.TempDir(), WithRobots(denyAll{})).Load(context.Background(), srv.URL)
	assert.ErrorIs(t, err, shared.ErrRobotsDisallowed)
}

type countingLimiter struct{ calls []string }

func (c *countingLimiter) Wait(ctx context.Context, domain string, delay time.Duration) error {
	c.calls = append(c.calls, domain)
	return errors.New("redis down")
}

func TestLoadWaitsOnLimiter(t *testing.T) {
	srv := serve(t, http.StatusOK, samplePage)
	l := &countingLimiter{}

	page, err := newTestScraper(t, t.TempDir(), WithRateLimiter(l, time.Second)).Load(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{srv.Listener.Addr().String()}, l.calls)
	assert.Equal(t, []string{"/img.png"}, page.Results().Images)
}
