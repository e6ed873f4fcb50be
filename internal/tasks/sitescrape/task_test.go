package sitescrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

type recordingSink struct {
	mu    sync.Mutex
	paths []string
	data  map[string][]byte
}

func (s *recordingSink) Put(_ context.Context, path string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.paths = append(s.paths, path)
	s.data[path] = data
	return "file:///tmp/" + path, nil
}

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
			Welcome <a href="/about">about</a> <a href="/contact">contact</a>
			<a href="https://elsewhere.invalid/off-site">offsite</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>About</title></head><body>About us <a href="/">home</a></body></html>`)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Contact</title></head><body>Mail us</body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestTask_CrawlsWithinHost(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	sink := &recordingSink{}
	task := New(Config{MaxPagesDefault: 25, MaxDepthDefault: 3, UserAgent: "browserjobs-test"})

	result, err := task.Run(context.Background(), scrape.RunInput{
		JobID:  "job-crawl",
		Params: scrape.Params{"url": site.URL},
		Sink:   sink,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result["page_count"])

	urls := result["urls"].([]string)
	require.Len(t, urls, 3)
	require.Contains(t, urls, site.URL+"/about")
	require.Contains(t, urls, site.URL+"/contact")
	for _, u := range urls {
		require.NotContains(t, u, "elsewhere.invalid")
	}
	require.Equal(t, []string{"scrape-site/job-crawl-pages.json"}, sink.paths)
	require.Equal(t, "file:///tmp/scrape-site/job-crawl-pages.json", result["pages_uri"])
}

func TestTask_RespectsMaxPages(t *testing.T) {
	t.Parallel()

	site := newTestSite(t)
	task := New(Config{MaxPagesDefault: 25, MaxDepthDefault: 3, UserAgent: "browserjobs-test"})

	result, err := task.Run(context.Background(), scrape.RunInput{
		JobID:  "job-capped",
		Params: scrape.Params{"url": site.URL, "max_pages": 1},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result["page_count"])
}

func TestTask_ValidatesStartURL(t *testing.T) {
	t.Parallel()

	task := New(Config{MaxPagesDefault: 25, MaxDepthDefault: 2})
	var paramErr *scrape.ParamError

	_, err := task.Run(context.Background(), scrape.RunInput{Params: nil})
	require.ErrorAs(t, err, &paramErr)

	_, err = task.Run(context.Background(), scrape.RunInput{Params: scrape.Params{"url": "not a url"}})
	require.ErrorAs(t, err, &paramErr)

	_, err = task.Run(context.Background(), scrape.RunInput{Params: scrape.Params{"url": "ftp://host/file"}})
	require.ErrorAs(t, err, &paramErr)
}

func TestTask_UnreachableSiteIsNavigationError(t *testing.T) {
	t.Parallel()

	task := New(Config{MaxPagesDefault: 5, MaxDepthDefault: 1})
	_, err := task.Run(context.Background(), scrape.RunInput{
		Params: scrape.Params{"url": "http://127.0.0.1:1/nothing-here"},
	})
	var navErr *scrape.NavigationError
	require.ErrorAs(t, err, &navErr)
}
