package ghrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

const repoHTML = `
<html><body>
  <p class="f4 my-3">A fast HTML parser for Go.</p>
  <span id="repo-stars-counter-star">12.3k</span>
  <span id="repo-network-counter">987</span>
  <li class="d-inline"><span class="color-fg-default">Go</span></li>
  <a class="topic-tag" href="/topics/parser">parser</a>
  <a class="topic-tag" href="/topics/html">html</a>
</body></html>`

type fakeSession struct {
	pages   map[string]string
	current string
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	if _, ok := s.pages[url]; !ok {
		return &scrape.NavigationError{URL: url, Err: errors.New("404")}
	}
	s.current = url
	return nil
}

func (s *fakeSession) WaitVisible(context.Context, string) error { return nil }
func (s *fakeSession) Click(context.Context, string) error       { return errors.New("not supported") }
func (s *fakeSession) HTML(context.Context) (string, error)      { return s.pages[s.current], nil }
func (s *fakeSession) Close() error                              { return nil }

type fakeBrowser struct{ session *fakeSession }

func (b *fakeBrowser) NewSession(context.Context) (scrape.Session, error) {
	return b.session, nil
}

func TestTask_SummarizesRepository(t *testing.T) {
	t.Parallel()

	session := &fakeSession{pages: map[string]string{
		"https://github.com/someone/parser": repoHTML,
	}}
	task := New()
	result, err := task.Run(context.Background(), scrape.RunInput{
		Params:  scrape.Params{"repo": "someone/parser"},
		Browser: &fakeBrowser{session: session},
	})
	require.NoError(t, err)
	require.Equal(t, "someone/parser", result["repo"])
	require.Equal(t, "A fast HTML parser for Go.", result["description"])
	require.Equal(t, "12.3k", result["stars"])
	require.Equal(t, "987", result["forks"])
	require.Equal(t, "Go", result["language"])
	require.Equal(t, []string{"parser", "html"}, result["topics"])
}

func TestTask_AcceptsFullURL(t *testing.T) {
	t.Parallel()

	session := &fakeSession{pages: map[string]string{
		"https://github.com/someone/parser": repoHTML,
	}}
	task := New()
	result, err := task.Run(context.Background(), scrape.RunInput{
		Params:  scrape.Params{"repo": "https://github.com/someone/parser/"},
		Browser: &fakeBrowser{session: session},
	})
	require.NoError(t, err)
	require.Equal(t, "someone/parser", result["repo"])
}

func TestTask_ValidatesRepoParam(t *testing.T) {
	t.Parallel()

	task := New()
	browser := &fakeBrowser{session: &fakeSession{pages: map[string]string{}}}
	var paramErr *scrape.ParamError

	_, err := task.Run(context.Background(), scrape.RunInput{Params: nil, Browser: browser})
	require.ErrorAs(t, err, &paramErr)

	_, err = task.Run(context.Background(), scrape.RunInput{
		Params:  scrape.Params{"repo": "not a repo path"},
		Browser: browser,
	})
	require.ErrorAs(t, err, &paramErr)
}
