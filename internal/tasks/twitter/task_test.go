package twitter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// fakeSession serves canned HTML per URL. Each URL carries one page per
// successive visit so tests can model a timeline that renders differently
// between loads; the last entry repeats once the sequence is exhausted.
type fakeSession struct {
	pages   map[string][]string
	visits  map[string]int
	current string
	visited []string
	closed  bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{pages: map[string][]string{}, visits: map[string]int{}}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	if _, ok := s.pages[url]; !ok {
		return &scrape.NavigationError{URL: url, Err: errors.New("no such page")}
	}
	s.visits[url]++
	s.current = url
	s.visited = append(s.visited, url)
	return nil
}

func (s *fakeSession) WaitVisible(_ context.Context, selector string) error {
	html, err := s.HTML(context.Background())
	if err != nil {
		return err
	}
	// Approximate visibility with the presence of the selector's testid.
	token := selector[strings.Index(selector, `"`)+1:]
	token = token[:strings.Index(token, `"`)]
	if !strings.Contains(html, token) {
		return errors.New("element not visible: " + selector)
	}
	return nil
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	return errors.New("node not found: " + selector)
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	if s.current == "" {
		return "", errors.New("no page loaded")
	}
	seq := s.pages[s.current]
	idx := s.visits[s.current] - 1
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeBrowser struct{ session *fakeSession }

func (b *fakeBrowser) NewSession(context.Context) (scrape.Session, error) {
	return b.session, nil
}

func runTwitter(t *testing.T, session *fakeSession, params scrape.Params) map[string]any {
	t.Helper()
	result, err := New().Run(context.Background(), scrape.RunInput{
		JobID:   "job-test",
		Params:  params,
		Browser: &fakeBrowser{session: session},
	})
	require.NoError(t, err)
	return result
}

func TestTask_Level1ProfileOnly(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.pages[profileURL("janedev")] = []string{profileHTML("janedev", []string{"unread post"}, false)}

	result := runTwitter(t, session, scrape.Params{
		"username":     "janedev",
		"scrape_level": 1,
	})

	require.Equal(t, scrape.MethodLevel1, result["extraction_method"])
	profile := result["profile"].(map[string]any)
	require.Equal(t, "Jane Dev", profile["display_name"])
	require.Equal(t, 1200, profile["followers_count"])
	// Level 1 parses the header only, even when tweets are on the page.
	require.NotContains(t, result, "tweets")
	require.Len(t, session.visited, 1)
}

func TestTask_Level2IncludesTimeline(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.pages[profileURL("janedev")] = []string{
		profileHTML("janedev", []string{"first", "second"}, false),
	}

	result := runTwitter(t, session, scrape.Params{
		"username":     "@janedev",
		"scrape_level": 2,
	})

	require.Equal(t, scrape.MethodLevel2, result["extraction_method"])
	require.Equal(t, "janedev", result["username"])
	require.Equal(t, 4523, result["claimed_post_count"])
	require.Equal(t, 2, result["extracted_tweet_count"])
	tweets := result["tweets"].([]scrape.Review)
	require.Equal(t, "first", tweets[0].Text)
}

func TestTask_Level3CollectsMedia(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.pages[profileURL("janedev")] = []string{
		profileHTML("janedev", []string{"with picture"}, true),
	}

	result := runTwitter(t, session, scrape.Params{
		"username":     "janedev",
		"scrape_level": 3,
	})

	require.Equal(t, scrape.MethodLevel3, result["extraction_method"])
	profile := result["profile"].(map[string]any)
	require.Equal(t, []string{"https://pbs.twimg.com/media/img-1.jpg"}, profile["media_urls"])
}

func TestTask_Level4SamplesFollowers(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.pages[profileURL("janedev")] = []string{
		profileHTML("janedev", []string{"still posting"}, false),
	}
	session.pages[profileURL("janedev")+"/followers"] = []string{
		followersHTML([]string{"alpha", "beta"}),
	}

	result := runTwitter(t, session, scrape.Params{
		"username":     "janedev",
		"scrape_level": 4,
	})

	require.Equal(t, scrape.MethodLevel4, result["extraction_method"])
	profile := result["profile"].(map[string]any)
	require.Equal(t, 2, profile["followers_sampled"])
	followers := profile["followers"].([]map[string]any)
	require.Equal(t, "alpha", followers[0]["username"])
	require.Equal(t, 1, result["extracted_tweet_count"])
}

func TestTask_Level4FallsBackWhenTimelineEmpty(t *testing.T) {
	t.Parallel()

	// The first profile load renders no tweets despite a claimed post
	// total; the reload driven by the fallback renders them.
	session := newFakeSession()
	session.pages[profileURL("janedev")] = []string{
		profileHTML("janedev", nil, false),
		profileHTML("janedev", []string{"late render"}, false),
	}

	result := runTwitter(t, session, scrape.Params{
		"username":     "janedev",
		"scrape_level": 4,
	})

	require.Equal(t, scrape.MethodLevel4Fallback, result["extraction_method"])
	require.Equal(t, 1, result["extracted_tweet_count"])
	require.Equal(t, 4523, result["claimed_post_count"], "claimed total from the deep attempt survives")
}

func TestTask_UnknownAccountFailsNavigation(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	_, err := New().Run(context.Background(), scrape.RunInput{
		Params:  scrape.Params{"username": "ghost"},
		Browser: &fakeBrowser{session: session},
	})
	var navErr *scrape.NavigationError
	require.ErrorAs(t, err, &navErr)
}

func TestTask_ParamValidation(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{session: newFakeSession()}
	var paramErr *scrape.ParamError

	_, err := New().Run(context.Background(), scrape.RunInput{Params: nil, Browser: browser})
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "username", paramErr.Field)

	_, err = New().Run(context.Background(), scrape.RunInput{
		Params:  scrape.Params{"username": "not a handle!"},
		Browser: browser,
	})
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "username", paramErr.Field)

	_, err = New().Run(context.Background(), scrape.RunInput{
		Params:  scrape.Params{"username": "janedev", "scrape_level": 7},
		Browser: browser,
	})
	require.ErrorAs(t, err, &paramErr)
	require.Equal(t, "scrape_level", paramErr.Field)
}
