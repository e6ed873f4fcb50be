package twitter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

const (
	defaultMaxTweets    = 10
	maxMaxTweets        = 100
	defaultMaxFollowers = 200
	maxMaxFollowers     = 1000
	defaultLevel        = scrape.LevelQuick
)

var reUsername = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// profileParams are the validated client inputs for a profile job.
type profileParams struct {
	Username     string
	Level        scrape.Level
	MaxTweets    int
	MaxFollowers int
}

// parseParams validates the raw submission parameters. The username may
// arrive bare, prefixed with @, or as a full profile URL; all three are
// normalised to the bare handle.
func parseParams(p scrape.Params) (profileParams, error) {
	pp := profileParams{
		Username:     normaliseUsername(p.String("username", "")),
		Level:        scrape.Level(p.Int("scrape_level", int(defaultLevel))),
		MaxTweets:    p.Int("max_tweets", defaultMaxTweets),
		MaxFollowers: p.Int("max_followers", defaultMaxFollowers),
	}
	if pp.Username == "" {
		return profileParams{}, &scrape.ParamError{Field: "username", Reason: "is required"}
	}
	if !reUsername.MatchString(pp.Username) {
		return profileParams{}, &scrape.ParamError{Field: "username", Reason: "must be a valid handle (letters, digits, underscore, max 15)"}
	}
	if !pp.Level.Valid() {
		return profileParams{}, &scrape.ParamError{
			Field:  "scrape_level",
			Reason: fmt.Sprintf("must be between %d and %d: %v", scrape.MinLevel, scrape.MaxLevel, scrape.ErrInvalidLevel),
		}
	}
	if pp.MaxTweets <= 0 {
		pp.MaxTweets = defaultMaxTweets
	}
	if pp.MaxTweets > maxMaxTweets {
		pp.MaxTweets = maxMaxTweets
	}
	if pp.MaxFollowers <= 0 {
		pp.MaxFollowers = defaultMaxFollowers
	}
	if pp.MaxFollowers > maxMaxFollowers {
		pp.MaxFollowers = maxMaxFollowers
	}
	return pp, nil
}

// normaliseUsername strips URL prefixes and a leading @ from the handle.
func normaliseUsername(raw string) string {
	s := strings.TrimSpace(raw)
	for _, prefix := range []string{
		"https://twitter.com/", "https://www.twitter.com/",
		"https://x.com/", "https://www.x.com/",
	} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimPrefix(s, "@")
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	return s
}
