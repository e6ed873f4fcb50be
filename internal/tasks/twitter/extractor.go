package twitter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/extract"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// profileExtractor runs the extraction ladder for a single profile. Level 2
// adds the rendered timeline, level 3 adds media attachments and level 4
// adds a followers sample; level 4 never routes through the level-3 method
// unless the fallback policy invokes it.
type profileExtractor struct {
	session scrape.Session
	params  profileParams
	logger  *zap.Logger

	profileHTML string
}

func (ex *profileExtractor) extract(ctx context.Context, level scrape.Level) (*scrape.ExtractionResult, extract.Attempt, error) {
	ladder := extract.NewLadder(ex.logger)
	ladder.Register(scrape.LevelQuick, ex.levelQuick)
	ladder.Register(scrape.LevelFull, ex.levelFull)
	ladder.Register(scrape.LevelReviews, ex.levelTimelineMedia)
	ladder.Register(scrape.LevelDeepReviews, ex.levelComprehensive)
	return ladder.Extract(ctx, level)
}

// levelQuick extracts the profile header only.
func (ex *profileExtractor) levelQuick(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadProfile(ctx)
	if err != nil {
		return nil, err
	}
	res.Method = scrape.MethodLevel1
	return res, nil
}

// levelFull is the profile header plus the rendered timeline.
func (ex *profileExtractor) levelFull(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadTimeline(ctx)
	if err != nil {
		return nil, err
	}
	res.Method = scrape.MethodLevel2
	return res, nil
}

// levelTimelineMedia is level 2 plus media attachment URLs.
func (ex *profileExtractor) levelTimelineMedia(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadTimeline(ctx)
	if err != nil {
		return nil, err
	}
	res.Method = scrape.MethodLevel3
	media, err := parseMediaURLs(ex.profileHTML, ex.params.MaxTweets)
	if err != nil {
		return nil, fmt.Errorf("parse media attachments: %w", err)
	}
	if len(media) > 0 {
		res.Fields["media_urls"] = media
	}
	return res, nil
}

// levelComprehensive is level 2 plus a followers sample from the followers
// listing page.
func (ex *profileExtractor) levelComprehensive(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadTimeline(ctx)
	if err != nil {
		return nil, err
	}
	res.Method = scrape.MethodLevel4

	followersURL := profileURL(ex.params.Username) + "/followers"
	if err := ex.session.Navigate(ctx, followersURL); err != nil {
		ex.logger.Debug("followers page unavailable", zap.Error(err))
		return res, nil
	}
	if err := ex.session.WaitVisible(ctx, selUserCell); err != nil {
		ex.logger.Debug("follower cells never appeared", zap.Error(err))
		return res, nil
	}
	html, err := ex.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	followers, err := parseFollowers(html, ex.params.MaxFollowers)
	if err != nil {
		return nil, fmt.Errorf("parse followers: %w", err)
	}
	if len(followers) > 0 {
		res.Fields["followers"] = followers
		res.Fields["followers_sampled"] = len(followers)
	}
	return res, nil
}

// loadProfile navigates to the profile page and parses its header. The
// rendered HTML is kept for the timeline and media parses, which read the
// same page.
func (ex *profileExtractor) loadProfile(ctx context.Context) (*scrape.ExtractionResult, error) {
	if err := ex.session.Navigate(ctx, profileURL(ex.params.Username)); err != nil {
		return nil, err
	}
	if err := ex.session.WaitVisible(ctx, selProfileHeader); err != nil {
		return nil, &scrape.NavigationError{
			URL: profileURL(ex.params.Username),
			Err: fmt.Errorf("profile header never rendered, account may not exist: %w", err),
		}
	}
	html, err := ex.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	ex.profileHTML = html

	fields, claimed, err := parseProfile(html)
	if err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	fields["username"] = ex.params.Username
	fields["url"] = profileURL(ex.params.Username)
	return &scrape.ExtractionResult{Fields: fields, ClaimedReviewCount: claimed}, nil
}

// loadTimeline is loadProfile plus the tweets visible on the same page.
func (ex *profileExtractor) loadTimeline(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadProfile(ctx)
	if err != nil {
		return nil, err
	}
	tweets, err := parseTweets(ex.profileHTML, ex.params.Username, ex.params.MaxTweets)
	if err != nil {
		return nil, fmt.Errorf("parse timeline: %w", err)
	}
	res.Reviews = tweets
	if len(tweets) > 0 {
		res.PagesProcessed = 1
	}
	return res, nil
}

func profileURL(username string) string {
	return "https://x.com/" + username
}
