// Package twitter implements the social profile extraction task against
// x.com. A job targets one handle and chooses how deep to go: header only,
// header plus timeline, plus media attachments, or a comprehensive pull
// that samples the followers list as well.
package twitter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/extract"
	"github.com/scrapekit/browserjobs/internal/metrics"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// TaskName is the registry name clients submit against.
const TaskName = "twitter"

// Task scrapes one social profile at a client-chosen extraction level.
type Task struct{}

// New constructs the profile task.
func New() *Task {
	return &Task{}
}

// Name implements scrape.Task.
func (t *Task) Name() string { return TaskName }

// Run extracts the requested profile. Unlike the listing tasks this is a
// single-entity job, so any extraction failure fails the job rather than
// being reported inline.
func (t *Task) Run(ctx context.Context, in scrape.RunInput) (map[string]any, error) {
	pp, err := parseParams(in.Params)
	if err != nil {
		return nil, err
	}
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	session, err := in.Browser.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer session.Close()

	ex := &profileExtractor{
		session: session,
		params:  pp,
		logger:  logger.With(zap.String("username", pp.Username)),
	}
	res, attempt, err := ex.extract(ctx, pp.Level)
	if err != nil {
		return nil, err
	}
	if attempt.Outcome == extract.OutcomeFellBack {
		metrics.ExtractionFellBack(TaskName)
	}
	logger.Info("profile extracted",
		zap.String("method", res.Method),
		zap.Int("tweets", len(res.Reviews)),
		zap.Int("level", int(pp.Level)),
	)

	out := map[string]any{
		"task":              TaskName,
		"username":          pp.Username,
		"requested_level":   int(pp.Level),
		"extraction_method": res.Method,
		"profile":           res.Fields,
	}
	if res.ClaimedReviewCount > 0 || len(res.Reviews) > 0 {
		out["claimed_post_count"] = res.ClaimedReviewCount
		out["extracted_tweet_count"] = len(res.Reviews)
	}
	if len(res.Reviews) > 0 {
		out["tweets"] = res.Reviews
	}
	return out, nil
}
