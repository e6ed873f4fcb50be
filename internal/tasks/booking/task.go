// Package booking implements the hotel search and leveled extraction
// task against booking.com.
package booking

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/extract"
	"github.com/scrapekit/browserjobs/internal/metrics"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// TaskName is the registry name clients submit against.
const TaskName = "booking-hotels"

const searchBaseURL = "https://www.booking.com/searchresults.html"

// Config bounds the review pagination performed at level 4.
type Config struct {
	MaxReviewPages int
	StallLimit     int
	MaxRetries     int
}

// Task scrapes hotel listings at a client-chosen extraction level.
type Task struct {
	cfg Config
}

// New constructs the booking task.
func New(cfg Config) *Task {
	return &Task{cfg: cfg}
}

// Name implements scrape.Task.
func (t *Task) Name() string { return TaskName }

// Run searches for hotels at the requested location and extracts each
// result at the requested level. Per-hotel failures do not abort the
// batch; they are reported inline and counted against the success rate.
func (t *Task) Run(ctx context.Context, in scrape.RunInput) (map[string]any, error) {
	sp, err := parseParams(in.Params)
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

	hotels, err := t.search(ctx, session, sp)
	if err != nil {
		return nil, err
	}
	logger.Info("search results parsed",
		zap.String("location", sp.Location),
		zap.Int("hotels", len(hotels)),
		zap.Int("level", int(sp.Level)),
	)

	var (
		entries     []map[string]any
		results     []*scrape.ExtractionResult
		totalPages  int
		methodsSeen = map[string]int{}
	)
	for _, hotel := range hotels {
		ex := &hotelExtractor{
			session: session,
			hotel:   hotel,
			cfg:     t.cfg,
			logger:  logger.With(zap.String("hotel", hotel.Name)),
		}
		res, attempt, err := ex.extract(ctx, sp.Level)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("hotel extraction failed", zap.String("hotel", hotel.Name), zap.Error(err))
			entries = append(entries, map[string]any{
				"name":  hotel.Name,
				"url":   hotel.URL,
				"error": err.Error(),
			})
			results = append(results, nil)
			continue
		}
		if attempt.Outcome == extract.OutcomeFellBack {
			metrics.ExtractionFellBack(TaskName)
		}
		totalPages += res.PagesProcessed
		methodsSeen[res.Method]++
		entries = append(entries, hotelEntry(hotel, res))
		results = append(results, res)
	}
	metrics.ReviewPagesProcessed(totalPages)

	return map[string]any{
		"task":               TaskName,
		"location":           sp.Location,
		"requested_level":    int(sp.Level),
		"hotels":             entries,
		"hotel_count":        len(entries),
		"success_rate":       extract.SuccessRate(results),
		"extraction_methods": methodsSeen,
		"pages_processed":    totalPages,
	}, nil
}

// search loads the results listing and parses hotel summaries matching
// the filters.
func (t *Task) search(ctx context.Context, session scrape.Session, sp searchParams) ([]hotelSummary, error) {
	if err := session.Navigate(ctx, searchURL(sp)); err != nil {
		return nil, err
	}
	if err := session.WaitVisible(ctx, selPropertyCard); err != nil {
		return nil, fmt.Errorf("search results never appeared: %w", err)
	}
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	hotels, err := parseSearchResults(html, 0)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}
	filtered := hotels[:0]
	for _, h := range hotels {
		if sp.MinRating > 0 && h.Rating < sp.MinRating {
			continue
		}
		filtered = append(filtered, h)
		if len(filtered) >= sp.MaxResults {
			break
		}
	}
	return filtered, nil
}

func searchURL(sp searchParams) string {
	q := url.Values{}
	q.Set("ss", sp.Location)
	if sp.CheckIn != "" {
		q.Set("checkin", sp.CheckIn)
	}
	if sp.CheckOut != "" {
		q.Set("checkout", sp.CheckOut)
	}
	return searchBaseURL + "?" + q.Encode()
}

// hotelEntry flattens one extraction result into the job result payload.
func hotelEntry(hotel hotelSummary, res *scrape.ExtractionResult) map[string]any {
	entry := map[string]any{
		"name":              hotel.Name,
		"url":               hotel.URL,
		"extraction_method": res.Method,
	}
	for k, v := range res.Fields {
		entry[k] = v
	}
	if res.ClaimedReviewCount > 0 || len(res.Reviews) > 0 {
		entry["claimed_review_count"] = res.ClaimedReviewCount
		entry["extracted_review_count"] = len(res.Reviews)
	}
	if len(res.Reviews) > 0 {
		entry["reviews"] = res.Reviews
	}
	if res.PagesProcessed > 0 {
		entry["pages_processed"] = res.PagesProcessed
	}
	if res.Partial {
		entry["partial"] = true
	}
	return entry
}
