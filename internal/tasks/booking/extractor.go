package booking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/extract"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// hotelExtractor runs the extraction ladder for a single hotel. Each
// level is its own method; level 4 deliberately builds on level 2 and
// then paginates reviews itself, so a level-4 request never routes
// through the level-3 method unless the fallback policy invokes it.
type hotelExtractor struct {
	session scrape.Session
	hotel   hotelSummary
	cfg     Config
	logger  *zap.Logger
}

func (ex *hotelExtractor) extract(ctx context.Context, level scrape.Level) (*scrape.ExtractionResult, extract.Attempt, error) {
	ladder := extract.NewLadder(ex.logger)
	ladder.Register(scrape.LevelQuick, ex.levelQuick)
	ladder.Register(scrape.LevelFull, ex.levelFull)
	ladder.Register(scrape.LevelReviews, ex.levelReviews)
	ladder.Register(scrape.LevelDeepReviews, ex.levelDeepReviews)
	return ladder.Extract(ctx, level)
}

// levelQuick returns only what the search listing already showed; no
// extra page loads.
func (ex *hotelExtractor) levelQuick(context.Context) (*scrape.ExtractionResult, error) {
	fields := map[string]any{"name": ex.hotel.Name, "url": ex.hotel.URL}
	if ex.hotel.Price != "" {
		fields["price"] = ex.hotel.Price
	}
	if ex.hotel.Rating > 0 {
		fields["rating"] = ex.hotel.Rating
	}
	return &scrape.ExtractionResult{Fields: fields, Method: scrape.MethodLevel1}, nil
}

// levelFull loads the property page and merges its fields over the
// listing summary.
func (ex *hotelExtractor) levelFull(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadDetail(ctx)
	if err != nil {
		return nil, err
	}
	res.Method = scrape.MethodLevel2
	return res, nil
}

// levelReviews is level 2 plus the first page of reviews.
func (ex *hotelExtractor) levelReviews(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadDetail(ctx)
	if err != nil {
		return nil, err
	}
	res.Method = scrape.MethodLevel3
	if !ex.openReviews(ctx) {
		return res, nil
	}
	html, err := ex.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	page, err := parseReviewPage(html)
	if err != nil {
		return nil, fmt.Errorf("parse review page: %w", err)
	}
	res.Reviews = page.Items
	res.PagesProcessed = 1
	return res, nil
}

// levelDeepReviews is level 2 plus full review pagination.
func (ex *hotelExtractor) levelDeepReviews(ctx context.Context) (*scrape.ExtractionResult, error) {
	res, err := ex.loadDetail(ctx)
	if err != nil {
		return nil, err
	}
	res.Method = scrape.MethodLevel4
	if !ex.openReviews(ctx) {
		return res, nil
	}

	paginator := extract.NewPaginator(ex.cfg.MaxReviewPages, ex.cfg.StallLimit, ex.logger)
	if ex.cfg.MaxRetries > 0 {
		paginator.Retry = scrape.NewRetryPolicy(ex.cfg.MaxRetries, 250*time.Millisecond, 5*time.Second)
	}
	pages, err := paginator.Run(ctx, ex.fetchReviewPage)
	if err != nil {
		return nil, err
	}
	res.Reviews = pages.Items
	res.PagesProcessed = pages.PagesProcessed
	res.Partial = pages.Partial
	return res, nil
}

// loadDetail navigates to the property page and parses its fields.
func (ex *hotelExtractor) loadDetail(ctx context.Context) (*scrape.ExtractionResult, error) {
	if ex.hotel.URL == "" {
		return nil, &scrape.ParamError{Field: "url", Reason: "listing entry has no detail link"}
	}
	if err := ex.session.Navigate(ctx, ex.hotel.URL); err != nil {
		return nil, err
	}
	html, err := ex.session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	fields, claimed, err := parseDetailFields(html)
	if err != nil {
		return nil, fmt.Errorf("parse property page: %w", err)
	}
	if _, ok := fields["name"]; !ok && ex.hotel.Name != "" {
		fields["name"] = ex.hotel.Name
	}
	fields["url"] = ex.hotel.URL
	if _, ok := fields["rating"]; !ok && ex.hotel.Rating > 0 {
		fields["rating"] = ex.hotel.Rating
	}
	if ex.hotel.Price != "" {
		fields["price"] = ex.hotel.Price
	}
	return &scrape.ExtractionResult{Fields: fields, ClaimedReviewCount: claimed}, nil
}

// openReviews opens the review panel on the current property page.
// Absence of the panel means the hotel has no visible reviews; that is
// data, not an error.
func (ex *hotelExtractor) openReviews(ctx context.Context) bool {
	if err := ex.session.Click(ctx, selShowReviews); err != nil {
		ex.logger.Debug("review panel control not found", zap.Error(err))
		return false
	}
	if err := ex.session.WaitVisible(ctx, selReviewCard); err != nil {
		ex.logger.Debug("review cards never appeared", zap.Error(err))
		return false
	}
	return true
}

// fetchReviewPage returns the review page currently shown, advancing
// via the next control for every page after the first.
func (ex *hotelExtractor) fetchReviewPage(ctx context.Context, pageIndex int) (scrape.ReviewPage, error) {
	if pageIndex > 0 {
		if err := ex.session.Click(ctx, selReviewNext); err != nil {
			return scrape.ReviewPage{}, fmt.Errorf("advance to review page %d: %w", pageIndex, err)
		}
		if err := ex.session.WaitVisible(ctx, selReviewCard); err != nil {
			return scrape.ReviewPage{}, fmt.Errorf("review page %d never rendered: %w", pageIndex, err)
		}
	}
	html, err := ex.session.HTML(ctx)
	if err != nil {
		return scrape.ReviewPage{}, err
	}
	return parseReviewPage(html)
}
