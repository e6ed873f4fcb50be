package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// PageFunc fetches one page of paginated content by 0-based index.
type PageFunc func(ctx context.Context, pageIndex int) (scrape.ReviewPage, error)

// PaginationResult accumulates everything a run gathered. Items is the
// fingerprint-deduplicated union across pages, in first-seen order, and
// NewItemCounts records how many of each page's items survived dedup.
type PaginationResult struct {
	Pages          []scrape.ReviewPage
	Items          []scrape.Review
	NewItemCounts  []int
	PagesProcessed int
	Partial        bool
}

// Paginator drives repeated next-page fetches against a paginated source
// until a termination condition is met. It is independent of what is being
// paginated; levels hand it a PageFunc and read back the aggregate.
type Paginator struct {
	MaxPages   int
	StallLimit int
	Retry      scrape.RetryPolicy
	Logger     *zap.Logger
}

// NewPaginator builds a paginator with the default retry policy.
func NewPaginator(maxPages, stallLimit int, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paginator{
		MaxPages:   maxPages,
		StallLimit: stallLimit,
		Retry:      scrape.NewExponentialRetryPolicy(),
		Logger:     logger,
	}
}

// Run iterates pages until the source reports no next page, the page cap
// is reached, or StallLimit consecutive pages contribute zero new items.
// The stall guard catches pagination that claims a next page but never
// advances content, which is a different failure from normal end-of-data.
//
// A fetch failure that survives retries ends the run early with everything
// gathered so far tagged partial; gathered pages are never discarded.
func (p *Paginator) Run(ctx context.Context, fetch PageFunc) (PaginationResult, error) {
	var result PaginationResult
	seen := make(map[string]struct{})
	stalled := 0

	for index := 0; ; index++ {
		if p.MaxPages > 0 && index >= p.MaxPages {
			p.Logger.Debug("pagination reached page cap", zap.Int("max_pages", p.MaxPages))
			break
		}

		page, err := p.fetchWithRetry(ctx, fetch, index)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			p.Logger.Warn("page fetch failed after retries, returning partial result",
				zap.Int("page_index", index),
				zap.Error(err),
			)
			result.Partial = true
			break
		}
		page.Index = index

		result.Pages = append(result.Pages, page)
		result.PagesProcessed++

		newItems := 0
		for _, item := range page.Items {
			fp := scrape.ReviewFingerprint(item)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			item.PageIndex = index
			result.Items = append(result.Items, item)
			newItems++
		}
		result.NewItemCounts = append(result.NewItemCounts, newItems)

		if newItems == 0 {
			stalled++
		} else {
			stalled = 0
		}

		if !page.HasNext {
			break
		}
		if p.StallLimit > 0 && stalled >= p.StallLimit {
			p.Logger.Warn("pagination stalled, terminating",
				zap.Int("page_index", index),
				zap.Int("stall_limit", p.StallLimit),
			)
			break
		}
	}

	return result, nil
}

func (p *Paginator) fetchWithRetry(ctx context.Context, fetch PageFunc, index int) (scrape.ReviewPage, error) {
	policy := p.Retry
	if policy == nil {
		policy = scrape.NewExponentialRetryPolicy()
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		page, err := fetch(ctx, index)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !policy.ShouldRetry(err, attempt+1) {
			return scrape.ReviewPage{}, lastErr
		}
		p.Logger.Debug("retrying page fetch",
			zap.Int("page_index", index),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, policy.Backoff(attempt)); err != nil {
			return scrape.ReviewPage{}, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
