package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// noRetry fails fast so tests do not sleep through backoff.
type noRetry struct{}

func (noRetry) ShouldRetry(error, int) bool { return false }
func (noRetry) Backoff(int) time.Duration   { return 0 }

func newTestPaginator(maxPages, stallLimit int) *Paginator {
	p := NewPaginator(maxPages, stallLimit, nil)
	p.Retry = noRetry{}
	return p
}

func reviewsFor(page int, n int) []scrape.Review {
	items := make([]scrape.Review, n)
	for i := range items {
		items[i] = scrape.Review{
			Reviewer: fmt.Sprintf("user-%d-%d", page, i),
			Text:     fmt.Sprintf("review %d on page %d", i, page),
		}
	}
	return items
}

func TestPaginator_StopsWhenNoNextPage(t *testing.T) {
	t.Parallel()

	fetch := func(_ context.Context, index int) (scrape.ReviewPage, error) {
		return scrape.ReviewPage{
			Items:   reviewsFor(index, 2),
			HasNext: index < 2,
		}, nil
	}

	res, err := newTestPaginator(50, 2).Run(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 3, res.PagesProcessed)
	require.Len(t, res.Items, 6)
	require.False(t, res.Partial)
}

func TestPaginator_EnforcesPageCap(t *testing.T) {
	t.Parallel()

	calls := 0
	fetch := func(_ context.Context, index int) (scrape.ReviewPage, error) {
		calls++
		// The source always claims another page.
		return scrape.ReviewPage{Items: reviewsFor(index, 1), HasNext: true}, nil
	}

	res, err := newTestPaginator(5, 0).Run(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 5, calls)
	require.Equal(t, 5, res.PagesProcessed)
	require.Len(t, res.Items, 5)
}

func TestPaginator_StallDetectionTerminates(t *testing.T) {
	t.Parallel()

	same := reviewsFor(0, 3)
	fetch := func(_ context.Context, _ int) (scrape.ReviewPage, error) {
		// Next control stays enabled but content never advances.
		return scrape.ReviewPage{Items: same, HasNext: true}, nil
	}

	res, err := newTestPaginator(50, 2).Run(context.Background(), fetch)
	require.NoError(t, err)
	// Page 0 contributes items, pages 1 and 2 stall, then termination.
	require.Equal(t, 3, res.PagesProcessed)
	require.Len(t, res.Items, 3)
	require.False(t, res.Partial)
}

func TestPaginator_DeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	shared := scrape.Review{Reviewer: "alice", Text: "seen on every page"}
	fetch := func(_ context.Context, index int) (scrape.ReviewPage, error) {
		items := append(reviewsFor(index, 2), shared)
		return scrape.ReviewPage{Items: items, HasNext: index < 3}, nil
	}

	res, err := newTestPaginator(50, 2).Run(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 4, res.PagesProcessed)
	// 2 fresh per page plus the shared review exactly once.
	require.Len(t, res.Items, 9)
	require.Equal(t, []int{3, 2, 2, 2}, res.NewItemCounts)
	fps := map[string]int{}
	for _, item := range res.Items {
		fps[scrape.ReviewFingerprint(item)]++
	}
	for fp, count := range fps {
		require.Equal(t, 1, count, "fingerprint %s duplicated", fp)
	}
}

func TestPaginator_DeepRunConvergesOnClaimedTotal(t *testing.T) {
	t.Parallel()

	// A listing claiming 268 reviews served as 27 pages of up to 10, where
	// lazy loading repeats each page's last review at the top of the next.
	const (
		claimed   = 268
		pageSize  = 10
		lastPage  = claimed / pageSize // 26, holding the remaining 8
		lastCount = claimed % pageSize
	)
	fetch := func(_ context.Context, index int) (scrape.ReviewPage, error) {
		n := pageSize
		if index == lastPage {
			n = lastCount
		}
		items := reviewsFor(index, n)
		if index > 0 {
			prev := reviewsFor(index-1, pageSize)
			items = append([]scrape.Review{prev[len(prev)-1]}, items...)
		}
		return scrape.ReviewPage{Items: items, HasNext: index < lastPage}, nil
	}

	res, err := newTestPaginator(50, 3).Run(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 27, res.PagesProcessed)
	require.False(t, res.Partial)
	require.Len(t, res.Items, claimed, "page-boundary repeats collapse to the claimed total")

	// Every page past the first contributed its size minus the repeat.
	require.Len(t, res.NewItemCounts, 27)
	require.Equal(t, pageSize, res.NewItemCounts[0])
	require.Equal(t, pageSize, res.NewItemCounts[13])
	require.Equal(t, lastCount, res.NewItemCounts[26])
}

func TestPaginator_PartialResultOnExhaustedRetries(t *testing.T) {
	t.Parallel()

	fetch := func(_ context.Context, index int) (scrape.ReviewPage, error) {
		if index == 2 {
			return scrape.ReviewPage{}, errors.New("page 2 broke")
		}
		return scrape.ReviewPage{Items: reviewsFor(index, 2), HasNext: true}, nil
	}

	res, err := newTestPaginator(50, 2).Run(context.Background(), fetch)
	require.NoError(t, err)
	require.True(t, res.Partial)
	require.Equal(t, 2, res.PagesProcessed)
	require.Len(t, res.Items, 4)
}

func TestPaginator_RetriesBeforeGivingUp(t *testing.T) {
	t.Parallel()

	attempts := 0
	fetch := func(_ context.Context, index int) (scrape.ReviewPage, error) {
		if index == 0 {
			attempts++
			if attempts < 3 {
				return scrape.ReviewPage{}, errors.New("transient")
			}
		}
		return scrape.ReviewPage{Items: reviewsFor(index, 1), HasNext: false}, nil
	}

	p := NewPaginator(50, 2, nil)
	p.Retry = scrape.NewRetryPolicy(3, time.Millisecond, 2*time.Millisecond)
	res, err := p.Run(context.Background(), fetch)
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.False(t, res.Partial)
	require.Len(t, res.Items, 1)
}

func TestPaginator_ContextCancellationPropagates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(_ context.Context, index int) (scrape.ReviewPage, error) {
		if index == 1 {
			cancel()
			return scrape.ReviewPage{}, ctx.Err()
		}
		return scrape.ReviewPage{Items: reviewsFor(index, 1), HasNext: true}, nil
	}

	_, err := newTestPaginator(50, 2).Run(ctx, fetch)
	require.ErrorIs(t, err, context.Canceled)
}
