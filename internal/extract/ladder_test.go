package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// levelSpy records whether its level ran and returns a canned result.
type levelSpy struct {
	called int
	result *scrape.ExtractionResult
	err    error
}

func (s *levelSpy) fn(context.Context) (*scrape.ExtractionResult, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newLadderWithSpies(t *testing.T) (*Ladder, map[scrape.Level]*levelSpy) {
	t.Helper()
	ladder := NewLadder(zap.NewNop())
	spies := map[scrape.Level]*levelSpy{}
	for level := scrape.MinLevel; level <= scrape.MaxLevel; level++ {
		spy := &levelSpy{result: &scrape.ExtractionResult{
			Fields: map[string]any{"name": "Hotel", "level": int(level)},
		}}
		spies[level] = spy
		ladder.Register(level, spy.fn)
	}
	return ladder, spies
}

func TestLadder_RoutesExactlyRequestedLevel(t *testing.T) {
	t.Parallel()

	for level := scrape.MinLevel; level <= scrape.MaxLevel; level++ {
		ladder, spies := newLadderWithSpies(t)
		res, attempt, err := ladder.Extract(context.Background(), level)
		require.NoError(t, err)
		require.Equal(t, OutcomeSucceeded, attempt.Outcome)
		require.Equal(t, []scrape.Level{level}, res.LevelsAttempted)
		for other, spy := range spies {
			if other == level {
				require.Equal(t, 1, spy.called, "level %d should run once", level)
			} else {
				require.Zero(t, spy.called, "level %d must not run when %d requested", other, level)
			}
		}
	}
}

func TestLadder_RejectsOutOfRangeLevels(t *testing.T) {
	t.Parallel()

	ladder, spies := newLadderWithSpies(t)
	for _, level := range []scrape.Level{0, 5, -1, 99} {
		_, attempt, err := ladder.Extract(context.Background(), level)
		require.ErrorIs(t, err, scrape.ErrInvalidLevel)
		require.Equal(t, OutcomeFailed, attempt.Outcome)
	}
	for _, spy := range spies {
		require.Zero(t, spy.called)
	}
}

func TestLadder_RegisterPanicsOnInvalidLevel(t *testing.T) {
	t.Parallel()

	ladder := NewLadder(nil)
	require.Panics(t, func() {
		ladder.Register(0, func(context.Context) (*scrape.ExtractionResult, error) { return nil, nil })
	})
}

func TestLadder_Level4FallsBackWhenClaimedButEmpty(t *testing.T) {
	t.Parallel()

	ladder, spies := newLadderWithSpies(t)
	spies[scrape.LevelDeepReviews].result = &scrape.ExtractionResult{
		Fields:             map[string]any{"name": "Hotel"},
		ClaimedReviewCount: 120,
		Method:             scrape.MethodLevel4,
	}
	spies[scrape.LevelReviews].result = &scrape.ExtractionResult{
		Fields:  map[string]any{"name": "Hotel"},
		Reviews: []scrape.Review{{Reviewer: "a", Text: "fine"}},
	}

	res, attempt, err := ladder.Extract(context.Background(), scrape.LevelDeepReviews)
	require.NoError(t, err)
	require.Equal(t, OutcomeFellBack, attempt.Outcome)
	require.Equal(t, scrape.LevelReviews, attempt.FellBackTo)
	require.Equal(t, scrape.MethodLevel4Fallback, res.Method)
	require.Len(t, res.Reviews, 1)
	// The deep method's claimed total survives the substitution.
	require.Equal(t, 120, res.ClaimedReviewCount)
	require.Equal(t, []scrape.Level{scrape.LevelDeepReviews, scrape.LevelReviews}, res.LevelsAttempted)
	require.Equal(t, 1, spies[scrape.LevelReviews].called)
}

func TestLadder_Level4NoFallbackWithoutClaimedReviews(t *testing.T) {
	t.Parallel()

	ladder, spies := newLadderWithSpies(t)
	spies[scrape.LevelDeepReviews].result = &scrape.ExtractionResult{
		Fields: map[string]any{"name": "Hotel"},
		Method: scrape.MethodLevel4,
	}

	res, attempt, err := ladder.Extract(context.Background(), scrape.LevelDeepReviews)
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, attempt.Outcome)
	require.Equal(t, scrape.MethodLevel4, res.Method)
	require.Zero(t, spies[scrape.LevelReviews].called)
}

func TestLadder_Level4TagsNoReviewsWhenFallbackAlsoEmpty(t *testing.T) {
	t.Parallel()

	ladder, spies := newLadderWithSpies(t)
	spies[scrape.LevelDeepReviews].result = &scrape.ExtractionResult{
		Fields:             map[string]any{"name": "Hotel"},
		ClaimedReviewCount: 44,
	}
	spies[scrape.LevelReviews].err = errors.New("review panel broke")

	res, attempt, err := ladder.Extract(context.Background(), scrape.LevelDeepReviews)
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, attempt.Outcome)
	require.Equal(t, scrape.MethodLevel4NoReviews, res.Method)
	require.Equal(t, 44, res.ClaimedReviewCount)
	require.Empty(t, res.Reviews)
}

func TestLadder_LevelFailurePropagates(t *testing.T) {
	t.Parallel()

	ladder, spies := newLadderWithSpies(t)
	boom := errors.New("detail page gone")
	spies[scrape.LevelFull].err = boom

	_, attempt, err := ladder.Extract(context.Background(), scrape.LevelFull)
	require.ErrorIs(t, err, boom)
	require.Equal(t, OutcomeFailed, attempt.Outcome)
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()

	populated := &scrape.ExtractionResult{Fields: map[string]any{"name": "x"}}
	empty := &scrape.ExtractionResult{Fields: map[string]any{"name": ""}}

	require.Zero(t, SuccessRate(nil))
	require.Zero(t, SuccessRate([]*scrape.ExtractionResult{empty, nil}))
	require.InDelta(t, 0.5, SuccessRate([]*scrape.ExtractionResult{populated, nil}), 0.001)
	require.InDelta(t, 1.0, SuccessRate([]*scrape.ExtractionResult{populated}), 0.001)
}
