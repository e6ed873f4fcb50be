// Package extract implements the leveled-extraction engine: the per-level
// strategy ladder with explicit routing and fallback, and the pagination
// controller that drives "next page" iteration for a single level.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// LevelFunc produces the extraction result for exactly one level.
type LevelFunc func(ctx context.Context) (*scrape.ExtractionResult, error)

// Outcome is the terminal state of one extraction attempt.
type Outcome string

// Attempt outcomes. A fallback is a first-class outcome, never an error:
// deep extraction was tried and degraded, and callers must be able to see
// that.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFellBack  Outcome = "fell_back"
	OutcomeFailed    Outcome = "failed"
)

// Attempt records what happened when a level was dispatched.
type Attempt struct {
	Level      scrape.Level
	Outcome    Outcome
	FellBackTo scrape.Level
	Err        error
}

// Ladder routes a requested level number to the single method registered
// for that level. Levels do not stack silently: requesting level 4 invokes
// the level-4 method and nothing else, so a routing bug can never quietly
// run a cheaper level instead.
type Ladder struct {
	levels map[scrape.Level]LevelFunc
	logger *zap.Logger
}

// NewLadder builds an empty ladder.
func NewLadder(logger *zap.Logger) *Ladder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ladder{
		levels: make(map[scrape.Level]LevelFunc),
		logger: logger,
	}
}

// Register binds a level to its method. Registering an out-of-range level
// is a programming error and panics at startup rather than at scrape time.
func (l *Ladder) Register(level scrape.Level, fn LevelFunc) {
	if !level.Valid() {
		panic(fmt.Sprintf("extract: register level %d outside [%d,%d]", level, scrape.MinLevel, scrape.MaxLevel))
	}
	l.levels[level] = fn
}

// Extract validates the requested level, dispatches to exactly that
// level's method, and applies the level-4 fallback policy. The returned
// Attempt makes the routing and any fallback observable to callers.
func (l *Ladder) Extract(ctx context.Context, level scrape.Level) (*scrape.ExtractionResult, Attempt, error) {
	attempt := Attempt{Level: level}
	if !level.Valid() {
		attempt.Outcome = OutcomeFailed
		attempt.Err = scrape.ErrInvalidLevel
		return nil, attempt, fmt.Errorf("level %d: %w", level, scrape.ErrInvalidLevel)
	}
	fn, ok := l.levels[level]
	if !ok {
		attempt.Outcome = OutcomeFailed
		attempt.Err = scrape.ErrInvalidLevel
		return nil, attempt, fmt.Errorf("level %d has no registered method: %w", level, scrape.ErrInvalidLevel)
	}

	result, err := fn(ctx)
	if err != nil {
		attempt.Outcome = OutcomeFailed
		attempt.Err = err
		return nil, attempt, fmt.Errorf("level %d extraction: %w", level, err)
	}
	if result == nil {
		result = &scrape.ExtractionResult{}
	}
	result.LevelsAttempted = append(result.LevelsAttempted, level)

	if level == scrape.LevelDeepReviews && len(result.Reviews) == 0 && result.ClaimedReviewCount > 0 {
		return l.fallBack(ctx, result, attempt)
	}

	attempt.Outcome = OutcomeSucceeded
	return result, attempt, nil
}

// fallBack substitutes the level-3 result when deep extraction yielded
// zero reviews despite the entity claiming some. The substitution is
// tagged, never silent.
func (l *Ladder) fallBack(ctx context.Context, deep *scrape.ExtractionResult, attempt Attempt) (*scrape.ExtractionResult, Attempt, error) {
	l.logger.Warn("deep review extraction empty despite claimed reviews, falling back",
		zap.Int("claimed", deep.ClaimedReviewCount),
	)

	fn, ok := l.levels[scrape.LevelReviews]
	if !ok {
		deep.Method = scrape.MethodLevel4NoReviews
		attempt.Outcome = OutcomeSucceeded
		return deep, attempt, nil
	}

	fallback, err := fn(ctx)
	if err != nil || fallback == nil || len(fallback.Reviews) == 0 {
		if err != nil {
			l.logger.Warn("fallback extraction failed", zap.Error(err))
		}
		deep.Method = scrape.MethodLevel4NoReviews
		attempt.Outcome = OutcomeSucceeded
		return deep, attempt, nil
	}

	fallback.Method = scrape.MethodLevel4Fallback
	fallback.ClaimedReviewCount = deep.ClaimedReviewCount
	fallback.LevelsAttempted = append(deep.LevelsAttempted, scrape.LevelReviews)
	attempt.Outcome = OutcomeFellBack
	attempt.FellBackTo = scrape.LevelReviews
	return fallback, attempt, nil
}

// SuccessRate computes the share of attempted entities that yielded at
// least one usable field. The denominator is always the attempted count:
// an entity with zero usable fields is a failure, not an exclusion, so an
// all-failure batch reports 0, never an undefined or inflated rate.
func SuccessRate(results []*scrape.ExtractionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	populated := 0
	for _, r := range results {
		if r.Populated() {
			populated++
		}
	}
	return float64(populated) / float64(len(results))
}
