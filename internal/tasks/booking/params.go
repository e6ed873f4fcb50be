package booking

import (
	"fmt"
	"time"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

const (
	defaultMaxResults = 10
	maxMaxResults     = 25
	defaultLevel      = scrape.LevelFull
)

// searchParams are the validated client inputs for a hotel search job.
type searchParams struct {
	Location   string
	CheckIn    string
	CheckOut   string
	MaxResults int
	Level      scrape.Level
	MinRating  float64
}

// parseParams validates the raw submission parameters. Validation
// failures are bad_params errors so the client sees what to fix.
func parseParams(p scrape.Params) (searchParams, error) {
	sp := searchParams{
		Location:   p.String("location", ""),
		CheckIn:    p.String("check_in", ""),
		CheckOut:   p.String("check_out", ""),
		MaxResults: p.Int("max_results", defaultMaxResults),
		Level:      scrape.Level(p.Int("scrape_level", int(defaultLevel))),
		MinRating:  p.Float("min_rating", 0),
	}
	if sp.Location == "" {
		return searchParams{}, &scrape.ParamError{Field: "location", Reason: "is required"}
	}
	if !sp.Level.Valid() {
		return searchParams{}, &scrape.ParamError{
			Field:  "scrape_level",
			Reason: fmt.Sprintf("must be between %d and %d: %v", scrape.MinLevel, scrape.MaxLevel, scrape.ErrInvalidLevel),
		}
	}
	if sp.MaxResults <= 0 {
		sp.MaxResults = defaultMaxResults
	}
	if sp.MaxResults > maxMaxResults {
		sp.MaxResults = maxMaxResults
	}
	for _, field := range []struct {
		name, value string
	}{
		{"check_in", sp.CheckIn},
		{"check_out", sp.CheckOut},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", field.value); err != nil {
			return searchParams{}, &scrape.ParamError{Field: field.name, Reason: "must be a YYYY-MM-DD date"}
		}
	}
	if sp.MinRating < 0 || sp.MinRating > 10 {
		return searchParams{}, &scrape.ParamError{Field: "min_rating", Reason: "must be between 0 and 10"}
	}
	return sp, nil
}
