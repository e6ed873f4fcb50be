package scrape

// Level is an ordinal extraction strategy descriptor. Higher levels cost
// more and populate a superset of the fields of the level below, except
// when a fallback occurred.
type Level int

// Supported extraction levels.
const (
	LevelQuick       Level = 1 // listing/summary fields only
	LevelFull        Level = 2 // + detail page fields
	LevelReviews     Level = 3 // + first page of reviews
	LevelDeepReviews Level = 4 // + paginated review extraction

	MinLevel = LevelQuick
	MaxLevel = LevelDeepReviews
)

// Valid reports whether the level is inside the supported range.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Diagnostic identifiers for the method that actually produced a result.
const (
	MethodLevel1           = "LEVEL_1_QUICK_SEARCH"
	MethodLevel2           = "LEVEL_2_FULL_DATA"
	MethodLevel3           = "LEVEL_3_BASIC_REVIEWS"
	MethodLevel4           = "LEVEL_4_ALL_REVIEWS"
	MethodLevel4Fallback   = "LEVEL_4_FALLBACK_TO_LEVEL_3"
	MethodLevel4NoReviews  = "LEVEL_4_NO_REVIEWS_FOUND"
)

// Review is one extracted review record.
type Review struct {
	Reviewer  string  `json:"reviewer,omitempty"`
	Text      string  `json:"text"`
	Rating    float64 `json:"rating,omitempty"`
	Date      string  `json:"date,omitempty"`
	PageIndex int     `json:"page_index"`
}

// ReviewPage is one fetched page of paginated content. HasNext comes from
// the page itself (presence of an enabled next control), never inferred
// from claimed totals.
type ReviewPage struct {
	Index        int      `json:"index"`
	Items        []Review `json:"items"`
	HasNext      bool     `json:"has_next"`
	RawItemCount int      `json:"raw_item_count"`
}

// ExtractionResult is the per-entity aggregate produced by one ladder run.
// ClaimedReviewCount and len(Reviews) are reported side by side and never
// reconciled; the source's self-reported totals are not authoritative.
type ExtractionResult struct {
	Fields             map[string]any `json:"fields"`
	Reviews            []Review       `json:"reviews,omitempty"`
	PagesProcessed     int            `json:"pages_processed"`
	ClaimedReviewCount int            `json:"claimed_review_count"`
	Method             string         `json:"extraction_method"`
	LevelsAttempted    []Level        `json:"levels_attempted"`
	Partial            bool           `json:"partial,omitempty"`
}

// Populated reports whether the entity carries at least one usable field.
// Entities with zero usable fields count as failures in the batch success
// rate, not exclusions.
func (r *ExtractionResult) Populated() bool {
	if r == nil {
		return false
	}
	for _, v := range r.Fields {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t != "" {
				return true
			}
		default:
			return true
		}
	}
	return len(r.Reviews) > 0
}
