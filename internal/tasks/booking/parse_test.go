package booking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func searchResultsHTML(n int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `
<div data-testid="property-card">
  <a data-testid="title-link" href="https://www.booking.com/hotel/sa/hotel-%d.html?aid=tracking"></a>
  <div data-testid="title">Hotel %d</div>
  <span data-testid="price-and-discounted-price">SAR %d00</span>
  <div data-testid="review-score"><div>8.%d</div><div>Very Good</div></div>
</div>`, i, i, i, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const detailHTML = `
<html><body>
  <h2 data-testid="property-name">Desert Pearl Hotel</h2>
  <div data-testid="address">123 King Fahd Road, Riyadh</div>
  <p data-testid="property-description">A quiet stay near the business district.</p>
  <div data-testid="review-score-component">9.1 Superb · 1,204 reviews</div>
  <div data-testid="property-most-popular-facilities-wrapper">
    <ul><li>Free WiFi</li><li>Airport shuttle</li><li> </li></ul>
  </div>
</body></html>`

func reviewPageHTML(names []string, nextEnabled, nextPresent bool) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, name := range names {
		fmt.Fprintf(&b, `
<div data-testid="review-card">
  <div data-testid="review-avatar">%s</div>
  <div data-testid="review-score">Scored 8.%d</div>
  <span data-testid="review-date">Reviewed: 1 June 2025</span>
  <div data-testid="review-positive-text">Great stay number %d</div>
</div>`, name, i, i)
	}
	if nextPresent {
		if nextEnabled {
			b.WriteString(`<button aria-label="Next page">Next</button>`)
		} else {
			b.WriteString(`<button aria-label="Next page" disabled>Next</button>`)
		}
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestParseSearchResults(t *testing.T) {
	t.Parallel()

	hotels, err := parseSearchResults(searchResultsHTML(5), 3)
	require.NoError(t, err)
	require.Len(t, hotels, 3)

	first := hotels[0]
	require.Equal(t, "Hotel 1", first.Name)
	require.Equal(t, "https://www.booking.com/hotel/sa/hotel-1.html", first.URL, "tracking params must be stripped")
	require.Equal(t, "SAR 100", first.Price)
	require.InDelta(t, 8.1, first.Rating, 0.001)
}

func TestParseSearchResults_SkipsNamelessCards(t *testing.T) {
	t.Parallel()

	html := `<div data-testid="property-card"><span data-testid="price-and-discounted-price">SAR 1</span></div>` +
		searchResultsHTML(1)
	hotels, err := parseSearchResults(html, 0)
	require.NoError(t, err)
	require.Len(t, hotels, 1)
	require.Equal(t, "Hotel 1", hotels[0].Name)
}

func TestParseDetailFields(t *testing.T) {
	t.Parallel()

	fields, claimed, err := parseDetailFields(detailHTML)
	require.NoError(t, err)
	require.Equal(t, "Desert Pearl Hotel", fields["name"])
	require.Equal(t, "123 King Fahd Road, Riyadh", fields["address"])
	require.Equal(t, "A quiet stay near the business district.", fields["description"])
	require.InDelta(t, 9.1, fields["rating"].(float64), 0.001)
	require.Equal(t, []string{"Free WiFi", "Airport shuttle"}, fields["amenities"])
	require.Equal(t, 1204, claimed)
}

func TestParseReviewPage(t *testing.T) {
	t.Parallel()

	page, err := parseReviewPage(reviewPageHTML([]string{"Alice", "Bob"}, true, true))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, 2, page.RawItemCount)
	require.True(t, page.HasNext)

	first := page.Items[0]
	require.Equal(t, "Alice", first.Reviewer)
	require.Equal(t, "Great stay number 0", first.Text)
	require.InDelta(t, 8.0, first.Rating, 0.001)
	require.Equal(t, "Reviewed: 1 June 2025", first.Date)
}

func TestParseReviewPage_HasNextFromControlOnly(t *testing.T) {
	t.Parallel()

	page, err := parseReviewPage(reviewPageHTML([]string{"Alice"}, false, true))
	require.NoError(t, err)
	require.False(t, page.HasNext, "disabled next control means no next page")

	page, err = parseReviewPage(reviewPageHTML([]string{"Alice"}, false, false))
	require.NoError(t, err)
	require.False(t, page.HasNext, "absent next control means no next page")
}

func TestParseReviewPage_CountsEmptyTextInRawOnly(t *testing.T) {
	t.Parallel()

	html := `<div data-testid="review-card"><div data-testid="review-avatar">Ghost</div></div>` +
		reviewPageHTML([]string{"Alice"}, false, false)
	page, err := parseReviewPage(html)
	require.NoError(t, err)
	require.Equal(t, 2, page.RawItemCount)
	require.Len(t, page.Items, 1)
}

func TestClaimedReviewCount(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1204, claimedReviewCount("9.1 Superb · 1,204 reviews"))
	require.Equal(t, 7, claimedReviewCount("7 reviews"))
	require.Zero(t, claimedReviewCount("no reviews yet"))
}
