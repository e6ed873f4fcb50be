package booking

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// hotelSummary is one entry parsed from the search results listing.
type hotelSummary struct {
	Name   string
	URL    string
	Price  string
	Rating float64
}

// Selectors for booking.com markup. The site ships stable data-testid
// attributes alongside its obfuscated class names, so only those are used.
const (
	selPropertyCard  = `div[data-testid="property-card"]`
	selCardTitle     = `div[data-testid="title"]`
	selCardLink      = `a[data-testid="title-link"]`
	selCardPrice     = `span[data-testid="price-and-discounted-price"]`
	selCardScore     = `div[data-testid="review-score"]`
	selDetailName    = `h2[data-testid="property-name"], h2.pp-header__title`
	selDetailAddress = `div[data-testid="address"], span.hp_address_subtitle`
	selDetailDesc    = `p[data-testid="property-description"]`
	selDetailScore   = `div[data-testid="review-score-component"]`
	selDetailAmenity = `div[data-testid="property-most-popular-facilities-wrapper"] li`
	selReviewCard    = `div[data-testid="review-card"]`
	selReviewName    = `div[data-testid="review-avatar"]`
	selReviewText    = `div[data-testid="review-positive-text"], div[data-testid="review-negative-text"]`
	selReviewScore   = `div[data-testid="review-score"]`
	selReviewDate    = `span[data-testid="review-date"]`
	selReviewNext    = `button[aria-label="Next page"]`
	selShowReviews   = `button[data-testid="fr-read-all-reviews"]`
)

var (
	reCount  = regexp.MustCompile(`([\d,]+)\s+review`)
	reNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// parseSearchResults extracts hotel summaries from the results listing.
func parseSearchResults(html string, limit int) ([]hotelSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var hotels []hotelSummary
	doc.Find(selPropertyCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		h := hotelSummary{
			Name:  cleanText(card.Find(selCardTitle).First().Text()),
			Price: cleanText(card.Find(selCardPrice).First().Text()),
		}
		if href, ok := card.Find(selCardLink).First().Attr("href"); ok {
			h.URL = stripQuery(href)
		}
		h.Rating = firstNumber(card.Find(selCardScore).First().Text())
		if h.Name == "" {
			return true
		}
		hotels = append(hotels, h)
		return limit <= 0 || len(hotels) < limit
	})
	return hotels, nil
}

// parseDetailFields extracts property-page fields for levels 2 and up,
// returning the fields and the page's claimed review total.
func parseDetailFields(html string) (map[string]any, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, err
	}
	fields := map[string]any{}
	if v := cleanText(doc.Find(selDetailName).First().Text()); v != "" {
		fields["name"] = v
	}
	if v := cleanText(doc.Find(selDetailAddress).First().Text()); v != "" {
		fields["address"] = v
	}
	if v := cleanText(doc.Find(selDetailDesc).First().Text()); v != "" {
		fields["description"] = v
	}
	var amenities []string
	doc.Find(selDetailAmenity).Each(func(_ int, item *goquery.Selection) {
		if v := cleanText(item.Text()); v != "" {
			amenities = append(amenities, v)
		}
	})
	if len(amenities) > 0 {
		fields["amenities"] = amenities
	}
	scoreText := doc.Find(selDetailScore).First().Text()
	if rating := firstNumber(scoreText); rating > 0 {
		fields["rating"] = rating
	}
	claimed := claimedReviewCount(scoreText)
	if claimed == 0 {
		claimed = claimedReviewCount(doc.Text())
	}
	return fields, claimed, nil
}

// parseReviewPage extracts one page of reviews and whether an enabled
// next-page control is present. HasNext comes only from the control, the
// claimed total is never used to predict more pages.
func parseReviewPage(html string) (scrape.ReviewPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return scrape.ReviewPage{}, err
	}
	var page scrape.ReviewPage
	doc.Find(selReviewCard).Each(func(_ int, card *goquery.Selection) {
		page.RawItemCount++
		r := scrape.Review{
			Reviewer: cleanText(card.Find(selReviewName).First().Text()),
			Text:     cleanText(card.Find(selReviewText).First().Text()),
			Rating:   firstNumber(card.Find(selReviewScore).First().Text()),
			Date:     cleanText(card.Find(selReviewDate).First().Text()),
		}
		if r.Text == "" {
			return
		}
		page.Items = append(page.Items, r)
	})
	next := doc.Find(selReviewNext).First()
	if next.Length() > 0 {
		_, disabled := next.Attr("disabled")
		page.HasNext = !disabled
	}
	return page, nil
}

func claimedReviewCount(text string) int {
	m := reCount.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func firstNumber(text string) float64 {
	m := reNumber.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return n
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripQuery drops tracking query parameters from listing links.
func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
