package twitter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Selectors for x.com markup. Like booking, the stable data-testid
// attributes are the only thing worth targeting; class names rotate.
const (
	selProfileHeader = `div[data-testid="UserName"]`
	selDisplayName   = `div[data-testid="UserName"] div[dir="ltr"] span`
	selBio           = `div[data-testid="UserDescription"]`
	selVerifiedIcon  = `svg[data-testid="icon-verified"]`
	selFollowersLink = `a[href$="/followers"], a[href$="/verified_followers"]`
	selFollowingLink = `a[href$="/following"]`
	selTweet         = `article[data-testid="tweet"]`
	selTweetText     = `div[data-testid="tweetText"]`
	selTweetAuthor   = `div[data-testid="User-Name"] a[href^="/"]`
	selTweetTime     = `time[datetime]`
	selUserCell      = `div[data-testid="UserCell"]`
	selUserCellBio   = `div[data-testid="UserCell"] span[dir="auto"]`
)

var (
	rePostsCount   = regexp.MustCompile(`([\d.,]+[KMB]?)\s+posts`)
	reCompactCount = regexp.MustCompile(`[\d.,]+[KMB]?`)
)

// parseProfile extracts the profile header fields and the profile's claimed
// post total. A missing header means the account does not exist or the page
// never rendered; callers treat that as navigation failure upstream.
func parseProfile(html string) (map[string]any, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, err
	}
	fields := map[string]any{}
	if v := cleanText(doc.Find(selDisplayName).First().Text()); v != "" {
		fields["display_name"] = v
	}
	if v := cleanText(doc.Find(selBio).First().Text()); v != "" {
		fields["bio"] = v
	}
	fields["verified"] = doc.Find(selVerifiedIcon).Length() > 0
	if n, ok := compactCount(doc.Find(selFollowersLink).First().Text()); ok {
		fields["followers_count"] = n
	}
	if n, ok := compactCount(doc.Find(selFollowingLink).First().Text()); ok {
		fields["following_count"] = n
	}
	claimed := 0
	if m := rePostsCount.FindStringSubmatch(doc.Text()); m != nil {
		if n, ok := parseCompact(m[1]); ok {
			claimed = n
		}
	}
	return fields, claimed, nil
}

// parseTweets extracts up to limit tweets from the rendered timeline.
// Tweets without visible text (pure media or deleted placeholders) are
// skipped, matching what the raw article count reports separately.
func parseTweets(html, fallbackAuthor string, limit int) ([]scrape.Review, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var tweets []scrape.Review
	doc.Find(selTweet).EachWithBreak(func(_ int, article *goquery.Selection) bool {
		t := scrape.Review{
			Reviewer: tweetAuthor(article, fallbackAuthor),
			Text:     cleanText(article.Find(selTweetText).First().Text()),
		}
		if ts, ok := article.Find(selTweetTime).First().Attr("datetime"); ok {
			t.Date = ts
		}
		if t.Text == "" {
			return true
		}
		tweets = append(tweets, t)
		return limit <= 0 || len(tweets) < limit
	})
	return tweets, nil
}

// parseMediaURLs collects image and video poster URLs from timeline tweets.
func parseMediaURLs(html string, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var urls []string
	doc.Find(selTweet).Find(`img[src*="pbs.twimg.com/media"], video[poster]`).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		src, ok := m.Attr("src")
		if !ok {
			src, ok = m.Attr("poster")
		}
		if ok && src != "" {
			urls = append(urls, src)
		}
		return limit <= 0 || len(urls) < limit
	})
	return urls, nil
}

// parseFollowers extracts user cells from a followers listing page.
func parseFollowers(html string, limit int) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var followers []map[string]any
	doc.Find(selUserCell).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		f := map[string]any{}
		if href, ok := cell.Find(`a[href^="/"]`).First().Attr("href"); ok {
			f["username"] = strings.TrimPrefix(href, "/")
		}
		if v := cleanText(cell.Find("span").First().Text()); v != "" {
			f["display_name"] = v
		}
		if v := cleanText(cell.Find(selUserCellBio).Last().Text()); v != "" && v != f["display_name"] {
			f["bio"] = v
		}
		if _, ok := f["username"]; !ok {
			return true
		}
		followers = append(followers, f)
		return limit <= 0 || len(followers) < limit
	})
	return followers, nil
}

func tweetAuthor(article *goquery.Selection, fallback string) string {
	if href, ok := article.Find(selTweetAuthor).First().Attr("href"); ok {
		handle := strings.TrimPrefix(href, "/")
		if i := strings.IndexAny(handle, "/?"); i >= 0 {
			handle = handle[:i]
		}
		if handle != "" {
			return handle
		}
	}
	return fallback
}

// compactCount finds the first compact number in text, e.g. "1.2K Followers".
func compactCount(text string) (int, bool) {
	m := reCompactCount.FindString(text)
	if m == "" {
		return 0, false
	}
	return parseCompact(m)
}

// parseCompact converts display counts like "1,204", "1.2K" or "3M" to an
// integer. Suffixed values are approximations and are treated as such.
func parseCompact(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "B"):
		mult, s = 1e9, strings.TrimSuffix(s, "B")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(n * mult), true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
