// Package sitescrape implements a static site crawl task built on
// colly. It never uses the browser runtime; pages that need script
// execution belong to the chromedp-backed tasks.
package sitescrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// TaskName is the registry name clients submit against.
const TaskName = "scrape-site"

// Config carries crawl defaults from service configuration.
type Config struct {
	MaxPagesDefault int
	MaxDepthDefault int
	UserAgent       string
}

// Task crawls a site breadth-first within its own host and stores each
// page's text content through the result sink.
type Task struct {
	cfg Config
}

// New constructs the site crawl task.
func New(cfg Config) *Task {
	return &Task{cfg: cfg}
}

// Name implements scrape.Task.
func (t *Task) Name() string { return TaskName }

type crawledPage struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Depth int    `json:"depth"`
}

// Run crawls from the start URL, staying on the start host, bounded by
// max_pages and max_depth.
func (t *Task) Run(ctx context.Context, in scrape.RunInput) (map[string]any, error) {
	startURL := in.Params.String("url", "")
	if startURL == "" {
		return nil, &scrape.ParamError{Field: "url", Reason: "is required"}
	}
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" || !strings.HasPrefix(start.Scheme, "http") {
		return nil, &scrape.ParamError{Field: "url", Reason: "must be an absolute http(s) URL"}
	}
	maxPages := in.Params.Int("max_pages", t.cfg.MaxPagesDefault)
	maxDepth := in.Params.Int("max_depth", t.cfg.MaxDepthDefault)
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
		colly.MaxDepth(maxDepth),
		colly.UserAgent(t.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)

	var (
		mu      sync.Mutex
		pages   []crawledPage
		visited int
	)

	c.OnHTML("html", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if maxPages > 0 && len(pages) >= maxPages {
			return
		}
		pages = append(pages, crawledPage{
			URL:   e.Request.URL.String(),
			Title: strings.TrimSpace(e.DOM.Find("title").First().Text()),
			Text:  strings.Join(strings.Fields(e.DOM.Find("body").Text()), " "),
			Depth: e.Request.Depth,
		})
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		full := maxPages > 0 && visited >= maxPages
		mu.Unlock()
		if full {
			return
		}
		if err := e.Request.Visit(e.Attr("href")); err == nil {
			mu.Lock()
			visited++
			mu.Unlock()
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.Debug("page fetch failed",
			zap.String("url", r.Request.URL.String()),
			zap.Error(err),
		)
	})

	if err := c.Visit(start.String()); err != nil {
		return nil, &scrape.NavigationError{URL: start.String(), Err: err}
	}
	c.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(pages) == 0 {
		return nil, &scrape.NavigationError{URL: start.String(), Err: fmt.Errorf("no pages crawled")}
	}

	result := map[string]any{
		"task":       TaskName,
		"start_url":  start.String(),
		"page_count": len(pages),
		"max_depth":  maxDepth,
	}
	if in.Sink != nil {
		data, err := json.MarshalIndent(pages, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode crawled pages: %w", err)
		}
		uri, err := in.Sink.Put(ctx, fmt.Sprintf("%s/%s-pages.json", TaskName, in.JobID), data)
		if err != nil {
			logger.Warn("store crawled pages failed", zap.Error(err))
		} else {
			result["pages_uri"] = uri
		}
	}
	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	result["urls"] = urls
	return result, nil
}
