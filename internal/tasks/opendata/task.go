// Package opendata scrapes dataset listings from the Saudi open data
// portal, which renders its catalog client-side and therefore needs the
// browser runtime.
package opendata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// TaskName is the registry name clients submit against.
const TaskName = "saudi-open-data"

const (
	portalBaseURL  = "https://open.data.gov.sa/en/datasets"
	selDatasetCard = `div.dataset-card, article.dataset-item`
	selDatasetName = `h3, a.dataset-title`
	selDatasetOrg  = `span.publisher, div.dataset-org`
	selDatasetDesc = `p.description, div.dataset-notes`
)

const defaultMaxDatasets = 20

// Task lists datasets matching a search query.
type Task struct{}

// New constructs the open data task.
func New() *Task { return &Task{} }

// Name implements scrape.Task.
func (t *Task) Name() string { return TaskName }

// Run searches the portal catalog and extracts dataset summaries.
func (t *Task) Run(ctx context.Context, in scrape.RunInput) (map[string]any, error) {
	query := in.Params.String("query", "")
	maxDatasets := in.Params.Int("max_datasets", defaultMaxDatasets)
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	session, err := in.Browser.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer session.Close()

	target := portalBaseURL
	if query != "" {
		target += "?search=" + url.QueryEscape(query)
	}
	if err := session.Navigate(ctx, target); err != nil {
		return nil, err
	}
	if err := session.WaitVisible(ctx, selDatasetCard); err != nil {
		return nil, fmt.Errorf("dataset catalog never rendered: %w", err)
	}
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}

	datasets, err := parseDatasets(html, maxDatasets)
	if err != nil {
		return nil, fmt.Errorf("parse dataset catalog: %w", err)
	}
	logger.Info("datasets extracted", zap.String("query", query), zap.Int("count", len(datasets)))

	return map[string]any{
		"task":          TaskName,
		"query":         query,
		"datasets":      datasets,
		"dataset_count": len(datasets),
	}, nil
}

func parseDatasets(html string, limit int) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var datasets []map[string]any
	doc.Find(selDatasetCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := clean(card.Find(selDatasetName).First().Text())
		if name == "" {
			return true
		}
		d := map[string]any{"name": name}
		if v := clean(card.Find(selDatasetOrg).First().Text()); v != "" {
			d["publisher"] = v
		}
		if v := clean(card.Find(selDatasetDesc).First().Text()); v != "" {
			d["description"] = v
		}
		if href, ok := card.Find("a[href]").First().Attr("href"); ok {
			d["url"] = href
		}
		datasets = append(datasets, d)
		return limit <= 0 || len(datasets) < limit
	})
	return datasets, nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
