// Package ghrepo summarizes a GitHub repository's landing page.
package ghrepo

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// TaskName is the registry name clients submit against.
const TaskName = "github-repo"

const (
	selAbout    = `p.f4.my-3, div.BorderGrid-cell p.f4`
	selStars    = `#repo-stars-counter-star`
	selForks    = `#repo-network-counter`
	selLanguage = `a[data-ga-click*="language"] span, li.d-inline span.color-fg-default`
	selTopics   = `a.topic-tag`
)

var repoPath = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)

// Task extracts repository summary fields from the landing page.
type Task struct{}

// New constructs the GitHub repo task.
func New() *Task { return &Task{} }

// Name implements scrape.Task.
func (t *Task) Name() string { return TaskName }

// Run loads github.com/<repo> and parses summary fields.
func (t *Task) Run(ctx context.Context, in scrape.RunInput) (map[string]any, error) {
	repo := strings.TrimSuffix(strings.TrimPrefix(in.Params.String("repo", ""), "https://github.com/"), "/")
	if repo == "" {
		return nil, &scrape.ParamError{Field: "repo", Reason: "is required"}
	}
	if !repoPath.MatchString(repo) {
		return nil, &scrape.ParamError{Field: "repo", Reason: "must be owner/name"}
	}

	session, err := in.Browser.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer session.Close()

	target := "https://github.com/" + repo
	if err := session.Navigate(ctx, target); err != nil {
		return nil, err
	}
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse repository page: %w", err)
	}

	result := map[string]any{
		"task": TaskName,
		"repo": repo,
		"url":  target,
	}
	if v := clean(doc.Find(selAbout).First().Text()); v != "" {
		result["description"] = v
	}
	if v := clean(doc.Find(selStars).First().Text()); v != "" {
		result["stars"] = v
	}
	if v := clean(doc.Find(selForks).First().Text()); v != "" {
		result["forks"] = v
	}
	if v := clean(doc.Find(selLanguage).First().Text()); v != "" {
		result["language"] = v
	}
	var topics []string
	doc.Find(selTopics).Each(func(_ int, s *goquery.Selection) {
		if v := clean(s.Text()); v != "" {
			topics = append(topics, v)
		}
	})
	if len(topics) > 0 {
		result["topics"] = topics
	}
	return result, nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
