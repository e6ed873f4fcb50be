// Package browser wraps chromedp behind the scrape.BrowserRuntime and
// scrape.Session interfaces. Every job gets its own browsing context so
// cookies, storage, and in-page state never leak between scrapes.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Config controls the behavior of the browser runtime.
type Config struct {
	Headless    bool
	UserAgent   string
	NavTimeout  time.Duration
	MaxParallel int
	DomainQPS   float64
}

// Runtime owns the Chrome exec allocator and hands out per-job sessions.
type Runtime struct {
	cfg            Config
	limiter        chan struct{}
	allocator      context.Context
	allocCancel    context.CancelFunc
	domainLimiters sync.Map
	logger         *zap.Logger
}

// NewRuntime creates a runtime backed by a headless Chrome allocator.
func NewRuntime(cfg Config, logger *zap.Logger) (*Runtime, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Runtime{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context, tearing down any remaining Chrome
// processes.
func (r *Runtime) Close() {
	r.allocCancel()
}

// NewSession allocates a fresh isolated browsing context, waiting for a
// parallelism slot when one is configured.
func (r *Runtime) NewSession(ctx context.Context) (scrape.Session, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(r.allocator)
	return &session{
		runtime: r,
		ctx:     tabCtx,
		cancel:  tabCancel,
	}, nil
}

func (r *Runtime) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (r *Runtime) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

// waitDomainBudget rate limits navigations per host so one job's deep
// pagination cannot hammer a site past the configured QPS.
func (r *Runtime) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait domain limiter: %w", err)
	}
	return nil
}

// session is one chromedp tab context owned by a single job.
type session struct {
	runtime   *Runtime
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Navigate loads a URL and waits for the document body.
func (s *session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.runtime.waitDomainBudget(ctx, rawURL); err != nil {
		return err
	}
	err := s.run(ctx,
		s.networkSetup(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return &scrape.NavigationError{URL: rawURL, Err: err}
	}
	return nil
}

// WaitVisible blocks until the selector is visible or the timeout lapses.
func (s *session) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return &scrape.NavigationError{URL: selector, Err: err}
	}
	return nil
}

// Click clicks the first element matching the selector.
func (s *session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// HTML returns the rendered DOM snapshot.
func (s *session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// Close tears down the tab and releases the parallelism slot.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.runtime.release()
	})
	return nil
}

// run executes chromedp actions on the session tab under the navigation
// timeout, forwarding cancellation from the caller's context.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.ctx, s.runtime.cfg.NavTimeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (s *session) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.runtime.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.runtime.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
