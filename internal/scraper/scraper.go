// Package scraper retrieves raw page markup, escalating from a plain HTTP
// client to a headless browser when the source starts blocking us.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/config"
	"github.com/retakeai/retake/internal/metrics"
)

// Sentinel errors for the fetch taxonomy.
var (
	// ErrFetchFailed is returned once every strategy has been exhausted.
	ErrFetchFailed = errors.New("fetch failed after all strategies")
	// ErrBlocked marks a bot-detection response (HTTP 403).
	ErrBlocked = errors.New("blocked by bot detection")
)

// Response is the result of a fast-path HTTP GET.
type Response struct {
	StatusCode int
	Body       []byte
}

// PageGetter issues a single lightweight HTTP GET.
type PageGetter interface {
	Get(ctx context.Context, url string) (Response, error)
}

// Renderer loads a page in a real browser and returns the hydrated DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Client fetches pages with automatic escalation. Once a 403 is seen the
// browserMode flag is set for the lifetime of the process and every later
// fetch skips the fast path entirely. The flag is monotonic (false to true
// only), so lock-free reads are safe under concurrent callers.
type Client struct {
	cfg         config.ScraperConfig
	getter      PageGetter
	renderer    Renderer
	logger      *zap.Logger
	browserMode atomic.Bool

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(time.Duration)
}

// NewClient builds a Client from the fast-path getter and the browser renderer.
func NewClient(cfg config.ScraperConfig, getter PageGetter, renderer Renderer, logger *zap.Logger) *Client {
	c := &Client{
		cfg:      cfg,
		getter:   getter,
		renderer: renderer,
		logger:   logger,
		sleep:    time.Sleep,
	}
	if cfg.ForceBrowserStart {
		c.browserMode.Store(true)
	}
	return c
}

// BrowserMode reports whether the client has permanently escalated.
func (c *Client) BrowserMode() bool {
	return c.browserMode.Load()
}

// Fetch returns the raw markup for url. The fast path is retried on network
// errors with exponential backoff; a 403 flips the process-wide browser flag
// and re-issues through the renderer; any other network failure after the
// retries are spent falls back to the renderer once without flipping the flag.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if c.browserMode.Load() {
		c.logger.Info("Browser mode enforced; rendering directly", zap.String("url", url))
		return c.render(ctx, url)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.getter.Get(ctx, url)
		metrics.ObserveFetch("http", err)
		if err == nil {
			switch {
			case resp.StatusCode == http.StatusForbidden:
				c.logger.Warn("403 Forbidden; switching to browser mode permanently", zap.String("url", url))
				if c.browserMode.CompareAndSwap(false, true) {
					metrics.ObserveBrowserEscalation()
				}
				return c.render(ctx, url)
			case resp.StatusCode >= http.StatusBadRequest:
				return "", fmt.Errorf("%w: unexpected status %d for %s", ErrFetchFailed, resp.StatusCode, url)
			default:
				return string(resp.Body), nil
			}
		}

		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("fetch canceled: %w", err)
		}
		if attempt < c.cfg.MaxAttempts {
			delay := c.backoff(attempt)
			c.logger.Warn("Fetch attempt failed; backing off",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			c.sleep(delay)
		}
	}

	// Network failure after the bounded retries: try the browser once
	// without making the escalation permanent.
	c.logger.Warn("Fast path exhausted; falling back to browser once",
		zap.String("url", url), zap.Error(lastErr))
	html, err := c.render(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%w: %s (last network error: %v)", ErrFetchFailed, url, lastErr)
	}
	return html, nil
}

// Render fetches url through the browser regardless of the escalation flag.
// The crawler uses this directly because event listings only exist after
// client-side hydration.
func (c *Client) Render(ctx context.Context, url string) (string, error) {
	return c.render(ctx, url)
}

func (c *Client) render(ctx context.Context, url string) (string, error) {
	if c.renderer == nil {
		return "", fmt.Errorf("%w: no renderer configured for %s", ErrFetchFailed, url)
	}
	html, err := c.renderer.Render(ctx, url)
	metrics.ObserveFetch("browser", err)
	if err != nil {
		return "", fmt.Errorf("%w: render %s: %v", ErrFetchFailed, url, err)
	}
	return html, nil
}

// backoff grows exponentially from the configured base and is clamped at the
// configured cap: base, 2*base, 4*base, ...
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BackoffBase() << (attempt - 1)
	if max := c.cfg.BackoffMax(); delay > max {
		delay = max
	}
	return delay
}
