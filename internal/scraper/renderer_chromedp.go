package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/retakeai/retake/internal/config"
)

// ChromedpRenderer implements Renderer using headless Chrome. A single exec
// allocator is shared across calls; each Render gets its own browser context
// which is always released before returning.
type ChromedpRenderer struct {
	cfg         config.ScraperConfig
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates a headless renderer backed by chromedp.
func NewChromedpRenderer(cfg config.ScraperConfig) *ChromedpRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromedpRenderer{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close cancels the allocator context.
func (r *ChromedpRenderer) Close() {
	r.allocCancel()
}

// Render navigates to url, waits for DOM construction plus a fixed settle
// period for client-side hydration, then captures the rendered markup.
func (r *ChromedpRenderer) Render(ctx context.Context, url string) (string, error) {
	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.navTimeout())
	defer cancel()

	// Honor caller cancellation even though chromedp runs on its own tree.
	go func() {
		select {
		case <-ctx.Done():
			taskCancel()
		case <-taskCtx.Done():
		}
	}()

	var html string
	actions := []chromedp.Action{
		chromedp.ActionFunc(func(actionCtx context.Context) error {
			if r.cfg.UserAgent == "" {
				return nil
			}
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(actionCtx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
			return nil
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle()),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (r *ChromedpRenderer) navTimeout() time.Duration {
	if t := r.cfg.RenderTimeout(); t > 0 {
		return t
	}
	return 30 * time.Second
}

func (r *ChromedpRenderer) settle() time.Duration {
	if s := r.cfg.RenderSettle(); s > 0 {
		return s
	}
	return 3 * time.Second
}
