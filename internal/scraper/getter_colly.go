package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/retakeai/retake/internal/config"
)

// CollyGetter implements PageGetter using the Colly collector.
type CollyGetter struct {
	cfg           config.ScraperConfig
	baseCollector *colly.Collector
}

// NewCollyGetter builds the fast-path getter. Redirects are followed and the
// configured browser user-agent is sent so the fast path looks like a real
// client for as long as the source tolerates it.
func NewCollyGetter(cfg config.ScraperConfig) *CollyGetter {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &CollyGetter{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Get executes a single HTTP GET using a clone of the base collector.
func (g *CollyGetter) Get(ctx context.Context, url string) (Response, error) {
	collector := g.baseCollector.Clone()
	if g.cfg.UserAgent != "" {
		collector.UserAgent = g.cfg.UserAgent
	}
	timeout := g.cfg.RequestTimeout()
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		result   Response
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports HTTP error statuses through OnError; keep the
		// status so the caller can distinguish 403 from network faults.
		if r != nil && r.StatusCode != 0 {
			result = Response{
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
			}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return Response{}, fmt.Errorf("http get %s: %w", url, fetchErr)
		}
		if result.StatusCode != 0 {
			return result, nil
		}
		if err != nil {
			return Response{}, fmt.Errorf("http get %s: %w", url, err)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
