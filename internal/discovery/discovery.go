// Package discovery walks tournament pages into series URLs and drives the
// scrape-normalize-index pipeline over them. Crawls are best-effort: a page
// that fails mid-walk yields the links collected so far instead of nothing.
package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/archive"
	"github.com/retakeai/retake/internal/ingest"
	"github.com/retakeai/retake/internal/notify"
	"github.com/retakeai/retake/internal/rounds"
	"github.com/retakeai/retake/internal/scraper"
	"github.com/retakeai/retake/internal/store"
)

// seriesLinkPattern matches series hyperlinks in rendered markup, capturing
// the trailing numeric id.
var seriesLinkPattern = regexp.MustCompile(`/series/.*?(\d+)$`)

// defaultNotifyTopic carries tournament ingestion notifications unless
// configuration names another topic.
const defaultNotifyTopic = "ingest.completed"

// Fetcher is the page-retrieval surface the crawler needs. Fetch uses the
// adaptive fast path; Render always uses the browser, which discovery
// relies on to see dynamically injected links.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Render(ctx context.Context, url string) (string, error)
}

// Service crawls events and ingests the series they contain.
type Service struct {
	fetcher  Fetcher
	ingester *ingest.Service
	cloud    store.Cloud
	archiver archive.Store
	notifier notify.Publisher
	topic    string
	baseURL  string
	logger   *zap.Logger
}

// New builds a discovery service. cloud, archiver and notifier may be nil;
// an empty notifyTopic falls back to the default.
func New(fetcher Fetcher, ingester *ingest.Service, cloud store.Cloud, archiver archive.Store, notifier notify.Publisher, notifyTopic, baseURL string, logger *zap.Logger) *Service {
	if notifyTopic == "" {
		notifyTopic = defaultNotifyTopic
	}
	return &Service{
		fetcher:  fetcher,
		ingester: ingester,
		cloud:    cloud,
		archiver: archiver,
		notifier: notifier,
		topic:    notifyTopic,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// CrawlTournament walks an event page and returns the canonical URLs of
// every series it references, descending into child events (group stages,
// playoff brackets). The returned slice is deduplicated and sorted; on
// error it holds whatever was collected before the failure.
func (s *Service) CrawlTournament(ctx context.Context, eventURL string) ([]string, error) {
	ids := make(map[string]bool)
	err := s.crawl(ctx, eventURL, ids)

	urls := make([]string, 0, len(ids))
	for id := range ids {
		urls = append(urls, fmt.Sprintf("%s/series/%s", s.baseURL, id))
	}
	sort.Strings(urls)
	return urls, err
}

func (s *Service) crawl(ctx context.Context, eventURL string, ids map[string]bool) error {
	s.logger.Info("crawling event page", zap.String("url", eventURL))

	// Always render: series lists and bracket links are injected
	// client-side and invisible to the plain HTTP path.
	html, err := s.fetcher.Render(ctx, eventURL)
	if err != nil {
		return fmt.Errorf("render event page %s: %w", eventURL, err)
	}

	payload := scraper.ExtractNextData(html, s.logger)
	event := eventData(payload)

	for _, key := range []string{"series", "allSeries", "results"} {
		items, _ := event[key].([]any)
		for _, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if id := numericID(entry["id"]); id != "" {
				ids[id] = true
			}
		}
	}

	children, _ := event["childEvents"].([]any)
	for _, raw := range children {
		child, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		childID := numericID(child["id"])
		if childID == "" {
			continue
		}
		childURL := fmt.Sprintf("%s/events/_/%s", s.baseURL, childID)
		s.logger.Info("descending into child event", zap.String("child_id", childID))
		if err := s.crawl(ctx, childURL, ids); err != nil {
			s.logger.Warn("child event crawl incomplete", zap.String("url", childURL), zap.Error(err))
		}
	}

	s.collectLinkedSeries(html, ids)
	return nil
}

// collectLinkedSeries is the markup fallback pass, catching series links the
// embedded JSON misses.
func (s *Service) collectLinkedSeries(html string, ids map[string]bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn("parsing event markup for links", zap.Error(err))
		return
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if m := seriesLinkPattern.FindStringSubmatch(href); m != nil {
			ids[m[1]] = true
		}
	})
}

// ProcessSeries fetches one series page and returns its normalized rounds.
// The raw page body is archived best-effort, keyed by content hash.
func (s *Service) ProcessSeries(ctx context.Context, seriesURL string) ([]rounds.Record, error) {
	html, err := s.fetcher.Fetch(ctx, seriesURL)
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", seriesURL, err)
	}
	s.archivePage(ctx, html)

	payload := scraper.ExtractNextData(html, s.logger)
	if len(payload) == 0 {
		return nil, nil
	}
	recs := rounds.Normalize(payload, s.logger)
	s.logger.Info("processed series", zap.String("url", seriesURL), zap.Int("rounds", len(recs)))
	return recs, nil
}

func (s *Service) archivePage(ctx context.Context, html string) {
	if s.archiver == nil {
		return
	}
	sum := sha256.Sum256([]byte(html))
	path := fmt.Sprintf("pages/%s.html", hex.EncodeToString(sum[:]))
	if _, err := s.archiver.Put(ctx, path, "text/html", []byte(html)); err != nil {
		s.logger.Warn("archiving page body", zap.Error(err))
	}
}

// IngestTournament registers the event, crawls it, and ingests every series
// found, returning the total number of rounds indexed. Individual series
// failures are logged and skipped.
func (s *Service) IngestTournament(ctx context.Context, eventURL string) (int, error) {
	eventUUID := s.registerEvent(ctx, eventURL)

	urls, err := s.CrawlTournament(ctx, eventURL)
	if err != nil && len(urls) == 0 {
		return 0, err
	}
	s.logger.Info("tournament crawl finished", zap.String("url", eventURL), zap.Int("series", len(urls)))

	common := map[string]any{}
	if eventUUID != "" {
		common["event_id"] = eventUUID
	}

	total := 0
	for _, url := range urls {
		recs, err := s.ProcessSeries(ctx, url)
		if err != nil {
			s.logger.Warn("skipping series", zap.String("url", url), zap.Error(err))
			continue
		}
		if len(recs) == 0 {
			continue
		}
		if _, err := s.ingester.Ingest(ctx, recs, common); err != nil {
			s.logger.Warn("indexing series failed", zap.String("url", url), zap.Error(err))
			continue
		}
		total += len(recs)
	}

	s.notifyCompleted(ctx, eventURL, len(urls), total)
	return total, nil
}

// registerEvent upserts the event row in the cloud tier, deriving the
// external id and display name from the URL.
func (s *Service) registerEvent(ctx context.Context, eventURL string) string {
	if s.cloud == nil {
		return ""
	}
	id, err := s.cloud.UpsertEvent(ctx, store.EventRegistration{
		ExternalID: eventExternalID(eventURL),
		Name:       eventDisplayName(eventURL),
		URL:        eventURL,
	})
	if err != nil {
		s.logger.Warn("event registration failed", zap.String("url", eventURL), zap.Error(err))
		return ""
	}
	return id
}

func (s *Service) notifyCompleted(ctx context.Context, eventURL string, series, total int) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"event_url": eventURL,
		"series":    series,
		"rounds":    total,
	}
	if _, err := s.notifier.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn("publishing ingest notification", zap.Error(err))
	}
}

// eventData digs the event object out of a Next.js page payload.
func eventData(payload map[string]any) map[string]any {
	props, _ := payload["props"].(map[string]any)
	pageProps, _ := props["pageProps"].(map[string]any)
	event, _ := pageProps["event"].(map[string]any)
	if event == nil {
		return map[string]any{}
	}
	return event
}

// numericID renders a JSON id value (float64 after decoding, occasionally a
// string) as its decimal form, or empty when absent.
func numericID(v any) string {
	switch id := v.(type) {
	case float64:
		return fmt.Sprintf("%d", int64(id))
	case string:
		if id != "" {
			return id
		}
	}
	return ""
}

// eventExternalID is the last path segment of the event URL.
func eventExternalID(eventURL string) string {
	trimmed := strings.TrimRight(eventURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// eventDisplayName title-cases the slug segment after /events/.
func eventDisplayName(eventURL string) string {
	_, after, found := strings.Cut(eventURL, "/events/")
	if !found {
		return eventExternalID(eventURL)
	}
	slug := after
	if i := strings.Index(slug, "/"); i >= 0 {
		slug = slug[:i]
	}
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
