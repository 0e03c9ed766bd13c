// Package search answers free-text queries over indexed rounds. A query is
// interpreted (keyword table first, then the language model), embedded, run
// against the cloud tier, and falls back to the local tier when the cloud
// yields nothing. Every stage degrades instead of failing the request.
package search

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/ai"
	"github.com/retakeai/retake/internal/metrics"
	"github.com/retakeai/retake/internal/store"
)

// Search tuning constants. Cloud results are pre-filtered by the similarity
// floor; local fallback results are cut at a distance ceiling instead.
const (
	cloudSimilarityFloor = 0.5
	cloudCandidateLimit  = 20
	localCandidateLimit  = 25
	localDistanceCeiling = 0.60
	// DefaultLimit caps the final response when the caller does not ask
	// for a specific size.
	DefaultLimit = 12
)

// teamKeywords maps common abbreviations and names to canonical team slugs.
// Keyword hits take precedence over model-extracted slugs.
var teamKeywords = map[string]string{
	"prx":       "paperrex",
	"paper rex": "paperrex",
	"drx":       "drx",
	"fnc":       "fnatic",
	"fnatic":    "fnatic",
	"nrg":       "nrg",
	"sen":       "sentinels",
	"sentinels": "sentinels",
	"th":        "teamheretics",
	"heretics":  "teamheretics",
	"lev":       "leviatán",
	"leviatán":  "leviatán",
	"loud":      "loud",
	"tl":        "teamliquid",
	"liquid":    "teamliquid",
}

// keywordOrder fixes the iteration order so overlapping keywords resolve
// deterministically, longer and more specific entries first.
var keywordOrder = []string{
	"paper rex", "prx", "drx", "fnatic", "fnc", "nrg",
	"sentinels", "sen", "heretics", "th", "leviatán", "lev",
	"loud", "liquid", "tl",
}

// Intent is the interpreted shape of a query returned alongside results.
type Intent struct {
	Team      string `json:"team"`
	Map       string `json:"map"`
	RoundType string `json:"round_type"`
}

// Response is the outcome of one query.
type Response struct {
	Results []store.Result `json:"results"`
	Intent  Intent         `json:"intent"`
}

// Service runs queries against the configured tiers. Either tier and both
// AI capabilities may be absent.
type Service struct {
	local     store.Local
	cloud     store.Cloud
	extractor ai.IntentExtractor
	embedder  ai.Embedder
	logger    *zap.Logger
}

// New builds a search service. Nil tiers and nil AI capabilities are
// allowed; the service skips what it does not have.
func New(local store.Local, cloud store.Cloud, extractor ai.IntentExtractor, embedder ai.Embedder, logger *zap.Logger) *Service {
	return &Service{
		local:     local,
		cloud:     cloud,
		extractor: extractor,
		embedder:  embedder,
		logger:    logger,
	}
}

// Query interprets and executes a free-text search. limit <= 0 means
// DefaultLimit. The call itself never fails: missing capabilities or tier
// errors shrink the result set, and the worst case is an empty response
// carrying whatever intent was detected.
func (s *Service) Query(ctx context.Context, text string, limit int) Response {
	if limit <= 0 {
		limit = DefaultLimit
	}
	intent := s.interpret(ctx, text)
	filters := store.Filters{
		TeamSlug:   intent.Team,
		MapName:    capitalize(intent.Map),
		RoundType:  strings.ToLower(intent.RoundType),
		PistolOnly: strings.EqualFold(intent.RoundType, "pistol"),
	}

	results := s.cloudSearch(ctx, text, filters)
	if len(results) == 0 {
		results = s.localSearch(ctx, text, filters)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []store.Result{}
	}
	return Response{Results: results, Intent: intent}
}

// interpret resolves the query intent: the keyword table decides the team
// slug first, then the model fills in whatever is still missing.
func (s *Service) interpret(ctx context.Context, text string) Intent {
	var intent Intent
	lower := strings.ToLower(text)
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	}) {
		tokens[tok] = true
	}
	for _, kw := range keywordOrder {
		// Multiword keywords match as phrases; short abbreviations only
		// match whole tokens so "th" does not fire inside "thrifty".
		matched := tokens[kw]
		if !matched && strings.Contains(kw, " ") {
			matched = strings.Contains(lower, kw)
		}
		if matched {
			intent.Team = teamKeywords[kw]
			break
		}
	}

	if s.extractor == nil {
		return intent
	}
	extracted, err := s.extractor.ExtractIntent(ctx, text)
	if err != nil {
		s.logger.Debug("intent extraction unavailable", zap.Error(err))
		return intent
	}
	if intent.Team == "" {
		intent.Team = extracted.TeamSlug
	}
	intent.Map = extracted.MapName
	intent.RoundType = extracted.RoundType
	return intent
}

func (s *Service) cloudSearch(ctx context.Context, text string, filters store.Filters) []store.Result {
	if s.cloud == nil || s.embedder == nil {
		return nil
	}
	vector, err := s.embedder.Embed(ctx, text, ai.EmbedModeQuery)
	if err != nil {
		s.logger.Debug("query embedding unavailable", zap.Error(err))
		return nil
	}
	hits, err := s.cloud.SimilaritySearch(ctx, vector, filters, cloudSimilarityFloor, cloudCandidateLimit)
	if err != nil {
		s.logger.Warn("cloud search failed, falling back to local tier", zap.Error(err))
		return nil
	}
	metrics.ObserveSearch("cloud")

	results := make([]store.Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, store.Result{
			ID:       hit.ID,
			Document: hit.Summary,
			Metadata: hit.Metadata,
			Distance: 1 - hit.Similarity,
		})
	}
	return results
}

// localSearch is the fallback path: wider candidate pool, a hard distance
// ceiling, and round_id dedupe since the local tier may hold several
// generations of the same round.
func (s *Service) localSearch(ctx context.Context, text string, filters store.Filters) []store.Result {
	if s.local == nil {
		return nil
	}
	candidates, err := s.local.Query(ctx, text, filters, localCandidateLimit)
	if err != nil {
		s.logger.Warn("local search failed", zap.Error(err))
		return nil
	}
	metrics.ObserveSearch("local")

	seen := make(map[any]bool)
	results := make([]store.Result, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Distance > localDistanceCeiling {
			continue
		}
		if roundID, ok := cand.Metadata["round_id"]; ok {
			if seen[roundID] {
				continue
			}
			seen[roundID] = true
		}
		results = append(results, cand)
	}
	return results
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
