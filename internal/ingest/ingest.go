// Package ingest turns normalized round records into indexed documents. Each
// round gets a natural-language summary, a content-hash id, and an optional
// embedding, then is written to whichever storage tiers are configured. Tier
// writes are independent and best-effort; a failed tier never blocks the
// other.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/ai"
	"github.com/retakeai/retake/internal/metrics"
	"github.com/retakeai/retake/internal/rounds"
	"github.com/retakeai/retake/internal/store"
)

// Service indexes round records into the configured tiers. Either tier may
// be nil, and the embedder may be a no-op; the service degrades accordingly.
type Service struct {
	local    store.Local
	cloud    store.Cloud
	embedder ai.Embedder
	logger   *zap.Logger
}

// New builds an ingest service. Nil tiers are allowed.
func New(local store.Local, cloud store.Cloud, embedder ai.Embedder, logger *zap.Logger) *Service {
	return &Service{
		local:    local,
		cloud:    cloud,
		embedder: embedder,
		logger:   logger,
	}
}

// Ingest indexes the given records, which must all belong to the same match.
// common carries extra metadata merged into every document, notably the
// "event_id" linking rounds back to a crawled tournament. It returns the ids
// of the records that were processed. An empty input produces no side
// effects.
func (s *Service) Ingest(ctx context.Context, records []rounds.Record, common map[string]any) ([]string, error) {
	if len(records) == 0 {
		return []string{}, nil
	}

	matchUUID := s.registerMatch(ctx, records[0], common)

	docs := make([]store.Document, 0, len(records))
	rows := make([]store.RoundRow, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		id, err := ContentID(rec)
		if err != nil {
			s.logger.Error("hashing round record", zap.Int64("round_id", rec.RoundID), zap.Error(err))
			continue
		}
		summary := Summary(rec)
		embedding := s.embed(ctx, summary)

		docs = append(docs, store.Document{
			ID:       id,
			Text:     summary,
			Metadata: s.metadata(rec, common),
		})
		rows = append(rows, roundRow(id, matchUUID, rec, summary, embedding))
		ids = append(ids, id)
	}

	if s.local != nil && len(docs) > 0 {
		if err := s.local.Upsert(ctx, docs); err != nil {
			metrics.ObserveStoreWriteFailure("local")
			s.logger.Error("local tier upsert failed", zap.Error(err))
		}
	}
	if s.cloud != nil && len(rows) > 0 {
		if err := s.cloud.UpsertRounds(ctx, rows); err != nil {
			metrics.ObserveStoreWriteFailure("cloud")
			s.logger.Error("cloud tier upsert failed", zap.Error(err))
		}
	}

	metrics.ObserveRoundsIngested(len(ids))
	s.logger.Info("rounds indexed",
		zap.Int64("match_id", records[0].MatchID),
		zap.Int("rounds", len(ids)))
	return ids, nil
}

// registerMatch upserts the parent match row in the cloud tier and returns
// its UUID, or empty when the tier is absent or the write fails.
func (s *Service) registerMatch(ctx context.Context, first rounds.Record, common map[string]any) string {
	if s.cloud == nil {
		return ""
	}
	eventID, _ := common["event_id"].(string)
	matchUUID, err := s.cloud.UpsertMatch(ctx, store.MatchRegistration{
		ExternalID: fmt.Sprintf("%d", first.MatchID),
		EventID:    eventID,
		TeamA:      first.TeamA,
		TeamB:      first.TeamB,
		TeamASlug:  first.TeamASlug,
		TeamBSlug:  first.TeamBSlug,
		MapName:    first.MapName,
	})
	if err != nil {
		metrics.ObserveStoreWriteFailure("cloud")
		s.logger.Warn("match registration failed", zap.Int64("match_id", first.MatchID), zap.Error(err))
		return ""
	}
	return matchUUID
}

func (s *Service) embed(ctx context.Context, summary string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, summary, ai.EmbedModeDocument)
	if err != nil {
		s.logger.Debug("document embedding unavailable", zap.Error(err))
		return nil
	}
	return vec
}

// metadata flattens a record into the scalar-only shape the local tier
// filters on, merged with the caller's common fields.
func (s *Service) metadata(rec rounds.Record, common map[string]any) map[string]any {
	md := map[string]any{
		"match_id":      rec.MatchID,
		"round_id":      rec.RoundID,
		"map_name":      rec.MapName,
		"round_num":     rec.RoundNum,
		"is_pistol":     rec.IsPistol,
		"winning_team":  rec.WinningTeam,
		"winner_slug":   rec.WinnerSlug,
		"team_a":        rec.TeamA,
		"team_a_slug":   rec.TeamASlug,
		"team_b":        rec.TeamB,
		"team_b_slug":   rec.TeamBSlug,
		"score_a":       rec.ScoreA,
		"score_b":       rec.ScoreB,
		"vod_url":       rec.VodURL,
		"vod_timestamp": rec.VodTimestamp,
		"win_condition": rec.WinCondition,
		"round_type":    rec.RoundType,
	}
	for k, v := range common {
		md[k] = v
	}
	return md
}

func roundRow(id, matchUUID string, rec rounds.Record, summary string, embedding []float32) store.RoundRow {
	return store.RoundRow{
		ExternalID:   id,
		MatchUUID:    matchUUID,
		MatchExtID:   fmt.Sprintf("%d", rec.MatchID),
		RoundID:      rec.RoundID,
		RoundNum:     rec.RoundNum,
		Summary:      summary,
		VodURL:       rec.VodURL,
		VodTimestamp: rec.VodTimestamp,
		WinningTeam:  rec.WinningTeam,
		WinnerSlug:   rec.WinnerSlug,
		TeamA:        rec.TeamA,
		TeamB:        rec.TeamB,
		TeamASlug:    rec.TeamASlug,
		TeamBSlug:    rec.TeamBSlug,
		RoundType:    rec.RoundType,
		IsPistol:     rec.IsPistol,
		ScoreA:       rec.ScoreA,
		ScoreB:       rec.ScoreB,
		MapName:      rec.MapName,
		Embedding:    embedding,
	}
}

// ContentID derives a stable id from the record's full content, so
// re-ingesting the same round overwrites instead of duplicating and any
// change to the round produces a new document.
func ContentID(rec rounds.Record) (string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("canonicalize round record: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Summary renders the one-sentence-per-fact description that gets embedded
// and surfaced in search results.
func Summary(rec rounds.Record) string {
	label := fmt.Sprintf("Round %d", rec.RoundNum)
	if rec.IsPistol {
		label = "Pistol round"
	}
	text := fmt.Sprintf(
		"On the map %s in match %d, The score was %d-%d. %s was won by %s by %s.",
		rec.MapName, rec.MatchID, rec.ScoreA, rec.ScoreB, label, rec.WinningTeam, rec.WinCondition,
	)
	if rec.RoundType != "" && rec.RoundType != "default" {
		text += fmt.Sprintf(" This was a %s round.", rec.RoundType)
	}
	text += fmt.Sprintf(" The VOD for this round starts at approximately %d seconds.", rec.VodTimestamp)
	return text
}
