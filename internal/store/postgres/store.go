// Package postgres implements the cloud store tier on Postgres + pgvector.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store implements store.Cloud against the events / matches /
// round_embeddings tables. Expected schema:
//
//	CREATE TABLE events (
//		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//		external_id TEXT UNIQUE NOT NULL,
//		name TEXT, url TEXT,
//		created_at TIMESTAMPTZ DEFAULT NOW()
//	);
//	CREATE TABLE matches (
//		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//		external_id TEXT UNIQUE NOT NULL,
//		event_id UUID REFERENCES events(id),
//		team_a TEXT, team_b TEXT, team_a_slug TEXT, team_b_slug TEXT,
//		map_name TEXT
//	);
//	CREATE TABLE round_embeddings (
//		external_id TEXT PRIMARY KEY,
//		match_id UUID REFERENCES matches(id),
//		match_id_ext TEXT, round_id BIGINT, round_num INT,
//		summary TEXT, vod_url TEXT, vod_timestamp INT,
//		winning_team TEXT, winner_slug TEXT,
//		team_a TEXT, team_b TEXT, team_a_slug TEXT, team_b_slug TEXT,
//		round_type TEXT, is_pistol BOOLEAN,
//		score_a INT, score_b INT, map_name TEXT,
//		embedding VECTOR(768)
//	);
type Store struct {
	pool   pool
	logger *zap.Logger
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("cloud.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, logger: logger}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(p pool, logger *zap.Logger) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertEvent registers an event by external id and returns the row uuid.
func (s *Store) UpsertEvent(ctx context.Context, event store.EventRegistration) (string, error) {
	if event.ExternalID == "" {
		return "", fmt.Errorf("event external id is required")
	}
	query := `
INSERT INTO events (external_id, name, url)
VALUES ($1, $2, $3)
ON CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url
RETURNING id`
	var id string
	if err := s.pool.QueryRow(ctx, query, event.ExternalID, event.Name, event.URL).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert event: %w", err)
	}
	return id, nil
}

// UpsertMatch registers a match by external id and returns the row uuid.
// EventID may be empty when the match was ingested outside a tournament crawl.
func (s *Store) UpsertMatch(ctx context.Context, match store.MatchRegistration) (string, error) {
	if match.ExternalID == "" {
		return "", fmt.Errorf("match external id is required")
	}
	query := `
INSERT INTO matches (external_id, event_id, team_a, team_b, team_a_slug, team_b_slug, map_name)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7)
ON CONFLICT (external_id) DO UPDATE SET
	event_id = COALESCE(NULLIF($2, '')::uuid, matches.event_id),
	team_a = EXCLUDED.team_a,
	team_b = EXCLUDED.team_b,
	team_a_slug = EXCLUDED.team_a_slug,
	team_b_slug = EXCLUDED.team_b_slug,
	map_name = EXCLUDED.map_name
RETURNING id`
	var id string
	err := s.pool.QueryRow(ctx, query,
		match.ExternalID,
		match.EventID,
		match.TeamA,
		match.TeamB,
		match.TeamASlug,
		match.TeamBSlug,
		match.MapName,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert match: %w", err)
	}
	return id, nil
}

// UpsertRounds writes the full round rows, keyed by content-hash id.
func (s *Store) UpsertRounds(ctx context.Context, rows []store.RoundRow) error {
	query := `
INSERT INTO round_embeddings (
	external_id, match_id, match_id_ext, round_id, round_num,
	summary, vod_url, vod_timestamp,
	winning_team, winner_slug, team_a, team_b, team_a_slug, team_b_slug,
	round_type, is_pistol, score_a, score_b, map_name, embedding
) VALUES (
	$1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10,
	$11, $12, $13, $14, $15, $16, $17, $18, $19, $20::vector
)
ON CONFLICT (external_id) DO UPDATE SET
	match_id = EXCLUDED.match_id,
	summary = EXCLUDED.summary,
	vod_url = EXCLUDED.vod_url,
	vod_timestamp = EXCLUDED.vod_timestamp,
	embedding = EXCLUDED.embedding`
	for _, row := range rows {
		if row.ExternalID == "" {
			return fmt.Errorf("round row id is required")
		}
		args := []any{
			row.ExternalID,
			row.MatchUUID,
			row.MatchExtID,
			row.RoundID,
			row.RoundNum,
			row.Summary,
			row.VodURL,
			row.VodTimestamp,
			row.WinningTeam,
			row.WinnerSlug,
			row.TeamA,
			row.TeamB,
			row.TeamASlug,
			row.TeamBSlug,
			row.RoundType,
			row.IsPistol,
			row.ScoreA,
			row.ScoreB,
			row.MapName,
			vectorLiteral(row.Embedding),
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert round %s: %w", row.ExternalID, err)
		}
	}
	return nil
}

// SimilaritySearch runs a cosine-similarity query with the given floor and
// candidate cap, pushing the filters down as exact-match predicates.
func (s *Store) SimilaritySearch(
	ctx context.Context,
	vector []float32,
	filters store.Filters,
	threshold float64,
	limit int,
) ([]store.CloudHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	var sb strings.Builder
	sb.WriteString(`
SELECT external_id, summary,
	team_a, team_b, score_a, score_b, map_name, round_num, round_id,
	winning_team, round_type, is_pistol, vod_url, vod_timestamp,
	1 - (embedding <=> $1::vector) AS similarity
FROM round_embeddings
WHERE embedding IS NOT NULL
	AND 1 - (embedding <=> $1::vector) >= $2`)

	args := []any{vectorLiteral(vector), threshold}
	next := 3
	if filters.TeamSlug != "" {
		placeholder := "$" + strconv.Itoa(next)
		sb.WriteString("\n\tAND (winner_slug = " + placeholder +
			" OR team_a_slug = " + placeholder +
			" OR team_b_slug = " + placeholder + ")")
		args = append(args, filters.TeamSlug)
		next++
	}
	if filters.MapName != "" {
		sb.WriteString("\n\tAND map_name = $" + strconv.Itoa(next))
		args = append(args, filters.MapName)
		next++
	}
	if filters.RoundType != "" {
		sb.WriteString("\n\tAND round_type = $" + strconv.Itoa(next))
		args = append(args, filters.RoundType)
		next++
	}
	if filters.PistolOnly {
		sb.WriteString("\n\tAND is_pistol = TRUE")
	}
	sb.WriteString("\nORDER BY embedding <=> $1::vector\nLIMIT $" + strconv.Itoa(next))
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var hits []store.CloudHit
	for rows.Next() {
		var (
			hit          store.CloudHit
			teamA, teamB string
			scoreA       int
			scoreB       int
			mapName      string
			roundNum     int
			roundID      int64
			winningTeam  string
			roundType    string
			isPistol     bool
			vodURL       string
			vodTimestamp int
		)
		err := rows.Scan(
			&hit.ID, &hit.Summary,
			&teamA, &teamB, &scoreA, &scoreB, &mapName, &roundNum, &roundID,
			&winningTeam, &roundType, &isPistol, &vodURL, &vodTimestamp,
			&hit.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan similarity hit: %w", err)
		}
		hit.Metadata = map[string]any{
			"team_a":        teamA,
			"team_b":        teamB,
			"score_a":       scoreA,
			"score_b":       scoreB,
			"map_name":      mapName,
			"round_num":     roundNum,
			"round_id":      roundID,
			"winning_team":  winningTeam,
			"round_type":    roundType,
			"is_pistol":     isPistol,
			"vod_url":       vodURL,
			"vod_timestamp": vodTimestamp,
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity rows: %w", err)
	}
	return hits, nil
}

// ListEvents returns all registered events, newest first.
func (s *Store) ListEvents(ctx context.Context) ([]store.EventRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, external_id, COALESCE(name, ''), COALESCE(url, ''), created_at::text
FROM events
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []store.EventRecord
	for rows.Next() {
		var e store.EventRecord
		if err := rows.Scan(&e.ID, &e.ExternalID, &e.Name, &e.URL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event rows: %w", err)
	}
	return events, nil
}

// vectorLiteral renders a float slice in pgvector's input format. An empty
// vector becomes NULL so absent embeddings are tolerated.
func vectorLiteral(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
