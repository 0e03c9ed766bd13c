// Package store defines the persistence-tier contracts shared by the
// ingestion and search pipelines. Two tiers exist: a local embedded
// document store (primary) and a cloud relational/vector store (secondary).
// A nil tier means "not configured"; callers degrade rather than fail.
package store

import "context"

// Filters are the exact-match predicates a search can push down.
type Filters struct {
	TeamSlug  string
	MapName   string
	RoundType string
	// PistolOnly forces an is_pistol = true predicate.
	PistolOnly bool
}

// Result is the unified hit shape both tiers are mapped into. Distance is
// ascending-better; cloud similarities are converted by the retriever.
type Result struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// Document is the unit upserted into the local tier.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Local is the primary embedded store: content-addressed documents with
// text-similarity queries.
type Local interface {
	Upsert(ctx context.Context, docs []Document) error
	Query(ctx context.Context, text string, filters Filters, limit int) ([]Result, error)
	Close() error
}

// EventRegistration is the coarse parent record for a crawled tournament.
type EventRegistration struct {
	ExternalID string
	Name       string
	URL        string
}

// MatchRegistration is the parent record rounds reference in the cloud tier.
type MatchRegistration struct {
	ExternalID string
	EventID    string
	TeamA      string
	TeamB      string
	TeamASlug  string
	TeamBSlug  string
	MapName    string
}

// RoundRow is the full typed row written to the cloud tier, keyed by the
// content-hash id so re-ingestion overwrites instead of duplicating.
type RoundRow struct {
	ExternalID   string
	MatchUUID    string
	MatchExtID   string
	RoundID      int64
	RoundNum     int
	Summary      string
	VodURL       string
	VodTimestamp int
	WinningTeam  string
	WinnerSlug   string
	TeamA        string
	TeamB        string
	TeamASlug    string
	TeamBSlug    string
	RoundType    string
	IsPistol     bool
	ScoreA       int
	ScoreB       int
	MapName      string
	Embedding    []float32
}

// CloudHit is a similarity-search hit from the cloud tier. Similarity is
// cosine similarity in [0, 1], descending-better.
type CloudHit struct {
	ID         string
	Summary    string
	Metadata   map[string]any
	Similarity float64
}

// Cloud is the secondary relational/vector store.
type Cloud interface {
	UpsertEvent(ctx context.Context, event EventRegistration) (string, error)
	UpsertMatch(ctx context.Context, match MatchRegistration) (string, error)
	UpsertRounds(ctx context.Context, rows []RoundRow) error
	SimilaritySearch(ctx context.Context, vector []float32, filters Filters, threshold float64, limit int) ([]CloudHit, error)
	ListEvents(ctx context.Context) ([]EventRecord, error)
	Close()
}

// EventRecord is a stored event row returned by ListEvents.
type EventRecord struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	CreatedAt  string `json:"created_at"`
}
