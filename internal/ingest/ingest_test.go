package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/ai"
	"github.com/retakeai/retake/internal/metrics"
	"github.com/retakeai/retake/internal/rounds"
	"github.com/retakeai/retake/internal/store"
)

func init() {
	metrics.Init()
}

type fakeLocal struct {
	docs      []store.Document
	upsertErr error
}

func (f *fakeLocal) Upsert(_ context.Context, docs []store.Document) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.docs = append(f.docs, docs...)
	return nil
}

func (f *fakeLocal) Query(context.Context, string, store.Filters, int) ([]store.Result, error) {
	return nil, nil
}

func (f *fakeLocal) Close() error { return nil }

type fakeCloud struct {
	matches   []store.MatchRegistration
	rows      []store.RoundRow
	matchUUID string
	matchErr  error
	roundsErr error
}

func (f *fakeCloud) UpsertEvent(context.Context, store.EventRegistration) (string, error) {
	return "", nil
}

func (f *fakeCloud) UpsertMatch(_ context.Context, m store.MatchRegistration) (string, error) {
	if f.matchErr != nil {
		return "", f.matchErr
	}
	f.matches = append(f.matches, m)
	return f.matchUUID, nil
}

func (f *fakeCloud) UpsertRounds(_ context.Context, rows []store.RoundRow) error {
	if f.roundsErr != nil {
		return f.roundsErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeCloud) SimilaritySearch(context.Context, []float32, store.Filters, float64, int) ([]store.CloudHit, error) {
	return nil, nil
}

func (f *fakeCloud) ListEvents(context.Context) ([]store.EventRecord, error) { return nil, nil }

func (f *fakeCloud) Close() {}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string, ai.EmbedMode) ([]float32, error) {
	return f.vec, f.err
}

func sampleRecord() rounds.Record {
	return rounds.Record{
		MatchID:      1111,
		RoundID:      42,
		MapName:      "Ascent",
		RoundNum:     5,
		WinningTeam:  "Sentinels",
		WinnerSlug:   "sentinels",
		TeamA:        "Sentinels",
		TeamASlug:    "sentinels",
		TeamB:        "Fnatic",
		TeamBSlug:    "fnatic",
		ScoreA:       2,
		ScoreB:       2,
		VodURL:       "https://youtube.com/watch?v=abc&t=300s",
		VodTimestamp: 300,
		WinCondition: "elimination",
		RoundType:    "default",
	}
}

func TestSummary(t *testing.T) {
	rec := sampleRecord()
	assert.Equal(t,
		"On the map Ascent in match 1111, The score was 2-2. Round 5 was won by Sentinels by elimination."+
			" The VOD for this round starts at approximately 300 seconds.",
		Summary(rec))
}

func TestSummaryPistolAndCeremony(t *testing.T) {
	rec := sampleRecord()
	rec.RoundNum = 13
	rec.IsPistol = true
	rec.RoundType = "thrifty"
	got := Summary(rec)
	assert.Contains(t, got, "Pistol round was won by Sentinels")
	assert.Contains(t, got, "This was a thrifty round.")
	assert.NotContains(t, got, "Round 13")
}

func TestContentIDDeterministic(t *testing.T) {
	a, err := ContentID(sampleRecord())
	require.NoError(t, err)
	b, err := ContentID(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := sampleRecord()
	changed.ScoreA = 3
	c, err := ContentID(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestIngestWritesBothTiers(t *testing.T) {
	local := &fakeLocal{}
	cloud := &fakeCloud{matchUUID: "match-uuid-1"}
	svc := New(local, cloud, &fakeEmbedder{vec: []float32{0.1, 0.2}}, zap.NewNop())

	ids, err := svc.Ingest(context.Background(), []rounds.Record{sampleRecord()},
		map[string]any{"event_id": "event-uuid-9"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	require.Len(t, local.docs, 1)
	assert.Equal(t, ids[0], local.docs[0].ID)
	assert.Equal(t, "event-uuid-9", local.docs[0].Metadata["event_id"])
	assert.Equal(t, "sentinels", local.docs[0].Metadata["winner_slug"])

	require.Len(t, cloud.matches, 1)
	assert.Equal(t, "1111", cloud.matches[0].ExternalID)
	assert.Equal(t, "event-uuid-9", cloud.matches[0].EventID)

	require.Len(t, cloud.rows, 1)
	assert.Equal(t, ids[0], cloud.rows[0].ExternalID)
	assert.Equal(t, "match-uuid-1", cloud.rows[0].MatchUUID)
	assert.Equal(t, []float32{0.1, 0.2}, cloud.rows[0].Embedding)
}

func TestIngestEmptyInputNoSideEffects(t *testing.T) {
	local := &fakeLocal{}
	cloud := &fakeCloud{}
	svc := New(local, cloud, ai.Noop{}, zap.NewNop())

	ids, err := svc.Ingest(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, local.docs)
	assert.Empty(t, cloud.matches)
	assert.Empty(t, cloud.rows)
}

func TestIngestLocalFailureDoesNotBlockCloud(t *testing.T) {
	local := &fakeLocal{upsertErr: errors.New("disk full")}
	cloud := &fakeCloud{matchUUID: "m1"}
	svc := New(local, cloud, ai.Noop{}, zap.NewNop())

	ids, err := svc.Ingest(context.Background(), []rounds.Record{sampleRecord()}, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Len(t, cloud.rows, 1)
}

func TestIngestCloudMatchFailureStillIndexesRounds(t *testing.T) {
	local := &fakeLocal{}
	cloud := &fakeCloud{matchErr: errors.New("connection refused")}
	svc := New(local, cloud, ai.Noop{}, zap.NewNop())

	ids, err := svc.Ingest(context.Background(), []rounds.Record{sampleRecord()}, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Len(t, local.docs, 1)
	require.Len(t, cloud.rows, 1)
	assert.Empty(t, cloud.rows[0].MatchUUID)
}

func TestIngestEmbeddingFailureLeavesVectorEmpty(t *testing.T) {
	cloud := &fakeCloud{matchUUID: "m1"}
	svc := New(nil, cloud, &fakeEmbedder{err: errors.New("quota")}, zap.NewNop())

	ids, err := svc.Ingest(context.Background(), []rounds.Record{sampleRecord()}, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	require.Len(t, cloud.rows, 1)
	assert.Nil(t, cloud.rows[0].Embedding)
}

func TestIngestNilTiers(t *testing.T) {
	svc := New(nil, nil, nil, zap.NewNop())
	ids, err := svc.Ingest(context.Background(), []rounds.Record{sampleRecord()}, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}
