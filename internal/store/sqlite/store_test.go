package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func doc(id, text string, meta map[string]any) store.Document {
	return store.Document{ID: id, Text: text, Metadata: meta}
}

func TestUpsertAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []store.Document{
		doc("a", "Pistol round was won by Paper Rex on Ascent",
			map[string]any{"winner_slug": "paperrex", "team_a_slug": "paperrex", "team_b_slug": "drx", "map_name": "Ascent", "round_id": float64(11)}),
		doc("b", "Round 5 was won by Fnatic on Bind",
			map[string]any{"winner_slug": "fnatic", "team_a_slug": "fnatic", "team_b_slug": "loud", "map_name": "Bind", "round_id": float64(21)}),
	})
	require.NoError(t, err)

	results, err := s.Query(ctx, "paper rex pistol", store.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// The document sharing the query tokens ranks first.
	assert.Equal(t, "a", results[0].ID)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := doc("a", "original text", map[string]any{"map_name": "Ascent"})
	require.NoError(t, s.Upsert(ctx, []store.Document{d}))

	d.Text = "replaced text"
	require.NoError(t, s.Upsert(ctx, []store.Document{d}))

	results, err := s.Query(ctx, "replaced text", store.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "same id overwrites, never duplicates")
	assert.Equal(t, "replaced text", results[0].Document)
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []store.Document{
		doc("a", "round on ascent", map[string]any{"winner_slug": "paperrex", "team_a_slug": "paperrex", "team_b_slug": "drx", "map_name": "Ascent"}),
		doc("b", "round on bind", map[string]any{"winner_slug": "drx", "team_a_slug": "paperrex", "team_b_slug": "drx", "map_name": "Bind"}),
		doc("c", "round on ascent", map[string]any{"winner_slug": "fnatic", "team_a_slug": "fnatic", "team_b_slug": "loud", "map_name": "Ascent"}),
	}))

	t.Run("team filter matches any slug field", func(t *testing.T) {
		results, err := s.Query(ctx, "round", store.Filters{TeamSlug: "drx"}, 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
	})

	t.Run("map filter is exact", func(t *testing.T) {
		results, err := s.Query(ctx, "round", store.Filters{MapName: "Bind"}, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].ID)
	})

	t.Run("filters combine with AND", func(t *testing.T) {
		results, err := s.Query(ctx, "round", store.Filters{TeamSlug: "paperrex", MapName: "Ascent"}, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].ID)
	})
}

func TestQueryLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := make([]store.Document, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		docs = append(docs, doc(id, "round "+id, map[string]any{"map_name": "Ascent"}))
	}
	require.NoError(t, s.Upsert(ctx, docs))

	results, err := s.Query(ctx, "round", store.Filters{}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestOverlapDistance(t *testing.T) {
	full := embedText("paper rex")
	docVec := embedText("pistol round won by paper rex on ascent")

	assert.InDelta(t, 0.0, overlapDistance(full, docVec), 1e-9, "fully covered query")
	assert.InDelta(t, 1.0, overlapDistance(embedText("sentinels"), docVec), 1e-9, "no overlap")
	assert.InDelta(t, 0.5, overlapDistance(embedText("paper sentinels"), docVec), 1e-9, "half covered")
	assert.InDelta(t, 1.0, overlapDistance(embedText(""), docVec), 1e-9, "empty query")
}

func TestEmbedTextDeterministic(t *testing.T) {
	assert.Equal(t, embedText("Paper Rex on Ascent"), embedText("paper rex on ascent"))
}
