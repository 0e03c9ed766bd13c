package rounds_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/rounds"
)

func TestVodStartTime(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want int
	}{
		{"seconds suffix", "https://youtube.com/watch?v=abc&t=123s", 123},
		{"bare seconds", "https://youtube.com/watch?v=abc&t=123", 123},
		{"no param", "https://youtube.com/watch?v=abc", 0},
		{"malformed", "https://youtube.com/watch?v=abc&t=later", 0},
		{"empty url", "", 0},
		{"unparseable url", "://not-a-url?t=5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rounds.VodStartTime(tt.url))
		})
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "paperrex", rounds.Slug("Paper Rex"))
	assert.Equal(t, "g2", rounds.Slug("G2 Esports"))
	assert.Equal(t, "cloud9", rounds.Slug("Cloud9."))
	assert.Equal(t, rounds.Slug("Paper Rex"), rounds.Slug("Paper Rex"), "slugs are deterministic")
}

func TestIsPistolRound(t *testing.T) {
	assert.True(t, rounds.IsPistolRound(1))
	assert.True(t, rounds.IsPistolRound(13))
	assert.False(t, rounds.IsPistolRound(2))
	assert.False(t, rounds.IsPistolRound(12))
	assert.False(t, rounds.IsPistolRound(14))
}

func payloadFromJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

// seriesJSON builds a wrapped two-team payload around the given series body.
func seriesJSON(body string) string {
	return fmt.Sprintf(`{"props":{"pageProps":{"series":%s}}}`, body)
}

const twoRoundSeries = `{
	"team1": {"name": "Paper Rex"},
	"team2": {"name": "DRX"},
	"stats": {"kills": [
		{"roundId": 11, "gameTimeMillis": 95000, "roundTimeMillis": 0},
		{"roundId": 11, "gameTimeMillis": 99000, "roundTimeMillis": 4000},
		{"roundId": 12, "gameTimeMillis": 190000, "roundTimeMillis": 0}
	]},
	"matches": [{
		"id": 501,
		"completed": true,
		"map": {"name": "Ascent"},
		"vodUrl": "https://youtube.com/watch?v=abc&t=100s",
		"rounds": [
			{"id": 11, "number": 1, "winningTeamNumber": 1, "winCondition": "elimination"},
			{"id": 12, "number": 2, "winningTeamNumber": 2, "ceremony": "Flawless", "winCondition": "defuse"}
		]
	}]
}`

func TestNormalizeTwoRounds(t *testing.T) {
	records := rounds.Normalize(payloadFromJSON(t, seriesJSON(twoRoundSeries)), zap.NewNop())
	require.Len(t, records, 2)

	r1, r2 := records[0], records[1]

	// Round 1 anchors exactly at the map's own parsed video start offset.
	assert.Equal(t, 100, r1.VodTimestamp)
	// Round 2 is the anchor plus the scaled game-clock delta: 95s.
	assert.Equal(t, 195, r2.VodTimestamp)
	assert.Equal(t, "https://youtube.com/watch?v=abc&t=195s", r2.VodURL)

	assert.Equal(t, int64(501), r1.MatchID)
	assert.Equal(t, "Ascent", r1.MapName)
	assert.True(t, r1.IsPistol)
	assert.False(t, r2.IsPistol)
	assert.Equal(t, "Paper Rex", r1.WinningTeam)
	assert.Equal(t, "paperrex", r1.WinnerSlug)
	assert.Equal(t, "DRX", r2.WinningTeam)

	assert.Equal(t, "elimination", r1.WinCondition)
	assert.Equal(t, "default", r1.RoundType)
	assert.Equal(t, "flawless", r2.RoundType)
}

func TestNormalizeScoreProgression(t *testing.T) {
	records := rounds.Normalize(payloadFromJSON(t, seriesJSON(twoRoundSeries)), zap.NewNop())
	require.Len(t, records, 2)

	prevA, prevB := 0, 0
	for _, r := range records {
		// Scores are cumulative wins strictly prior to the round.
		assert.Equal(t, r.RoundNum-1, r.ScoreA+r.ScoreB)
		assert.GreaterOrEqual(t, r.ScoreA, prevA)
		assert.GreaterOrEqual(t, r.ScoreB, prevB)
		prevA, prevB = r.ScoreA, r.ScoreB
	}
	assert.Equal(t, 0, records[0].ScoreA)
	assert.Equal(t, 0, records[0].ScoreB)
	assert.Equal(t, 1, records[1].ScoreA)
	assert.Equal(t, 0, records[1].ScoreB)
}

func TestNormalizeEmptyPayload(t *testing.T) {
	logger := zap.NewNop()
	assert.Empty(t, rounds.Normalize(map[string]any{}, logger))
	assert.Empty(t, rounds.Normalize(nil, logger))
	assert.Empty(t, rounds.Normalize(payloadFromJSON(t, `{"props":{"pageProps":{}}}`), logger))
	assert.Empty(t, rounds.Normalize(payloadFromJSON(t, seriesJSON(`{"matches":[]}`)), logger))
}

func TestNormalizeUnwrappedShape(t *testing.T) {
	records := rounds.Normalize(payloadFromJSON(t, twoRoundSeries), zap.NewNop())
	require.Len(t, records, 2)
	assert.Equal(t, "Paper Rex", records[0].TeamA)
}

func TestNormalizeSkipsDegenerateRounds(t *testing.T) {
	body := seriesJSON(`{
		"team1": {"name": "A"}, "team2": {"name": "B"},
		"stats": {"kills": [
			{"roundId": 1, "gameTimeMillis": 5000, "roundTimeMillis": 0},
			{"roundId": 2, "gameTimeMillis": 65000, "roundTimeMillis": 0},
			{"roundId": 5, "gameTimeMillis": 245000, "roundTimeMillis": 245000}
		]},
		"matches": [{
			"id": 1, "completed": true, "map": {"name": "Bind"},
			"rounds": [
				{"id": 1, "number": 1, "winningTeamNumber": 1},
				{"id": 2, "number": 2, "winningTeamNumber": 0},
				{"id": 0, "number": 3, "winningTeamNumber": 1},
				{"id": 4, "number": 0, "winningTeamNumber": 2},
				{"id": 5, "number": 5, "winningTeamNumber": 2},
				{"id": 6, "number": 6, "winningTeamNumber": 1}
			]
		}]
	}`)
	records := rounds.Normalize(payloadFromJSON(t, body), zap.NewNop())

	// Only round 1 survives: round 2 has no winner, round 3 no id, round 4
	// no number, round 5 reconstructs a start of exactly 0, round 6 has no
	// event data at all.
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].RoundNum)
}

func TestNormalizeWithoutVodURL(t *testing.T) {
	body := seriesJSON(`{
		"team1": {"name": "A"}, "team2": {"name": "B"},
		"stats": {"kills": [{"roundId": 1, "gameTimeMillis": 5000, "roundTimeMillis": 0}]},
		"matches": [{
			"id": 1, "completed": true,
			"rounds": [{"id": 1, "number": 1, "winningTeamNumber": 1}]
		}]
	}`)
	records := rounds.Normalize(payloadFromJSON(t, body), zap.NewNop())
	require.Len(t, records, 1)
	assert.Empty(t, records[0].VodURL)
	assert.Equal(t, 0, records[0].VodTimestamp)
	assert.Equal(t, "Unknown Map", records[0].MapName)
}

func TestNormalizeSkipsIncompleteMatches(t *testing.T) {
	body := seriesJSON(`{
		"team1": {"name": "A"}, "team2": {"name": "B"},
		"stats": {"kills": [{"roundId": 1, "gameTimeMillis": 5000, "roundTimeMillis": 0}]},
		"matches": [{
			"id": 1, "completed": false,
			"rounds": [{"id": 1, "number": 1, "winningTeamNumber": 1}]
		}]
	}`)
	assert.Empty(t, rounds.Normalize(payloadFromJSON(t, body), zap.NewNop()))
}
