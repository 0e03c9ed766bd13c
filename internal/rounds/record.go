// Package rounds converts one scraped series payload into an ordered list of
// round records, reconstructing per-round video offsets and running scores.
package rounds

import "strings"

// Record is one round of one map of one series. Records are created in bulk
// by Normalize, consumed once by the indexer, and never mutated afterwards.
type Record struct {
	MatchID      int64  `json:"match_id"`
	RoundID      int64  `json:"round_id"`
	MapName      string `json:"map_name"`
	RoundNum     int    `json:"round_num"`
	IsPistol     bool   `json:"is_pistol"`
	WinningTeam  string `json:"winning_team"`
	WinnerSlug   string `json:"winner_slug"`
	TeamA        string `json:"team_a"`
	TeamASlug    string `json:"team_a_slug"`
	TeamB        string `json:"team_b"`
	TeamBSlug    string `json:"team_b_slug"`
	ScoreA       int    `json:"score_a"`
	ScoreB       int    `json:"score_b"`
	VodURL       string `json:"vod_url"`
	VodTimestamp int    `json:"vod_timestamp"`
	WinCondition string `json:"win_condition"`
	RoundType    string `json:"round_type"`
}

// Slug derives the canonical filter slug for a team display name. The same
// name always yields the same slug: lowercased, whitespace removed, the
// "esports" sponsor suffix and dots stripped.
func Slug(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "esports", "")
	s = strings.ReplaceAll(s, ".", "")
	return s
}

// IsPistolRound reports whether a round number is a pistol round, the first
// round of either half.
func IsPistolRound(n int) bool {
	return n == 1 || n == 13
}
