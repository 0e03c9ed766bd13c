package rounds

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// The scraped payload is deeply nested and loosely typed; every field here is
// optional and decodes to its zero value when absent. Zero values double as
// the "missing" marker, matching the source data's own conventions (ids and
// round numbers are never legitimately zero).
type seriesInfo struct {
	Team1   teamInfo    `json:"team1"`
	Team2   teamInfo    `json:"team2"`
	Stats   seriesStats `json:"stats"`
	Matches []matchInfo `json:"matches"`
}

type teamInfo struct {
	Name string `json:"name"`
}

type seriesStats struct {
	Kills []killEvent `json:"kills"`
}

type killEvent struct {
	RoundID         int64 `json:"roundId"`
	GameTimeMillis  int64 `json:"gameTimeMillis"`
	RoundTimeMillis int64 `json:"roundTimeMillis"`
}

type matchInfo struct {
	ID        int64       `json:"id"`
	Completed bool        `json:"completed"`
	Map       mapInfo     `json:"map"`
	VodURL    string      `json:"vodUrl"`
	Rounds    []roundInfo `json:"rounds"`
}

type mapInfo struct {
	Name string `json:"name"`
}

type roundInfo struct {
	ID                int64  `json:"id"`
	Number            int    `json:"number"`
	WinningTeamNumber int    `json:"winningTeamNumber"`
	Ceremony          string `json:"ceremony"`
	WinCondition      string `json:"winCondition"`
}

type wrappedPayload struct {
	Props struct {
		PageProps struct {
			Series *seriesInfo `json:"series"`
		} `json:"pageProps"`
	} `json:"props"`
}

// Normalize converts one raw page payload into an ordered list of Records.
// It never fails the caller: anything unusable yields an empty list, and the
// caller must treat empty as "nothing usable", not "nothing happened".
func Normalize(payload map[string]any, logger *zap.Logger) []Record {
	series, ok := locateSeries(payload, logger)
	if !ok {
		return nil
	}

	team1Name := series.Team1.Name
	if team1Name == "" {
		team1Name = "Team 1"
	}
	team2Name := series.Team2.Name
	if team2Name == "" {
		team2Name = "Team 2"
	}

	roundStarts := roundStartTimes(series.Stats.Kills)

	var records []Record
	for _, match := range series.Matches {
		records = append(records, normalizeMatch(match, team1Name, team2Name, roundStarts)...)
	}
	return records
}

// locateSeries supports both the wrapped page-props shape and a payload that
// is already the series object itself.
func locateSeries(payload map[string]any, logger *zap.Logger) (seriesInfo, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to re-encode payload", zap.Error(err))
		return seriesInfo{}, false
	}

	if _, wrapped := payload["props"]; wrapped {
		var outer wrappedPayload
		if err := json.Unmarshal(raw, &outer); err != nil || outer.Props.PageProps.Series == nil {
			logger.Warn("No series object found in wrapped payload")
			return seriesInfo{}, false
		}
		return *outer.Props.PageProps.Series, true
	}

	if len(payload) == 0 {
		logger.Warn("No series object found in payload")
		return seriesInfo{}, false
	}
	var series seriesInfo
	if err := json.Unmarshal(raw, &series); err != nil {
		logger.Warn("Payload does not decode as a series object", zap.Error(err))
		return seriesInfo{}, false
	}
	return series, true
}

// roundStartTimes maps round id to the round's start offset on the match
// clock, derived by scanning in-match events once. The first event seen for a
// round wins: start = event time in match - event time in round.
func roundStartTimes(kills []killEvent) map[int64]int64 {
	starts := make(map[int64]int64, len(kills))
	for _, kill := range kills {
		if _, seen := starts[kill.RoundID]; !seen {
			starts[kill.RoundID] = kill.GameTimeMillis - kill.RoundTimeMillis
		}
	}
	return starts
}

func normalizeMatch(match matchInfo, team1Name, team2Name string, roundStarts map[int64]int64) []Record {
	if !match.Completed {
		return nil
	}

	mapName := match.Map.Name
	if mapName == "" {
		mapName = "Unknown Map"
	}

	vodStartSec := VodStartTime(match.VodURL)
	baseVodURL := stripTimestamp(match.VodURL)

	sorted := append([]roundInfo(nil), match.Rounds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	if len(sorted) == 0 {
		return nil
	}

	// Round 1's reconstructed start anchors the zero point; every later
	// round's playback offset is its game-clock delta from that anchor.
	firstRoundStart := roundStarts[sorted[0].ID]

	var (
		records []Record
		scoreA  int
		scoreB  int
	)
	for _, round := range sorted {
		if round.Number == 0 || round.WinningTeamNumber == 0 || round.ID == 0 {
			continue
		}
		start := roundStarts[round.ID]
		// A start of exactly 0 means no event data for the round. This
		// conflates "no events" with "round began at match-clock zero";
		// the skip is kept for parity with the data source.
		if start == 0 {
			continue
		}

		offsetMs := start - firstRoundStart
		timestampSec := vodStartSec + int(offsetMs/1000)

		roundVodURL := ""
		if baseVodURL != "" {
			roundVodURL = fmt.Sprintf("%s&t=%ds", baseVodURL, timestampSec)
		}

		winnerName := team1Name
		if round.WinningTeamNumber != 1 {
			winnerName = team2Name
		}

		ceremony := "default"
		if round.Ceremony != "" {
			ceremony = strings.ToLower(round.Ceremony)
		}
		winCondition := round.WinCondition
		if winCondition == "" {
			winCondition = "unknown"
		}

		records = append(records, Record{
			MatchID:      match.ID,
			RoundID:      round.ID,
			MapName:      mapName,
			RoundNum:     round.Number,
			IsPistol:     IsPistolRound(round.Number),
			WinningTeam:  winnerName,
			WinnerSlug:   Slug(winnerName),
			TeamA:        team1Name,
			TeamASlug:    Slug(team1Name),
			TeamB:        team2Name,
			TeamBSlug:    Slug(team2Name),
			// Scores are cumulative wins strictly prior to this round.
			ScoreA:       scoreA,
			ScoreB:       scoreB,
			VodURL:       roundVodURL,
			VodTimestamp: timestampSec,
			WinCondition: winCondition,
			RoundType:    ceremony,
		})

		if round.WinningTeamNumber == 1 {
			scoreA++
		} else {
			scoreB++
		}
	}
	return records
}
