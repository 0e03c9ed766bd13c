package rounds

import (
	"net/url"
	"strconv"
	"strings"
)

// VodStartTime parses a YouTube-style URL for its start offset in seconds.
// Both "t=123" and "t=123s" forms parse to 123; a missing or malformed
// parameter parses to 0.
func VodStartTime(vodURL string) int {
	if vodURL == "" {
		return 0
	}
	u, err := url.Parse(vodURL)
	if err != nil {
		return 0
	}
	t := u.Query().Get("t")
	if t == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.ReplaceAll(t, "s", ""))
	if err != nil {
		return 0
	}
	return seconds
}

// timestampParams are the query-parameter prefixes stripped from a map's base
// video URL before per-round offsets are appended.
var timestampParams = []string{"?t=", "&t=", "?start=", "&start="}

// stripTimestamp removes any pre-existing timestamp parameter from a video
// URL, returning the base URL a per-round offset can be appended to.
func stripTimestamp(vodURL string) string {
	base := vodURL
	for _, p := range timestampParams {
		if idx := strings.Index(base, p); idx >= 0 {
			base = base[:idx]
		}
	}
	return base
}
