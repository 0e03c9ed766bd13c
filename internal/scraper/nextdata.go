package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// nextDataScriptID is the script tag Next.js embeds its page payload in.
const nextDataScriptID = "__NEXT_DATA__"

// ExtractNextData locates the embedded JSON payload in rendered markup and
// parses it. A missing or malformed payload yields an empty map, never an
// error; downstream treats empty as "nothing usable on this page".
func ExtractNextData(html string, logger *zap.Logger) map[string]any {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("Failed to parse markup for embedded payload", zap.Error(err))
		return map[string]any{}
	}

	raw := doc.Find("script#" + nextDataScriptID).First().Text()
	if strings.TrimSpace(raw) == "" {
		logger.Warn("No embedded payload script found in markup")
		return map[string]any{}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logger.Warn("Failed to parse embedded payload JSON", zap.Error(err))
		return map[string]any{}
	}
	return payload
}
