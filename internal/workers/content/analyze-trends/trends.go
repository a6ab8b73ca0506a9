package analyzetrends

import (
	"sort"
	"strings"

	"newsletter-agent/internal/models"
)

// DefaultLimit caps the ranked topic and keyword lists.
const DefaultLimit = 5

// Extract counts, for each vocabulary term, the records whose title contains it
// (case-insensitive). Terms nobody mentions are left out. Counts are sorted
// descending with ties kept in vocabulary order.
func Extract(records []models.Record, vocabulary, keywords []string, limit int) models.TrendSummary {
	return models.TrendSummary{
		Topics:      rank(records, vocabulary, limit),
		Keywords:    rank(records, keywords, limit),
		RecordCount: len(records),
	}
}

func rank(records []models.Record, vocabulary []string, limit int) []models.TopicCount {
	titles := make([]string, len(records))
	for i, r := range records {
		titles[i] = strings.ToLower(r.Title)
	}

	seen := make(map[string]struct{}, len(vocabulary))
	counts := make([]models.TopicCount, 0, len(vocabulary))
	for _, term := range vocabulary {
		needle := strings.ToLower(strings.TrimSpace(term))
		if needle == "" {
			continue
		}
		if _, dup := seen[needle]; dup {
			continue
		}
		seen[needle] = struct{}{}

		n := 0
		for _, title := range titles {
			if strings.Contains(title, needle) {
				n++
			}
		}
		if n > 0 {
			counts = append(counts, models.TopicCount{Topic: strings.TrimSpace(term), Count: n})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
