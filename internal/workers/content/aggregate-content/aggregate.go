package aggregatecontent

import (
	"strings"

	"newsletter-agent/internal/common/topics"
	"newsletter-agent/internal/models"
)

// Aggregate merges fetcher results in order, dropping repeated stories and,
// when topics are given, stories unrelated to them. A story repeats an earlier
// one when its normalized title or its URL was already seen. maxRecords <= 0
// means no cap.
func Aggregate(results []models.SourceResult, requested []string, keywordMap map[string][]string, maxRecords int) *Output {
	out := &Output{Records: []models.Record{}, Sources: []string{}}
	requested = topics.Normalize(requested)

	seenTitles := make(map[string]struct{})
	seenURLs := make(map[string]struct{})
	contributed := make(map[string]struct{})

	for _, result := range results {
		for _, record := range result.Records {
			out.TotalFetched++

			title := normalizeTitle(record.Title)
			link := strings.TrimSpace(record.URL)
			if _, dup := seenTitles[title]; dup && title != "" {
				out.Duplicates++
				continue
			}
			if _, dup := seenURLs[link]; dup && link != "" {
				out.Duplicates++
				continue
			}
			seenTitles[title] = struct{}{}
			seenURLs[link] = struct{}{}

			if len(requested) > 0 && topics.Score(record.Title+" "+record.Summary, record.Topics, requested, keywordMap) == 0 {
				out.Irrelevant++
				continue
			}
			if maxRecords > 0 && len(out.Records) >= maxRecords {
				continue
			}

			out.Records = append(out.Records, record)
			source := record.Source
			if source == "" {
				source = result.Source
			}
			if _, ok := contributed[source]; !ok {
				contributed[source] = struct{}{}
				out.Sources = append(out.Sources, source)
			}
		}
	}
	return out
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
