package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Record is one normalized news or finance item. Fetchers build it once and
// nothing downstream modifies it.
type Record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Source      string     `json:"source"`
	Publisher   string     `json:"publisher,omitempty"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
}

// DisplaySource is the publisher when known, otherwise the source id.
func (r Record) DisplaySource() string {
	if r.Publisher != "" {
		return r.Publisher
	}
	return r.Source
}

// RecordID derives a stable id from the item's URL, or its title when the URL
// is missing.
func RecordID(source, url, title string) string {
	key := strings.TrimSpace(url)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(title))
	}
	sum := sha256.Sum256([]byte(source + "|" + key))
	return hex.EncodeToString(sum[:])[:16]
}

// SourceResult is what one fetcher contributed to a run.
type SourceResult struct {
	Source  string   `json:"source"`
	Records []Record `json:"records"`
}

// Source identifiers used in records and in source selection.
const (
	SourceNewsAPI    = "newsapi"
	SourceStocks     = "stocks"
	SourceRSS        = "rss"
	SourceHackerNews = "hackernews"
)

// AllSources is the fetch order used when every source is selected.
var AllSources = []string{SourceNewsAPI, SourceRSS, SourceHackerNews, SourceStocks}

// SourceAliases maps legacy subscriber preference values onto source ids.
var SourceAliases = map[string]string{
	"yahoo_finance": SourceStocks,
	"alphavantage":  SourceStocks,
	"hacker_news":   SourceHackerNews,
	"news":          SourceNewsAPI,
}
