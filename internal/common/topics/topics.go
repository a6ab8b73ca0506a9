// Package topics maps subscriber topics onto the keywords used for upstream
// queries and relevance scoring.
package topics

import "strings"

// MaxScore caps Score.
const MaxScore = 5.0

// Normalize lowercases and trims topics, dropping blanks and repeats while
// keeping the first-seen order.
func Normalize(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Keywords returns the keyword expansion of topics in topic order, without
// duplicates. Topics with no entry in keywordMap expand to themselves.
func Keywords(topics []string, keywordMap map[string][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok || k == "" {
			return
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}

	for _, topic := range topics {
		words, ok := keywordMap[strings.ToLower(topic)]
		if !ok {
			add(topic)
			continue
		}
		for _, w := range words {
			add(w)
		}
	}
	return out
}

// Match returns the topics mentioned in text, either by name or through one of
// their keywords. Matching is case-insensitive substring matching.
func Match(text string, topics []string, keywordMap map[string][]string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, topic := range topics {
		if mentions(lower, topic, keywordMap) {
			out = append(out, topic)
		}
	}
	return out
}

func mentions(lower, topic string, keywordMap map[string][]string) bool {
	if topic == "" {
		return false
	}
	if strings.Contains(lower, strings.ToLower(topic)) {
		return true
	}
	for _, kw := range keywordMap[strings.ToLower(topic)] {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Score rates text against topics: 1 per topic named, 0.5 per keyword of a
// requested topic, capped at MaxScore. tags are topics the fetcher already
// assigned and count as named.
func Score(text string, tags, topics []string, keywordMap map[string][]string) float64 {
	lower := strings.ToLower(text)
	score := 0.0

	for _, topic := range topics {
		t := strings.ToLower(topic)
		if t == "" {
			continue
		}
		if strings.Contains(lower, t) || containsFold(tags, t) {
			score++
		}
		for _, kw := range keywordMap[t] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score += 0.5
			}
		}
	}

	if score > MaxScore {
		return MaxScore
	}
	return score
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}
