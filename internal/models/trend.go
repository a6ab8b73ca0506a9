package models

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// TrendSummary ranks vocabulary topics and keywords by the number of record
// titles mentioning them.
type TrendSummary struct {
	Topics      []TopicCount `json:"topics"`
	Keywords    []TopicCount `json:"keywords,omitempty"`
	RecordCount int          `json:"recordCount"`
}
