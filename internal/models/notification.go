package models

import "time"

// Delivery is the outcome of handing a draft or a one-off mail to a transport.
type Delivery struct {
	MessageID string    `json:"messageId,omitempty"`
	Provider  string    `json:"provider"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	SentAt    time.Time `json:"sentAt"`
}
