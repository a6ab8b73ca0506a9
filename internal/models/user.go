package models

import "time"

// User is a newsletter subscriber and their delivery preferences.
type User struct {
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Topics       []string  `json:"topics"`
	NewsSources  []string  `json:"newsSources"`
	DeliveryTime string    `json:"deliveryTime"`
	OutputFormat string    `json:"outputFormat"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName falls back to the local part of the address.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i, r := range u.Email {
		if r == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}
