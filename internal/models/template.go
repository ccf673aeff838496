package models

import "time"

// Template is a saved column layout that can seed new events.
type Template struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Columns    []string  `json:"columns"`
	CreatedAt  time.Time `json:"createdAt"`
	UsageCount int       `json:"usageCount"`
}
