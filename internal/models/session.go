package models

import "time"

// Session is the authenticated user plus the remote spreadsheet linkage.
type Session struct {
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	SpreadsheetID *string   `json:"spreadsheetId"` // nil means no remote linkage yet
	LoginAt       time.Time `json:"loginAt"`
}

// Spreadsheet returns the linked spreadsheet id or an empty string.
func (s Session) Spreadsheet() string {
	if s.SpreadsheetID == nil {
		return ""
	}
	return *s.SpreadsheetID
}

// Linked reports whether remote sync is possible for this session.
func (s Session) Linked() bool {
	return s.Spreadsheet() != ""
}
