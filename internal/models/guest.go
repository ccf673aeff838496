package models

import "fmt"

// Status is the attendance answer of a guest.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusConfirmed, StatusDeclined, StatusPending}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDeclined:
		return true
	}
	return false
}

// ParseStatus accepts the canonical values plus the short yes/no forms used
// by older spreadsheets.
func ParseStatus(value string) (Status, error) {
	switch value {
	case "confirmed", "yes", "sim":
		return StatusConfirmed, nil
	case "declined", "no", "nao", "não":
		return StatusDeclined, nil
	case "pending", "":
		return StatusPending, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Guest is one attendee record of an event.
type Guest struct {
	ID      string            `json:"id"`
	Status  Status            `json:"status"`
	Fields  map[string]string `json:"fields"` // One entry per declared event column
	Name    string            `json:"name,omitempty"`
	Phone   string            `json:"phone,omitempty"`
	Email   string            `json:"email,omitempty"`
	Synced  bool              `json:"synced"`            // Remote side holds this guest under ID
	OnSheet bool              `json:"onSheet,omitempty"` // Pulled row without an id; exists remotely, never pushed
}

// Pending reports whether the guest still has to be sent to the sheet.
func (g Guest) Pending() bool {
	return !g.Synced && !g.OnSheet
}

// DisplayName returns the fixed name, or the first non-empty field value
// following the event column order.
func (g Guest) DisplayName(columns []string) string {
	if g.Name != "" {
		return g.Name
	}
	for _, c := range columns {
		if v := g.Fields[c]; v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy of the guest.
func (g Guest) Clone() Guest {
	dup := g
	if g.Fields != nil {
		dup.Fields = make(map[string]string, len(g.Fields))
		for k, v := range g.Fields {
			dup.Fields[k] = v
		}
	}
	return dup
}

// Payload flattens the guest into the row shape the spreadsheet backend
// expects: id, status, one key per column and the fixed fields when set.
func (g Guest) Payload() map[string]any {
	row := map[string]any{
		"id":     g.ID,
		"status": string(g.Status),
	}
	for k, v := range g.Fields {
		row[k] = v
	}
	if g.Name != "" {
		row["name"] = g.Name
	}
	if g.Phone != "" {
		row["phone"] = g.Phone
	}
	if g.Email != "" {
		row["email"] = g.Email
	}
	return row
}
