package models

import "time"

// Event is a named guest list with a user-defined column schema.
// This is the local representation; the remote side knows it by SheetName.
type Event struct {
	ID        string    `json:"id"`            // Locally generated identifier
	Name      string    `json:"name"`          // Display name
	Date      string    `json:"date"`          // Optional free-form date
	Columns   []string  `json:"columns"`       // Ordered column names, unique within the event
	Guests    []Guest   `json:"guests"`        // Ordered guest records
	SheetName *string   `json:"sheetName"`     // Remote sheet name, nil until mirrored
	Synced    bool      `json:"syncedToSheet"` // True while linked to a remote sheet
	CreatedAt time.Time `json:"createdAt"`
}

// Linked reports whether the event has been mirrored to a remote sheet.
func (e Event) Linked() bool {
	return e.Synced && e.SheetName != nil && *e.SheetName != ""
}

// Sheet returns the remote sheet name or an empty string.
func (e Event) Sheet() string {
	if e.SheetName == nil {
		return ""
	}
	return *e.SheetName
}

// HasColumn reports whether name is one of the declared columns.
func (e Event) HasColumn(name string) bool {
	for _, c := range e.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// GuestIndex returns the position of the guest with the given id, or -1.
func (e Event) GuestIndex(id string) int {
	for i := range e.Guests {
		if e.Guests[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	dup := e
	dup.Columns = cloneStrings(e.Columns)
	if e.Guests != nil {
		dup.Guests = make([]Guest, len(e.Guests))
		for i, g := range e.Guests {
			dup.Guests[i] = g.Clone()
		}
	}
	if e.SheetName != nil {
		name := *e.SheetName
		dup.SheetName = &name
	}
	return dup
}

// Snapshot is the persisted form of the whole domain state.
type Snapshot struct {
	Events []Event `json:"events"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s.Events == nil {
		return Snapshot{}
	}
	dup := Snapshot{Events: make([]Event, len(s.Events))}
	for i, e := range s.Events {
		dup.Events[i] = e.Clone()
	}
	return dup
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
