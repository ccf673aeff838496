package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Actions understood by the spreadsheet backend.
const (
	ActionValidateUser           = "validateUser"
	ActionGetOrCreateSpreadsheet = "getOrCreateSpreadsheet"
	ActionCreateEvent            = "createEvent"
	ActionGetEvents              = "getEvents"
	ActionUpdateEvent            = "updateEvent"
	ActionDeleteEvent            = "deleteEvent"
	ActionAddGuest               = "addGuest"
	ActionUpdateGuest            = "updateGuest"
	ActionDeleteGuest            = "deleteGuest"
	ActionGetGuests              = "getGuests"
	ActionPing                   = "ping"
)

// Only these are retried; a repeated addGuest would append a second row.
var readOnlyActions = map[string]bool{
	ActionValidateUser:           true,
	ActionGetOrCreateSpreadsheet: true,
	ActionGetEvents:              true,
	ActionGetGuests:              true,
	ActionPing:                   true,
}

// API exposes the backend actions with typed payloads and results.
type API struct {
	sender Sender
}

// NewAPI wraps a Sender.
func NewAPI(sender Sender) *API {
	return &API{sender: sender}
}

// User is the validateUser answer.
type User struct {
	Name          string `json:"name"`
	SpreadsheetID string `json:"spreadsheetId"`
}

// ValidateUser checks that email is authorized on the backend.
func (a *API) ValidateUser(ctx context.Context, email string) (User, error) {
	var user User
	err := a.call(ctx, ActionValidateUser, map[string]any{"email": email}, &user)
	return user, err
}

// GetOrCreateSpreadsheet returns the spreadsheet id owned by email,
// creating it on first use.
func (a *API) GetOrCreateSpreadsheet(ctx context.Context, email string) (string, error) {
	var out struct {
		SpreadsheetID string `json:"spreadsheetId"`
	}
	if err := a.call(ctx, ActionGetOrCreateSpreadsheet, map[string]any{"email": email}, &out); err != nil {
		return "", err
	}
	return out.SpreadsheetID, nil
}

// EventSpec describes an event to create remotely.
type EventSpec struct {
	Name        string
	Date        string
	Description string
	Columns     []string
}

// CreatedEvent is the createEvent answer.
type CreatedEvent struct {
	SheetName string `json:"sheetName"`
	EventID   string `json:"eventId"`
}

// CreateEvent adds a sheet for the event.
func (a *API) CreateEvent(ctx context.Context, spreadsheetID string, spec EventSpec) (CreatedEvent, error) {
	columns := spec.Columns
	if columns == nil {
		columns = []string{}
	}
	var out CreatedEvent
	err := a.call(ctx, ActionCreateEvent, map[string]any{
		"spreadsheetId": spreadsheetID,
		"name":          spec.Name,
		"date":          spec.Date,
		"description":   spec.Description,
		"columns":       columns,
	}, &out)
	return out, err
}

// RemoteEvent is one entry of the getEvents answer.
type RemoteEvent struct {
	SheetName  string   `json:"sheetName"`
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	Columns    []string `json:"columns"`
	GuestCount int      `json:"guestCount"`
}

// GetEvents lists the event sheets of a spreadsheet.
func (a *API) GetEvents(ctx context.Context, spreadsheetID string) ([]RemoteEvent, error) {
	var out struct {
		Events []RemoteEvent `json:"events"`
	}
	if err := a.call(ctx, ActionGetEvents, map[string]any{"spreadsheetId": spreadsheetID}, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// UpdateEvent renames the sheet and refreshes its header row. It returns the
// sheet name reported by the backend, or "" when none was reported.
func (a *API) UpdateEvent(ctx context.Context, spreadsheetID, sheetName, newName string, columns []string) (string, error) {
	payload := map[string]any{
		"spreadsheetId": spreadsheetID,
		"eventId":       sheetName,
		"newName":       newName,
	}
	if columns != nil {
		payload["columns"] = columns
	}
	var out struct {
		EventID   string `json:"eventId"`
		SheetName string `json:"sheetName"`
	}
	if err := a.call(ctx, ActionUpdateEvent, payload, &out); err != nil {
		return "", err
	}
	if out.SheetName != "" {
		return out.SheetName, nil
	}
	return out.EventID, nil
}

// DeleteEvent removes the event sheet.
func (a *API) DeleteEvent(ctx context.Context, spreadsheetID, sheetName string) error {
	return a.call(ctx, ActionDeleteEvent, map[string]any{
		"spreadsheetId": spreadsheetID,
		"eventId":       sheetName,
	}, nil)
}

// AddGuest appends a guest row and returns the id the backend assigned,
// or "" when it kept the submitted one.
func (a *API) AddGuest(ctx context.Context, spreadsheetID, sheetName string, guest map[string]any) (string, error) {
	var out struct {
		GuestID json.RawMessage `json:"guestId"`
	}
	err := a.call(ctx, ActionAddGuest, map[string]any{
		"spreadsheetId": spreadsheetID,
		"eventId":       sheetName,
		"guest":         guest,
	}, &out)
	if err != nil {
		return "", err
	}
	return scalarString(out.GuestID), nil
}

// UpdateGuest applies a partial update to a guest row.
func (a *API) UpdateGuest(ctx context.Context, spreadsheetID, sheetName, guestID string, updates map[string]any) error {
	return a.call(ctx, ActionUpdateGuest, map[string]any{
		"spreadsheetId": spreadsheetID,
		"eventId":       sheetName,
		"guestId":       guestID,
		"updates":       updates,
	}, nil)
}

// DeleteGuest removes a guest row.
func (a *API) DeleteGuest(ctx context.Context, spreadsheetID, sheetName, guestID string) error {
	return a.call(ctx, ActionDeleteGuest, map[string]any{
		"spreadsheetId": spreadsheetID,
		"eventId":       sheetName,
		"guestId":       guestID,
	}, nil)
}

// GetGuests returns the guest rows of a sheet with every cell as a string.
func (a *API) GetGuests(ctx context.Context, spreadsheetID, sheetName string) ([]map[string]string, error) {
	var out struct {
		Guests []map[string]json.RawMessage `json:"guests"`
	}
	err := a.call(ctx, ActionGetGuests, map[string]any{
		"spreadsheetId": spreadsheetID,
		"eventId":       sheetName,
	}, &out)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]string, 0, len(out.Guests))
	for _, g := range out.Guests {
		row := make(map[string]string, len(g))
		for k, v := range g {
			row[k] = scalarString(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Ping checks that the endpoint answers.
func (a *API) Ping(ctx context.Context) error {
	return a.call(ctx, ActionPing, nil, nil)
}

func (a *API) call(ctx context.Context, action string, payload map[string]any, dest any) error {
	data, err := a.sender.Send(ctx, action, payload)
	if err != nil {
		return err
	}
	if dest == nil || len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s data: %w", action, err)
	}
	return nil
}

// scalarString renders a JSON scalar as text. Sheets hands back numbers for
// numeric cells and ids, which are strings everywhere else.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(raw)
}
