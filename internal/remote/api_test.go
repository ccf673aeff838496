package remote

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	action  string
	payload map[string]any
}

type scriptedSender struct {
	calls []recordedCall
	data  map[string]string
	err   error
}

func (s *scriptedSender) Send(_ context.Context, action string, payload map[string]any) (json.RawMessage, error) {
	s.calls = append(s.calls, recordedCall{action: action, payload: payload})
	if s.err != nil {
		return nil, s.err
	}
	if raw, ok := s.data[action]; ok {
		return json.RawMessage(raw), nil
	}
	return nil, nil
}

func TestAPI_AddGuestAcceptsNumericID(t *testing.T) {
	sender := &scriptedSender{data: map[string]string{ActionAddGuest: `{"guestId":7}`}}
	api := NewAPI(sender)

	id, err := api.AddGuest(context.Background(), "sheet-1", "Wedding_1", map[string]any{"id": "local"})
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	require.Len(t, sender.calls, 1)
	call := sender.calls[0]
	assert.Equal(t, "sheet-1", call.payload["spreadsheetId"])
	assert.Equal(t, "Wedding_1", call.payload["eventId"])
	assert.Equal(t, map[string]any{"id": "local"}, call.payload["guest"])
}

func TestAPI_AddGuestWithoutIDReturnsEmpty(t *testing.T) {
	api := NewAPI(&scriptedSender{data: map[string]string{ActionAddGuest: `{}`}})
	id, err := api.AddGuest(context.Background(), "s", "e", nil)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestAPI_GetGuestsStringifiesCells(t *testing.T) {
	sender := &scriptedSender{data: map[string]string{
		ActionGetGuests: `{"guests":[{"id":"R1","status":"confirmed","Mesa":4,"VIP":true,"Nome":"Ana"}]}`,
	}}
	rows, err := NewAPI(sender).GetGuests(context.Background(), "s", "Wedding_1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{
		"id":     "R1",
		"status": "confirmed",
		"Mesa":   "4",
		"VIP":    "true",
		"Nome":   "Ana",
	}, rows[0])
}

func TestAPI_UpdateEventPrefersSheetName(t *testing.T) {
	sender := &scriptedSender{data: map[string]string{
		ActionUpdateEvent: `{"eventId":"old","sheetName":"Gala"}`,
	}}
	name, err := NewAPI(sender).UpdateEvent(context.Background(), "s", "old", "Gala", []string{"Nome"})
	require.NoError(t, err)
	assert.Equal(t, "Gala", name)
	assert.Equal(t, []string{"Nome"}, sender.calls[0].payload["columns"])
}

func TestAPI_CreateEventSendsEmptyColumns(t *testing.T) {
	sender := &scriptedSender{data: map[string]string{
		ActionCreateEvent: `{"sheetName":"Wedding_1","eventId":"Wedding_1"}`,
	}}
	created, err := NewAPI(sender).CreateEvent(context.Background(), "s", EventSpec{Name: "Wedding"})
	require.NoError(t, err)
	assert.Equal(t, "Wedding_1", created.SheetName)
	assert.Equal(t, []string{}, sender.calls[0].payload["columns"])
}

func TestAPI_ValidateUserPropagatesErrors(t *testing.T) {
	api := NewAPI(&scriptedSender{err: &RejectedError{Action: ActionValidateUser, Message: "denied"}})
	_, err := api.ValidateUser(context.Background(), "a@b.co")
	assert.True(t, IsRejected(err))
}

func TestAPI_DecodeErrorMentionsAction(t *testing.T) {
	api := NewAPI(&scriptedSender{data: map[string]string{ActionGetEvents: `{"events":"nope"}`}})
	_, err := api.GetEvents(context.Background(), "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode getEvents data")
}
