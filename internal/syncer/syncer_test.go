package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"

	"attendance/internal/models"
	"attendance/internal/remote"
	"attendance/internal/state"
)

type call struct {
	action  string
	payload map[string]any
}

// fakeRemote records every action and answers through respond.
type fakeRemote struct {
	calls   []call
	respond func(action string, payload map[string]any) (string, error)
}

func (f *fakeRemote) Send(_ context.Context, action string, payload map[string]any) (json.RawMessage, error) {
	f.calls = append(f.calls, call{action: action, payload: payload})
	if f.respond == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := f.respond(action, payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (f *fakeRemote) actions() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.action
	}
	return out
}

type fakeSession struct {
	sess *models.Session
}

func (f *fakeSession) Current() (models.Session, bool) {
	if f.sess == nil {
		return models.Session{}, false
	}
	return *f.sess, true
}

type snapshotSaver struct {
	st    *state.State
	saves int
	last  models.Snapshot
}

func (s *snapshotSaver) Save() error {
	s.saves++
	s.last = s.st.Snapshot()
	return nil
}

type harness struct {
	syncer  *Syncer
	state   *state.State
	remote  *fakeRemote
	saver   *snapshotSaver
	session *fakeSession
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness builds a Syncer; a non-empty spreadsheetID logs in and enables sync.
func newHarness(t *testing.T, spreadsheetID string, sender remote.Sender) *harness {
	t.Helper()
	h := &harness{state: state.New(), session: &fakeSession{}}
	if f, ok := sender.(*fakeRemote); ok {
		h.remote = f
	}
	h.saver = &snapshotSaver{st: h.state}
	h.syncer = New(discardLogger(), h.state, remote.NewAPI(sender), h.session, h.saver)
	if spreadsheetID != "" {
		h.session.sess = &models.Session{Email: "ana@example.com", SpreadsheetID: pointer.String(spreadsheetID)}
		require.True(t, h.syncer.Enable())
	}
	return h
}

// linkedEvent creates an event that is already mirrored, bypassing the remote.
func (h *harness) linkedEvent(t *testing.T, name string, guests int) models.Event {
	t.Helper()
	ev := h.state.CreateEvent(name, "")
	_, err := h.state.SetColumns(ev.ID, []string{"Nome"})
	require.NoError(t, err)
	require.NoError(t, h.state.LinkEvent(ev.ID, name+"_1"))
	for i := 0; i < guests; i++ {
		g, err := h.state.AddGuest(ev.ID, state.GuestInput{ID: fmt.Sprintf("R%d", i+1), Fields: map[string]string{"Nome": fmt.Sprintf("Guest %d", i+1)}})
		require.NoError(t, err)
		require.NoError(t, h.state.MarkGuestSynced(ev.ID, g.ID, true))
	}
	ev, err = h.state.Event(ev.ID)
	require.NoError(t, err)
	return ev
}

func TestEnableRequiresSpreadsheet(t *testing.T) {
	h := newHarness(t, "", &fakeRemote{})

	assert.False(t, h.syncer.Enable())
	assert.False(t, h.syncer.Enabled())

	h.session.sess = &models.Session{Email: "ana@example.com"}
	assert.False(t, h.syncer.Enable())

	h.session.sess.SpreadsheetID = pointer.String("sheet-1")
	assert.True(t, h.syncer.Enable())
	assert.True(t, h.syncer.Status().Enabled)

	h.syncer.Disable()
	assert.False(t, h.syncer.Enabled())
	assert.Empty(t, h.remote.calls)
}

func TestScenario_CreateEventWithoutLinkage(t *testing.T) {
	h := newHarness(t, "", &fakeRemote{})

	ev, out, err := h.syncer.CreateEvent(context.Background(), "Birthday", "", nil)
	require.NoError(t, err)
	assert.False(t, out.Attempted)
	assert.False(t, ev.Synced)
	assert.Nil(t, ev.SheetName)
	assert.Empty(t, h.remote.calls)

	require.Len(t, h.saver.last.Events, 1)
	assert.Equal(t, "Birthday", h.saver.last.Events[0].Name)
}

func TestScenario_CreateEventLinksSheet(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, _ map[string]any) (string, error) {
		return `{"sheetName":"Wedding_1","eventId":"Wedding_1"}`, nil
	}})

	ev, out, err := h.syncer.CreateEvent(context.Background(), "Wedding", "2025-06-14", []string{"Nome", "Mesa"})
	require.NoError(t, err)
	assert.True(t, out.Synced())
	assert.True(t, ev.Synced)
	assert.Equal(t, "Wedding_1", ev.Sheet())

	require.Len(t, h.remote.calls, 1)
	c := h.remote.calls[0]
	assert.Equal(t, remote.ActionCreateEvent, c.action)
	assert.Equal(t, "sheet-1", c.payload["spreadsheetId"])
	assert.Equal(t, "Wedding", c.payload["name"])
	assert.Equal(t, []string{"Nome", "Mesa"}, c.payload["columns"])

	assert.True(t, h.saver.last.Events[0].Synced, "linkage must be persisted")
}

func TestScenario_AddGuestAdoptsRemoteID(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, _ map[string]any) (string, error) {
		if action == remote.ActionAddGuest {
			return `{"guestId":"R7"}`, nil
		}
		return `{}`, nil
	}})
	ev := h.linkedEvent(t, "Wedding", 0)
	_, _, err := h.syncer.SetColumns(context.Background(), ev.ID, nil)
	require.NoError(t, err)
	h.remote.calls = nil

	g, out, err := h.syncer.AddGuest(context.Background(), ev.ID, state.GuestInput{Name: "Ana"})
	require.NoError(t, err)
	assert.True(t, out.Synced())
	assert.Equal(t, "R7", g.ID)
	assert.True(t, g.Synced)

	localID := h.remote.calls[0].payload["guest"].(map[string]any)["id"].(string)
	assert.NotEqual(t, "R7", localID)
	_, err = h.state.Guest(ev.ID, localID)
	assert.ErrorIs(t, err, state.ErrNotFound, "the local id must not resolve after the swap")

	_, _, err = h.syncer.UpdateGuestStatus(context.Background(), ev.ID, "R7", models.StatusConfirmed)
	require.NoError(t, err)
	last := h.remote.calls[len(h.remote.calls)-1]
	assert.Equal(t, remote.ActionUpdateGuest, last.action)
	assert.Equal(t, "R7", last.payload["guestId"])
	assert.Equal(t, map[string]any{"status": "confirmed"}, last.payload["updates"])
}

func TestScenario_RenameRevertsOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"quota"}`))
	}))
	defer srv.Close()

	client := remote.NewClient(discardLogger(), remote.NewHTTPTransport(srv.Client()), remote.StaticSettings{
		Endpoint: srv.URL,
		Timeout:  time.Second,
	})
	h := newHarness(t, "sheet-1", client)
	ev := h.linkedEvent(t, "Wedding", 0)

	got, out, err := h.syncer.RenameEvent(context.Background(), ev.ID, "Gala")
	require.NoError(t, err)
	assert.True(t, out.Attempted)
	assert.True(t, out.Reverted)
	var rejected *remote.RejectedError
	require.ErrorAs(t, out.Err, &rejected)
	assert.Equal(t, "quota", rejected.Message)

	assert.Equal(t, "Wedding", got.Name)
	stored, _ := h.state.Event(ev.ID)
	assert.Equal(t, "Wedding", stored.Name)
	assert.Equal(t, "Wedding", h.saver.last.Events[0].Name)
}

func TestScenario_BulkConfirmIsOrdered(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{})
	ev := h.linkedEvent(t, "Wedding", 5)

	ids := []string{"R3", "R1", "R5", "R2", "R4"}
	results, err := h.syncer.BulkUpdateStatus(context.Background(), ev.ID, ids, models.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, results, 5)

	var sent []string
	for _, c := range h.remote.calls {
		require.Equal(t, remote.ActionUpdateGuest, c.action)
		sent = append(sent, c.payload["guestId"].(string))
	}
	assert.Equal(t, ids, sent)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.True(t, r.Outcome.Synced())
	}

	stats, err := h.state.Stats(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Confirmed)
}

func TestBulkUpdateStatus_Validation(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{})
	ev := h.linkedEvent(t, "Wedding", 2)

	_, err := h.syncer.BulkUpdateStatus(context.Background(), ev.ID, []string{"R1"}, "maybe")
	assert.ErrorIs(t, err, state.ErrInvalidStatus)
	assert.Empty(t, h.remote.calls)

	results, err := h.syncer.BulkUpdateStatus(context.Background(), ev.ID, []string{"R1", "missing", "R2"}, models.StatusDeclined)
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, state.ErrNotFound)
	assert.NoError(t, results[2].Err)
	assert.Len(t, h.remote.calls, 2)
}

func TestLocalFirst_AlwaysFailingRemote(t *testing.T) {
	failing := &fakeRemote{respond: func(string, map[string]any) (string, error) {
		return "", remote.ErrTimeout
	}}
	h := newHarness(t, "sheet-1", failing)
	ctx := context.Background()

	created, out, err := h.syncer.CreateEvent(ctx, "Party", "", []string{"Nome"})
	require.NoError(t, err)
	assert.ErrorIs(t, out.Err, remote.ErrTimeout)
	assert.False(t, created.Synced)

	linked := h.linkedEvent(t, "Wedding", 1)

	g, out, err := h.syncer.AddGuest(ctx, linked.ID, state.GuestInput{Fields: map[string]string{"Nome": "Ana"}})
	require.NoError(t, err)
	assert.True(t, out.Attempted)
	assert.Error(t, out.Err)
	assert.False(t, g.Synced)

	_, out, err = h.syncer.UpdateGuestStatus(ctx, linked.ID, "R1", models.StatusDeclined)
	require.NoError(t, err)
	assert.Error(t, out.Err)

	removed, out, err := h.syncer.DeleteGuest(ctx, linked.ID, "R1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Error(t, out.Err)

	renamed, out, err := h.syncer.RenameEvent(ctx, created.ID, "Party 2")
	require.NoError(t, err)
	assert.False(t, out.Attempted, "an unlinked event is renamed locally only")
	assert.Equal(t, "Party 2", renamed.Name)

	removed, out, err = h.syncer.DeleteEvent(ctx, linked.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.ErrorIs(t, out.Err, remote.ErrTimeout)

	assert.True(t, h.syncer.Enabled(), "remote failures never disable sync")

	require.Len(t, h.saver.last.Events, 1)
	persisted := h.saver.last.Events[0]
	assert.Equal(t, "Party 2", persisted.Name)
	assert.False(t, persisted.Synced)
}

func TestUpdateGuest_UnsyncedGuestStaysLocal(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{})
	ev := h.linkedEvent(t, "Wedding", 0)
	g, err := h.state.AddGuest(ev.ID, state.GuestInput{})
	require.NoError(t, err)

	_, out, err := h.syncer.UpdateGuestStatus(context.Background(), ev.ID, g.ID, models.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, out.Attempted)

	removed, out, err := h.syncer.DeleteGuest(context.Background(), ev.ID, g.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, out.Attempted)
	assert.Empty(t, h.remote.calls)
}

func TestAddGuest_RemoteIDCollisionKeepsLocalID(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, _ map[string]any) (string, error) {
		return `{"guestId":"R1"}`, nil
	}})
	ev := h.linkedEvent(t, "Wedding", 1)

	g, out, err := h.syncer.AddGuest(context.Background(), ev.ID, state.GuestInput{ID: "local-2"})
	require.NoError(t, err)
	assert.ErrorIs(t, out.Err, state.ErrDuplicateGuest)
	assert.Equal(t, "local-2", g.ID)
	assert.False(t, g.Synced)
}

func TestAddGuest_WithoutRemoteIDMarksSynced(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{})
	ev := h.linkedEvent(t, "Wedding", 0)

	g, out, err := h.syncer.AddGuest(context.Background(), ev.ID, state.GuestInput{ID: "g1"})
	require.NoError(t, err)
	assert.True(t, out.Synced())
	assert.Equal(t, "g1", g.ID)
	assert.True(t, g.Synced)
}

func TestSetColumns_SendsHeader(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{})
	ev := h.linkedEvent(t, "Wedding", 0)

	_, out, err := h.syncer.SetColumns(context.Background(), ev.ID, []string{"Nome", "Mesa"})
	require.NoError(t, err)
	assert.True(t, out.Synced())
	require.Len(t, h.remote.calls, 1)
	assert.Equal(t, remote.ActionUpdateEvent, h.remote.calls[0].action)
	assert.Equal(t, []string{"Nome", "Mesa"}, h.remote.calls[0].payload["columns"])
	assert.Equal(t, "Wedding_1", h.remote.calls[0].payload["eventId"])
}

func TestDeleteIsIdempotent(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{})
	ev := h.linkedEvent(t, "Wedding", 1)

	removed, _, err := h.syncer.DeleteGuest(context.Background(), ev.ID, "R1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, out, err := h.syncer.DeleteGuest(context.Background(), ev.ID, "R1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.False(t, out.Attempted)

	removed, _, err = h.syncer.DeleteEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, _, err = h.syncer.DeleteEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{remote.ActionDeleteGuest, remote.ActionDeleteEvent}, h.remote.actions())
}

func TestImportGuests(t *testing.T) {
	n := 0
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, _ map[string]any) (string, error) {
		n++
		if n == 2 {
			return "", &remote.TransportError{Status: 500}
		}
		return fmt.Sprintf(`{"guestId":"S%d"}`, n), nil
	}})
	ev := h.linkedEvent(t, "Wedding", 0)

	added, out, err := h.syncer.ImportGuests(context.Background(), ev.ID, []state.GuestInput{
		{Fields: map[string]string{"Nome": "Ana"}},
		{Fields: map[string]string{"Nome": "Bruno"}},
		{Fields: map[string]string{"Nome": "Carla"}},
	})
	require.NoError(t, err)
	require.Len(t, added, 3)
	assert.Equal(t, "S1", added[0].ID)
	assert.False(t, added[1].Synced)
	assert.Equal(t, "S3", added[2].ID)
	assert.True(t, out.Attempted)
	assert.Error(t, out.Err)

	_, _, err = h.syncer.ImportGuests(context.Background(), ev.ID, []state.GuestInput{{Fields: map[string]string{"Idade": "3"}}})
	assert.ErrorIs(t, err, state.ErrUnknownColumn)
}

func TestPush_LinksOfflineEvent(t *testing.T) {
	n := 0
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, _ map[string]any) (string, error) {
		switch action {
		case remote.ActionCreateEvent:
			return `{"sheetName":"Party_1"}`, nil
		case remote.ActionAddGuest:
			n++
			return fmt.Sprintf(`{"guestId":"P%d"}`, n), nil
		}
		return `{}`, nil
	}})
	ev := h.state.CreateEvent("Party", "")
	for _, name := range []string{"Ana", "Bruno"} {
		_, err := h.state.AddGuest(ev.ID, state.GuestInput{Name: name})
		require.NoError(t, err)
	}

	pushed, out, err := h.syncer.Push(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.True(t, out.Synced())
	assert.Equal(t, "Party_1", pushed.Sheet())
	require.Len(t, pushed.Guests, 2)
	assert.Equal(t, "P1", pushed.Guests[0].ID)
	assert.Equal(t, "P2", pushed.Guests[1].ID)
	assert.Equal(t, []string{remote.ActionCreateEvent, remote.ActionAddGuest, remote.ActionAddGuest}, h.remote.actions())

	h.remote.calls = nil
	_, out, err = h.syncer.Push(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.True(t, out.Synced())
	assert.Empty(t, h.remote.calls, "nothing left to push")

	h.syncer.Disable()
	_, _, err = h.syncer.Push(context.Background(), ev.ID)
	assert.ErrorIs(t, err, ErrSyncUnavailable)
}

func TestPull_RemoteWins(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, payload map[string]any) (string, error) {
		switch action {
		case remote.ActionGetEvents:
			return `{"events":[
				{"sheetName":"Wedding_1","name":"Wedding Gala","columns":["Nome"]},
				{"sheetName":"Expo_1","name":"Expo","date":"2025-09-01","columns":["Nome","Empresa"]}
			]}`, nil
		case remote.ActionGetGuests:
			if payload["eventId"] == "Wedding_1" {
				return `{"guests":[{"id":"R9","status":"confirmed","Nome":"Zoe"},{"id":"R9","Nome":"Dup"},{"Nome":"No id"}]}`, nil
			}
			return `{"guests":[{"id":7,"status":"sim","Nome":"Ana","Empresa":"ACME"}]}`, nil
		}
		return `{}`, nil
	}})
	wedding := h.linkedEvent(t, "Wedding", 2)
	gone := h.linkedEvent(t, "Old", 0)
	local := h.state.CreateEvent("Local only", "")

	res, err := h.syncer.Pull(context.Background())
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Unlinked)

	w, err := h.state.Event(wedding.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wedding Gala", w.Name)
	require.Len(t, w.Guests, 2)
	assert.Equal(t, "R9", w.Guests[0].ID)
	assert.Equal(t, models.StatusConfirmed, w.Guests[0].Status)
	assert.True(t, w.Guests[0].Synced)
	assert.False(t, w.Guests[1].Synced)
	assert.True(t, w.Guests[1].OnSheet)
	assert.Equal(t, "No id", w.Guests[1].Fields["Nome"])

	o, _ := h.state.Event(gone.ID)
	assert.False(t, o.Synced)
	l, _ := h.state.Event(local.ID)
	assert.False(t, l.Synced)

	events := h.state.Events()
	require.Len(t, events, 4)
	expo := events[3]
	assert.Equal(t, "Expo", expo.Name)
	assert.Equal(t, "Expo_1", expo.Sheet())
	assert.True(t, expo.Synced)
	require.Len(t, expo.Guests, 1)
	assert.Equal(t, "7", expo.Guests[0].ID)
	assert.Equal(t, models.StatusConfirmed, expo.Guests[0].Status)
	assert.Equal(t, map[string]string{"Nome": "Ana", "Empresa": "ACME"}, expo.Guests[0].Fields)
}

func TestPull_KeepsGuestsNeverSent(t *testing.T) {
	offline := true
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, _ map[string]any) (string, error) {
		switch action {
		case remote.ActionAddGuest:
			if offline {
				return "", errors.New("offline")
			}
		case remote.ActionGetEvents:
			return `{"events":[{"sheetName":"Party_1","name":"Party","columns":["Nome"]}]}`, nil
		case remote.ActionGetGuests:
			return `{"guests":[{"id":"R1","status":"confirmed","Nome":"Guest 1"}]}`, nil
		}
		return `{}`, nil
	}})
	ev := h.linkedEvent(t, "Party", 1)

	added, out, err := h.syncer.AddGuest(context.Background(), ev.ID, state.GuestInput{Fields: map[string]string{"Nome": "Bia"}})
	require.NoError(t, err)
	require.Error(t, out.Err)
	require.False(t, added.Synced)

	for i := 0; i < 2; i++ {
		res, err := h.syncer.Pull(context.Background())
		require.NoError(t, err)
		require.NoError(t, res.Err)

		got, err := h.state.Event(ev.ID)
		require.NoError(t, err)
		require.Len(t, got.Guests, 2, "pull %d", i+1)
		assert.Equal(t, "R1", got.Guests[0].ID)
		assert.Equal(t, models.StatusConfirmed, got.Guests[0].Status)
		assert.Equal(t, added.ID, got.Guests[1].ID)
		assert.Equal(t, "Bia", got.Guests[1].Fields["Nome"])
		assert.True(t, got.Guests[1].Pending())
	}

	offline = false
	h.remote.calls = nil
	_, out, err = h.syncer.Push(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.True(t, out.Synced())
	assert.Equal(t, []string{remote.ActionAddGuest}, h.remote.actions())
}

func TestPull_ThenPushSkipsRowsWithoutID(t *testing.T) {
	h := newHarness(t, "sheet-1", &fakeRemote{respond: func(action string, _ map[string]any) (string, error) {
		switch action {
		case remote.ActionGetEvents:
			return `{"events":[{"sheetName":"Party_1","name":"Party","columns":["Nome"]}]}`, nil
		case remote.ActionGetGuests:
			return `{"guests":[{"id":"R1","Nome":"Ana"},{"Nome":"Typed in the sheet"}]}`, nil
		}
		return `{}`, nil
	}})
	ev := h.linkedEvent(t, "Party", 0)

	_, err := h.syncer.Pull(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.syncer.Status().UnsyncedGuests)

	h.remote.calls = nil
	_, out, err := h.syncer.Push(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.NoError(t, out.Err)
	assert.NotContains(t, h.remote.actions(), remote.ActionAddGuest)

	_, err = h.syncer.Pull(context.Background())
	require.NoError(t, err)
	got, err := h.state.Event(ev.ID)
	require.NoError(t, err)
	assert.Len(t, got.Guests, 2, "rows without an id are not duplicated by a second pull")
}

func TestPull_RequiresSync(t *testing.T) {
	h := newHarness(t, "", &fakeRemote{})
	_, err := h.syncer.Pull(context.Background())
	assert.ErrorIs(t, err, ErrSyncUnavailable)
}
