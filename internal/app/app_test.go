package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"

	"attendance/internal/config"
	"attendance/internal/models"
	"attendance/internal/store"
)

// scriptedTransport answers with a canned data object per action.
type scriptedTransport struct {
	data    map[string]string
	actions []string
}

func (s *scriptedTransport) Post(_ context.Context, _ string, body []byte) ([]byte, error) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	s.actions = append(s.actions, req.Action)
	data, ok := s.data[req.Action]
	if !ok {
		data = "{}"
	}
	return []byte(`{"success":true,"data":` + data + `}`), nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	cfg.Endpoint = "https://script.google.com/macros/s/test/exec"
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, backend store.Backend, tr *scriptedTransport) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Backend: backend, Transport: tr})
	require.NoError(t, err)
	return a
}

func TestNew_RestoresSavedState(t *testing.T) {
	backend := store.NewMemoryBackend()
	cfg := testConfig(t)

	first := newTestApp(t, cfg, backend, &scriptedTransport{})
	first.State.CreateEvent("Birthday", "2025-02-01")
	require.NoError(t, first.Close())

	second := newTestApp(t, cfg, backend, &scriptedTransport{})
	events := second.State.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Birthday", events[0].Name)
	assert.NotNil(t, second.Templates)
}

func TestNew_FileBackendInDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = t.TempDir()

	a := newTestApp(t, cfg, nil, &scriptedTransport{})
	a.State.CreateEvent("Party", "")
	require.NoError(t, a.Save())

	b := newTestApp(t, cfg, nil, &scriptedTransport{})
	assert.Len(t, b.State.Events(), 1)
}

func TestNew_TemplatesFeatureOff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Features.Templates = false
	a := newTestApp(t, cfg, store.NewMemoryBackend(), &scriptedTransport{})
	assert.Nil(t, a.Templates)
}

func TestResume(t *testing.T) {
	saved := func(t *testing.T) store.Backend {
		backend := store.NewMemoryBackend()
		st := store.New(slog.New(slog.NewTextHandler(io.Discard, nil)), backend)
		require.NoError(t, st.PutJSON(store.SessionKey, models.Session{Email: "ana@example.com", SpreadsheetID: pointer.String("old")}))
		return backend
	}
	linked := &scriptedTransport{data: map[string]string{"validateUser": `{"name":"Ana","spreadsheetId":"sheet-1"}`}}

	t.Run("no session", func(t *testing.T) {
		a := newTestApp(t, testConfig(t), store.NewMemoryBackend(), &scriptedTransport{})
		require.NoError(t, a.Resume(context.Background()))
		assert.False(t, a.Syncer.Enabled())
	})

	t.Run("enables sync", func(t *testing.T) {
		a := newTestApp(t, testConfig(t), saved(t), linked)
		require.NoError(t, a.Resume(context.Background()))
		assert.True(t, a.Syncer.Enabled())
		sess, ok := a.Session.Current()
		require.True(t, ok)
		assert.Equal(t, "sheet-1", sess.Spreadsheet())
	})

	t.Run("respects saved switch", func(t *testing.T) {
		backend := saved(t)
		require.NoError(t, backend.Set(store.SyncKey, []byte("false")))
		a := newTestApp(t, testConfig(t), backend, linked)
		require.NoError(t, a.Resume(context.Background()))
		assert.False(t, a.Syncer.Enabled())

		on, err := a.SetSync(true)
		require.NoError(t, err)
		assert.True(t, on)
		assert.True(t, a.SyncPreferred())
	})

	t.Run("feature off", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Features.Sync = false
		a := newTestApp(t, cfg, saved(t), linked)
		require.NoError(t, a.Resume(context.Background()))
		assert.False(t, a.Syncer.Enabled())
		_, err := a.SetSync(true)
		assert.Error(t, err)
	})
}

func TestStartAutosave(t *testing.T) {
	backend := store.NewMemoryBackend()
	a := newTestApp(t, testConfig(t), backend, &scriptedTransport{})
	a.State.CreateEvent("Party", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := a.StartAutosave(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok, _ := backend.Get(store.StateKey)
		return ok
	}, time.Second, 5*time.Millisecond)

	a.State.CreateEvent("Later", "")
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("autosave did not stop")
	}

	snap, ok := a.Store.Load()
	require.True(t, ok)
	assert.Len(t, snap.Events, 2, "final save on shutdown")
}
