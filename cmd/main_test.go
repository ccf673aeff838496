package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/models"
	"attendance/internal/store"
)

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"Nome=Ana", " Mesa =3", "Obs=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Nome": "Ana", "Mesa": "3", "Obs": "a=b"}, fields)

	fields, err = parseFields(nil)
	require.NoError(t, err)
	assert.Nil(t, fields)

	_, err = parseFields([]string{"Nome"})
	assert.ErrorContains(t, err, "column=value")

	_, err = parseFields([]string{"=Ana"})
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()
	assert.True(t, setupLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, setupLogger("WARN").Enabled(ctx, slog.LevelInfo))
	assert.True(t, setupLogger("bogus").Enabled(ctx, slog.LevelInfo))
	assert.False(t, setupLogger("bogus").Enabled(ctx, slog.LevelDebug))
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}

func TestCommands_CreateEventThenAddGuestOffline(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ATTENDANCE_DATA_DIR", dataDir)
	t.Setenv("ATTENDANCE_TRANSPORT", "http")
	t.Setenv("LOG_LEVEL", "error")
	cfgPath := filepath.Join(t.TempDir(), "missing.toml")

	run := func(args ...string) {
		t.Helper()
		base := []string{"attendance", "--config", cfgPath, "--offline"}
		require.NoError(t, newCLI().Run(append(base, args...)))
	}
	saved := func() store.Backend {
		fb, err := store.NewFileBackend(dataDir)
		require.NoError(t, err)
		return fb
	}

	run("event", "create", "--column", "Nome", "--column", "Mesa", "Party")
	snap, ok := store.New(slog.Default(), saved()).Load()
	require.True(t, ok)
	require.Len(t, snap.Events, 1)
	ev := snap.Events[0]
	assert.Equal(t, "Party", ev.Name)
	assert.Equal(t, []string{"Nome", "Mesa"}, ev.Columns)

	run("guest", "add", "--field", "Nome=Ana", "--field", "Mesa=3", "--status", "sim", ev.ID)
	snap, ok = store.New(slog.Default(), saved()).Load()
	require.True(t, ok)
	require.Len(t, snap.Events, 1)
	require.Len(t, snap.Events[0].Guests, 1)
	g := snap.Events[0].Guests[0]
	assert.Equal(t, "Ana", g.Fields["Nome"])
	assert.Equal(t, "3", g.Fields["Mesa"])
	assert.Equal(t, models.StatusConfirmed, g.Status)
	assert.True(t, g.Pending())

	err := newCLI().Run([]string{"attendance", "--config", cfgPath, "--offline", "guest", "add", "--field", "Nome=Bia", "no-such-event"})
	assert.Error(t, err)
}
