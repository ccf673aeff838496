package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"google.golang.org/api/option"

	"attendance/internal/config"
	"attendance/internal/google"
	"attendance/internal/remote"
	"attendance/internal/session"
	"attendance/internal/state"
	"attendance/internal/store"
	"attendance/internal/syncer"
	"attendance/internal/templates"
)

// Options override the pieces New would otherwise build from config.
type Options struct {
	Backend   store.Backend    // nil uses a FileBackend in Config.DataDir
	Transport remote.Transport // nil picks one from Config.Transport
}

// App owns one instance of every component.
type App struct {
	Config   config.Config
	Features config.Features
	Logger   *slog.Logger

	Store     *store.Store
	Runtime   *config.Runtime
	State     *state.State
	Remote    *remote.API
	Session   *session.Manager
	Syncer    *syncer.Syncer
	Templates *templates.Library // nil when templates are turned off
}

// New builds the application and restores the saved guest lists.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	backend := opts.Backend
	if backend == nil {
		fb, err := store.NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		backend = fb
	}

	a := &App{
		Config:   cfg,
		Features: cfg.Features,
		Logger:   logger,
		Store:    store.New(logger, backend),
		State:    state.New(),
	}
	a.Runtime = config.NewRuntime(cfg, a.Store)

	transport := opts.Transport
	if transport == nil {
		t, err := newTransport(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		transport = t
	}

	a.Remote = remote.NewAPI(remote.NewClient(logger, transport, a.Runtime))
	a.Session = session.NewManager(logger, a.Remote, a.Store)
	a.Syncer = syncer.New(logger, a.State, a.Remote, a.Session, a)
	if cfg.Features.Templates {
		a.Templates = templates.NewLibrary(logger, a.Store)
	}

	if snap, ok := a.Store.Load(); ok {
		a.State.Restore(snap)
		logger.Debug("Restored saved state.", "events", len(snap.Events))
	}
	return a, nil
}

func newTransport(ctx context.Context, cfg config.Config, logger *slog.Logger) (remote.Transport, error) {
	switch cfg.Transport {
	case config.TransportScript:
		client, err := google.HTTPClient(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("init script transport: %w", err)
		}
		return google.NewScriptTransport(ctx, logger, "", option.WithHTTPClient(client))
	default:
		return remote.NewHTTPTransport(nil), nil
	}
}

// Save persists the guest lists. It implements syncer.Saver.
func (a *App) Save() error {
	return a.Store.Save(a.State.Snapshot())
}

// Resume revalidates the saved session and turns sync on when the session
// has a spreadsheet and the user has not switched sync off. No saved session
// is not an error.
func (a *App) Resume(ctx context.Context) error {
	sess, err := a.Session.Restore(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if a.Features.Sync && a.SyncPreferred() && sess.Linked() {
		a.Syncer.Enable()
	}
	return nil
}

// SyncPreferred reports the saved sync switch, on unless turned off.
func (a *App) SyncPreferred() bool {
	v, err := strconv.ParseBool(a.Store.GetString(store.SyncKey))
	return err != nil || v
}

// SetSync flips the sync switch and remembers the choice. It reports whether
// sync is now on.
func (a *App) SetSync(on bool) (bool, error) {
	if on && !a.Features.Sync {
		return false, fmt.Errorf("sync is turned off in the configuration")
	}
	if err := a.Store.PutString(store.SyncKey, strconv.FormatBool(on)); err != nil {
		return false, err
	}
	if !on {
		a.Syncer.Disable()
		return false, nil
	}
	return a.Syncer.Enable(), nil
}

// Close saves one last time.
func (a *App) Close() error {
	if err := a.Save(); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}
