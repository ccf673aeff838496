package syncer

import (
	"errors"
	"log/slog"
	"sync"

	"attendance/internal/models"
	"attendance/internal/remote"
	"attendance/internal/state"
)

// ErrSyncUnavailable is returned by operations that only make sense with a
// working remote linkage (push, pull).
var ErrSyncUnavailable = errors.New("sync is disabled or no spreadsheet is linked")

// SessionSource provides the current session, if any.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Saver persists the current domain state.
type Saver interface {
	Save() error
}

// Outcome describes the remote side of a mutation. The local change has
// already been applied whatever it says, except when Reverted is set.
type Outcome struct {
	Attempted bool
	Err       error
	Reverted  bool
}

// Synced reports whether the mutation reached the spreadsheet.
func (o Outcome) Synced() bool {
	return o.Attempted && o.Err == nil
}

// Syncer mirrors local mutations to the spreadsheet backend. Local changes
// always win availability: a remote failure is logged and reported in the
// Outcome, never by rolling back, with rename as the single exception.
type Syncer struct {
	logger  *slog.Logger
	state   *state.State
	api     *remote.API
	session SessionSource
	saver   Saver

	// mu serializes every operation, remote call included, so guest id
	// swaps are visible before the next operation starts.
	mu      sync.Mutex
	enabled bool
}

// New creates a disabled Syncer.
func New(logger *slog.Logger, st *state.State, api *remote.API, session SessionSource, saver Saver) *Syncer {
	return &Syncer{
		logger:  logger,
		state:   st,
		api:     api,
		session: session,
		saver:   saver,
	}
}

// Enable turns mirroring on. Without a spreadsheet in the current session it
// warns and stays disabled.
func (s *Syncer) Enable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spreadsheet() == "" {
		s.logger.Warn("Cannot enable sync without a linked spreadsheet. Working locally.")
		return false
	}
	if !s.enabled {
		s.logger.Info("Sync enabled.", "spreadsheetID", s.spreadsheet())
	}
	s.enabled = true
	return true
}

// Disable turns mirroring off. Remote failures never do this on their own.
func (s *Syncer) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		s.logger.Info("Sync disabled.")
	}
	s.enabled = false
}

// Enabled reports the switch position.
func (s *Syncer) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Status is a summary for the sync indicator.
type Status struct {
	Enabled        bool   `json:"enabled"`
	SpreadsheetID  string `json:"spreadsheetId"`
	Events         int    `json:"events"`
	LinkedEvents   int    `json:"linkedEvents"`
	UnsyncedGuests int    `json:"unsyncedGuests"`
}

// Status reports the switch position and how much is still local-only.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Enabled: s.enabled, SpreadsheetID: s.spreadsheet()}
	for _, ev := range s.state.Events() {
		st.Events++
		if !ev.Linked() {
			continue
		}
		st.LinkedEvents++
		for _, g := range ev.Guests {
			if g.Pending() {
				st.UnsyncedGuests++
			}
		}
	}
	return st
}

func (s *Syncer) spreadsheet() string {
	if s.session == nil {
		return ""
	}
	sess, ok := s.session.Current()
	if !ok {
		return ""
	}
	return sess.Spreadsheet()
}

// remoteFor returns the spreadsheet id when mirroring applies to ev.
func (s *Syncer) remoteFor(ev models.Event) (string, bool) {
	if !s.enabled || !ev.Linked() {
		return "", false
	}
	sid := s.spreadsheet()
	return sid, sid != ""
}

func (s *Syncer) persist() {
	if s.saver == nil {
		return
	}
	if err := s.saver.Save(); err != nil {
		s.logger.Error("Failed to persist state", "error", err)
	}
}
