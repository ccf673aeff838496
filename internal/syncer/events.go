package syncer

import (
	"context"
	"errors"
	"strings"

	"attendance/internal/models"
	"attendance/internal/remote"
	"attendance/internal/state"
)

// CreateEvent adds an event locally and, when sync is on, creates its sheet.
// A failed remote creation leaves the event local and unsynced.
func (s *Syncer) CreateEvent(ctx context.Context, name, date string, columns []string) (models.Event, Outcome, error) {
	if strings.TrimSpace(name) == "" {
		return models.Event{}, Outcome{}, state.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev := s.state.CreateEvent(name, date)
	if len(columns) > 0 {
		withColumns, err := s.state.SetColumns(ev.ID, columns)
		if err != nil {
			s.state.RemoveEvent(ev.ID)
			return models.Event{}, Outcome{}, err
		}
		ev = withColumns
	}
	s.persist()

	sid := s.spreadsheet()
	if !s.enabled || sid == "" {
		s.logger.Debug("Created local-only event.", "eventID", ev.ID, "name", ev.Name)
		return ev, Outcome{}, nil
	}

	created, err := s.api.CreateEvent(ctx, sid, remote.EventSpec{
		Name:    ev.Name,
		Date:    ev.Date,
		Columns: ev.Columns,
	})
	if err != nil {
		s.logger.Warn("Failed to create event sheet, keeping it local.", "eventID", ev.ID, "name", ev.Name, "error", err)
		return ev, Outcome{Attempted: true, Err: err}, nil
	}

	sheet := created.SheetName
	if sheet == "" {
		sheet = created.EventID
	}
	if sheet == "" {
		sheet = ev.Name
	}
	if err := s.state.LinkEvent(ev.ID, sheet); err != nil {
		return ev, Outcome{Attempted: true}, err
	}
	s.persist()
	s.logger.Info("Created event sheet.", "eventID", ev.ID, "sheet", sheet)

	ev, err = s.state.Event(ev.ID)
	return ev, Outcome{Attempted: true}, err
}

// RenameEvent renames locally, then remotely. If the remote rename fails the
// local name is put back, so the two never silently disagree.
func (s *Syncer) RenameEvent(ctx context.Context, id, name string) (models.Event, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.state.RenameEvent(id, name)
	if err != nil {
		return models.Event{}, Outcome{}, err
	}
	s.persist()

	ev, err := s.state.Event(id)
	if err != nil {
		return models.Event{}, Outcome{}, err
	}
	sid, ok := s.remoteFor(ev)
	if !ok {
		return ev, Outcome{}, nil
	}

	sheet, err := s.api.UpdateEvent(ctx, sid, ev.Sheet(), ev.Name, nil)
	if err != nil {
		s.logger.Warn("Failed to rename event sheet, reverting local name.", "eventID", id, "name", ev.Name, "previous", old, "error", err)
		if _, rerr := s.state.RenameEvent(id, old); rerr != nil {
			return ev, Outcome{Attempted: true, Err: err}, rerr
		}
		s.persist()
		reverted, rerr := s.state.Event(id)
		return reverted, Outcome{Attempted: true, Err: err, Reverted: true}, rerr
	}

	if sheet != "" && sheet != ev.Sheet() {
		if err := s.state.LinkEvent(id, sheet); err != nil {
			return ev, Outcome{Attempted: true}, err
		}
		s.persist()
	}
	ev, err = s.state.Event(id)
	return ev, Outcome{Attempted: true}, err
}

// SetColumns replaces the column schema and refreshes the sheet header.
func (s *Syncer) SetColumns(ctx context.Context, id string, columns []string) (models.Event, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.state.SetColumns(id, columns)
	if err != nil {
		return models.Event{}, Outcome{}, err
	}
	s.persist()

	sid, ok := s.remoteFor(ev)
	if !ok {
		return ev, Outcome{}, nil
	}
	sheet, err := s.api.UpdateEvent(ctx, sid, ev.Sheet(), ev.Name, ev.Columns)
	if err != nil {
		s.logger.Warn("Failed to update sheet columns, keeping local columns.", "eventID", id, "error", err)
		return ev, Outcome{Attempted: true, Err: err}, nil
	}
	if sheet != "" && sheet != ev.Sheet() {
		if err := s.state.LinkEvent(id, sheet); err != nil {
			return ev, Outcome{Attempted: true}, err
		}
		s.persist()
		ev, err = s.state.Event(id)
	}
	return ev, Outcome{Attempted: true}, err
}

// DeleteEvent removes the event everywhere it can. The local copy goes even
// when the remote delete fails; the sheet left behind is logged.
func (s *Syncer) DeleteEvent(ctx context.Context, id string) (bool, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.state.Event(id)
	if errors.Is(err, state.ErrNotFound) {
		return false, Outcome{}, nil
	}
	if err != nil {
		return false, Outcome{}, err
	}

	var out Outcome
	if sid, ok := s.remoteFor(ev); ok {
		out.Attempted = true
		if err := s.api.DeleteEvent(ctx, sid, ev.Sheet()); err != nil {
			out.Err = err
			s.logger.Warn("Failed to delete event sheet; the remote sheet may remain.", "eventID", id, "sheet", ev.Sheet(), "error", err)
		}
	}

	removed := s.state.RemoveEvent(id)
	s.persist()
	return removed, out, nil
}
