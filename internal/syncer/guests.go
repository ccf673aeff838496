package syncer

import (
	"context"
	"errors"
	"fmt"

	"attendance/internal/models"
	"attendance/internal/state"
)

// AddGuest adds a guest locally and appends its row remotely. When the
// backend issues its own id the local one is replaced before returning.
func (s *Syncer) AddGuest(ctx context.Context, eventID string, in state.GuestInput) (models.Guest, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addGuest(ctx, eventID, in)
}

func (s *Syncer) addGuest(ctx context.Context, eventID string, in state.GuestInput) (models.Guest, Outcome, error) {
	g, err := s.state.AddGuest(eventID, in)
	if err != nil {
		return models.Guest{}, Outcome{}, err
	}
	s.persist()

	ev, err := s.state.Event(eventID)
	if err != nil {
		return g, Outcome{}, err
	}
	sid, ok := s.remoteFor(ev)
	if !ok {
		return g, Outcome{}, nil
	}
	return s.pushGuest(ctx, sid, ev, g)
}

// pushGuest appends g to the sheet and adopts the remote id.
func (s *Syncer) pushGuest(ctx context.Context, sid string, ev models.Event, g models.Guest) (models.Guest, Outcome, error) {
	remoteID, err := s.api.AddGuest(ctx, sid, ev.Sheet(), g.Payload())
	if err != nil {
		s.logger.Warn("Failed to add guest row, keeping local id.", "eventID", ev.ID, "guestID", g.ID, "error", err)
		return g, Outcome{Attempted: true, Err: err}, nil
	}

	id := g.ID
	switch {
	case remoteID == "" || remoteID == g.ID:
		err = s.state.MarkGuestSynced(ev.ID, g.ID, true)
	default:
		err = s.state.ReplaceGuestID(ev.ID, g.ID, remoteID)
		if errors.Is(err, state.ErrDuplicateGuest) {
			s.logger.Error("Remote guest id collides with a local guest, keeping local id.", "eventID", ev.ID, "guestID", g.ID, "remoteID", remoteID)
			return g, Outcome{Attempted: true, Err: err}, nil
		}
		id = remoteID
	}
	if err != nil {
		return g, Outcome{Attempted: true}, err
	}
	s.persist()

	g, err = s.state.Guest(ev.ID, id)
	return g, Outcome{Attempted: true}, err
}

// UpdateGuest applies a partial update and mirrors it for guests the
// backend already holds.
func (s *Syncer) UpdateGuest(ctx context.Context, eventID, guestID string, u state.GuestUpdate) (models.Guest, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateGuest(ctx, eventID, guestID, u)
}

// UpdateGuestStatus sets one guest's status.
func (s *Syncer) UpdateGuestStatus(ctx context.Context, eventID, guestID string, status models.Status) (models.Guest, Outcome, error) {
	return s.UpdateGuest(ctx, eventID, guestID, state.GuestUpdate{Status: &status})
}

func (s *Syncer) updateGuest(ctx context.Context, eventID, guestID string, u state.GuestUpdate) (models.Guest, Outcome, error) {
	g, err := s.state.UpdateGuest(eventID, guestID, u)
	if err != nil {
		return models.Guest{}, Outcome{}, err
	}
	s.persist()

	ev, err := s.state.Event(eventID)
	if err != nil {
		return g, Outcome{}, err
	}
	sid, ok := s.remoteFor(ev)
	if !ok || !g.Synced || u.Empty() {
		return g, Outcome{}, nil
	}
	if err := s.api.UpdateGuest(ctx, sid, ev.Sheet(), g.ID, u.Payload()); err != nil {
		s.logger.Warn("Failed to update guest row, local and sheet differ.", "eventID", eventID, "guestID", g.ID, "error", err)
		return g, Outcome{Attempted: true, Err: err}, nil
	}
	return g, Outcome{Attempted: true}, nil
}

// DeleteGuest removes the guest locally whatever the remote answer.
func (s *Syncer) DeleteGuest(ctx context.Context, eventID, guestID string) (bool, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.state.Event(eventID)
	if errors.Is(err, state.ErrNotFound) {
		return false, Outcome{}, nil
	}
	if err != nil {
		return false, Outcome{}, err
	}
	i := ev.GuestIndex(guestID)
	if i < 0 {
		return false, Outcome{}, nil
	}

	var out Outcome
	if sid, ok := s.remoteFor(ev); ok && ev.Guests[i].Synced {
		out.Attempted = true
		if err := s.api.DeleteGuest(ctx, sid, ev.Sheet(), guestID); err != nil {
			out.Err = err
			s.logger.Warn("Failed to delete guest row; the row may remain.", "eventID", eventID, "guestID", guestID, "error", err)
		}
	}

	removed := s.state.RemoveGuest(eventID, guestID)
	s.persist()
	return removed, out, nil
}

// BulkResult is the per-guest answer of a bulk operation.
type BulkResult struct {
	GuestID string
	Outcome Outcome
	Err     error
}

// BulkUpdateStatus sets status on every guest in order, one remote call
// finishing before the next starts. It stops only for an invalid status.
func (s *Syncer) BulkUpdateStatus(ctx context.Context, eventID string, guestIDs []string, status models.Status) ([]BulkResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", state.ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]BulkResult, 0, len(guestIDs))
	for _, id := range guestIDs {
		_, out, err := s.updateGuest(ctx, eventID, id, state.GuestUpdate{Status: &status})
		results = append(results, BulkResult{GuestID: id, Outcome: out, Err: err})
	}
	return results, nil
}

// ImportGuests adds guests one by one in input order. A local validation
// error stops the import; guests added so far are kept. Remote failures are
// joined into the Outcome.
func (s *Syncer) ImportGuests(ctx context.Context, eventID string, inputs []state.GuestInput) ([]models.Guest, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		added []models.Guest
		out   Outcome
		errs  []error
	)
	for i, in := range inputs {
		g, o, err := s.addGuest(ctx, eventID, in)
		if err != nil {
			out.Err = errors.Join(errs...)
			return added, out, fmt.Errorf("guest %d: %w", i+1, err)
		}
		added = append(added, g)
		out.Attempted = out.Attempted || o.Attempted
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	out.Err = errors.Join(errs...)
	s.logger.Info("Imported guests.", "eventID", eventID, "count", len(added), "remoteFailures", len(errs))
	return added, out, nil
}
