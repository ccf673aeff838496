package state

import (
	"fmt"
	"strings"

	"attendance/internal/models"
)

// GuestInput describes a guest to add. Empty ID and Status get defaults.
type GuestInput struct {
	ID     string
	Status models.Status
	Fields map[string]string
	Name   string
	Phone  string
	Email  string
}

// GuestUpdate is a partial update; nil members are left unchanged.
type GuestUpdate struct {
	Status *models.Status
	Fields map[string]string
	Name   *string
	Phone  *string
	Email  *string
}

// Empty reports whether the update changes nothing.
func (u GuestUpdate) Empty() bool {
	return u.Status == nil && len(u.Fields) == 0 && u.Name == nil && u.Phone == nil && u.Email == nil
}

// Payload renders the update in the flattened row shape of the backend.
func (u GuestUpdate) Payload() map[string]any {
	out := make(map[string]any, len(u.Fields)+4)
	for k, v := range u.Fields {
		out[k] = v
	}
	if u.Status != nil {
		out["status"] = string(*u.Status)
	}
	if u.Name != nil {
		out["name"] = *u.Name
	}
	if u.Phone != nil {
		out["phone"] = *u.Phone
	}
	if u.Email != nil {
		out["email"] = *u.Email
	}
	return out
}

// Guest returns a copy of one guest.
func (s *State) Guest(eventID, guestID string) (models.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, g, err := s.findGuest(eventID, guestID)
	if err != nil {
		return models.Guest{}, err
	}
	return g.Clone(), nil
}

// AddGuest appends a guest to the event. Every declared column is filled,
// defaulting to "", and the status defaults to pending.
func (s *State) AddGuest(eventID string, in GuestInput) (models.Guest, error) {
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	if !status.Valid() {
		return models.Guest{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.find(eventID)
	if err != nil {
		return models.Guest{}, err
	}
	for k := range in.Fields {
		if !ev.HasColumn(k) {
			return models.Guest{}, fmt.Errorf("%w: %q", ErrUnknownColumn, k)
		}
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.newID()
	} else if ev.GuestIndex(id) >= 0 {
		return models.Guest{}, fmt.Errorf("%w: %s", ErrDuplicateGuest, id)
	}

	g := models.Guest{
		ID:     id,
		Status: status,
		Fields: make(map[string]string, len(ev.Columns)),
		Name:   strings.TrimSpace(in.Name),
		Phone:  strings.TrimSpace(in.Phone),
		Email:  strings.TrimSpace(in.Email),
	}
	for _, c := range ev.Columns {
		g.Fields[c] = strings.TrimSpace(in.Fields[c])
	}
	ev.Guests = append(ev.Guests, g)
	return g.Clone(), nil
}

// UpdateGuest applies u after validating it completely.
func (s *State) UpdateGuest(eventID, guestID string, u GuestUpdate) (models.Guest, error) {
	if u.Status != nil && !u.Status.Valid() {
		return models.Guest{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *u.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, g, err := s.findGuest(eventID, guestID)
	if err != nil {
		return models.Guest{}, err
	}
	for k := range u.Fields {
		if !ev.HasColumn(k) {
			return models.Guest{}, fmt.Errorf("%w: %q", ErrUnknownColumn, k)
		}
	}

	for k, v := range u.Fields {
		g.Fields[k] = v
	}
	if u.Status != nil {
		g.Status = *u.Status
	}
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.Phone != nil {
		g.Phone = *u.Phone
	}
	if u.Email != nil {
		g.Email = *u.Email
	}
	return g.Clone(), nil
}

// UpdateGuestStatus sets the status of one guest.
func (s *State) UpdateGuestStatus(eventID, guestID string, status models.Status) error {
	_, err := s.UpdateGuest(eventID, guestID, GuestUpdate{Status: &status})
	return err
}

// ReplaceGuestID swaps a local id for the one issued by the remote side and
// marks the guest synced.
func (s *State) ReplaceGuestID(eventID, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, g, err := s.findGuest(eventID, oldID)
	if err != nil {
		return err
	}
	if newID != oldID && ev.GuestIndex(newID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateGuest, newID)
	}
	g.ID = newID
	g.Synced = true
	return nil
}

// MarkGuestSynced records that the remote side holds the guest.
func (s *State) MarkGuestSynced(eventID, guestID string, synced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, g, err := s.findGuest(eventID, guestID)
	if err != nil {
		return err
	}
	g.Synced = synced
	return nil
}

// ReplaceGuests swaps the whole guest list and column schema of an event,
// used when the remote copy is authoritative.
func (s *State) ReplaceGuests(eventID string, columns []string, guests []models.Guest) error {
	cleaned, err := cleanColumns(columns)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.find(eventID)
	if err != nil {
		return err
	}
	ev.Columns = cleaned
	ev.Guests = make([]models.Guest, 0, len(guests))
	for _, g := range guests {
		ev.Guests = append(ev.Guests, g.Clone())
	}
	normalize(ev)
	return nil
}

// RemoveGuest deletes a guest and reports whether it existed.
func (s *State) RemoveGuest(eventID, guestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.find(eventID)
	if err != nil {
		return false
	}
	i := ev.GuestIndex(guestID)
	if i < 0 {
		return false
	}
	ev.Guests = append(ev.Guests[:i], ev.Guests[i+1:]...)
	return true
}

func (s *State) findGuest(eventID, guestID string) (*models.Event, *models.Guest, error) {
	ev, err := s.find(eventID)
	if err != nil {
		return nil, nil, err
	}
	i := ev.GuestIndex(guestID)
	if i < 0 {
		return nil, nil, fmt.Errorf("guest %s: %w", guestID, ErrNotFound)
	}
	return ev, &ev.Guests[i], nil
}
