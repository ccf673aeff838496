package state

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendance/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateGuest  = errors.New("guest id already in use")
	ErrEmptyName       = errors.New("name is required")
)

// State is the in-memory collection of events and their guests. It never
// touches the network or the disk. Reads return deep copies.
type State struct {
	mu     sync.RWMutex
	events []*models.Event
	newID  func() string
	now    func() time.Time
}

// New returns an empty State.
func New() *State {
	return &State{
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Restore replaces the whole collection with snap.
func (s *State) Restore(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make([]*models.Event, 0, len(snap.Events))
	for _, e := range snap.Events {
		ev := e.Clone()
		normalize(&ev)
		s.events = append(s.events, &ev)
	}
}

// Snapshot returns a deep copy of every event.
func (s *State) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{Events: make([]models.Event, len(s.events))}
	for i, e := range s.events {
		snap.Events[i] = e.Clone()
	}
	return snap
}

// Events returns copies of all events in creation order.
func (s *State) Events() []models.Event {
	return s.Snapshot().Events
}

// Event returns a copy of the event with the given id.
func (s *State) Event(id string) (models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, err := s.find(id)
	if err != nil {
		return models.Event{}, err
	}
	return ev.Clone(), nil
}

// CreateEvent appends a new event with no columns and no guests.
func (s *State) CreateEvent(name, date string) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := &models.Event{
		ID:        s.newID(),
		Name:      strings.TrimSpace(name),
		Date:      strings.TrimSpace(date),
		Columns:   []string{},
		Guests:    []models.Guest{},
		CreatedAt: s.now(),
	}
	s.events = append(s.events, ev)
	return ev.Clone()
}

// RenameEvent sets a new name and returns the previous one.
func (s *State) RenameEvent(id, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.find(id)
	if err != nil {
		return "", err
	}
	old := ev.Name
	ev.Name = name
	return old, nil
}

// SetColumns replaces the column schema. Guests keep values of surviving
// columns, get "" for new ones and lose values of removed ones.
func (s *State) SetColumns(id string, columns []string) (models.Event, error) {
	cleaned, err := cleanColumns(columns)
	if err != nil {
		return models.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.find(id)
	if err != nil {
		return models.Event{}, err
	}
	ev.Columns = cleaned
	for i := range ev.Guests {
		fields := make(map[string]string, len(cleaned))
		for _, c := range cleaned {
			fields[c] = ev.Guests[i].Fields[c]
		}
		ev.Guests[i].Fields = fields
	}
	return ev.Clone(), nil
}

// LinkEvent records the remote sheet and marks the event synced.
func (s *State) LinkEvent(id, sheetName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.find(id)
	if err != nil {
		return err
	}
	ev.SheetName = &sheetName
	ev.Synced = true
	return nil
}

// UnlinkEvent marks the event unsynchronized. The sheet name is kept so a
// later push can tell the event was mirrored once.
func (s *State) UnlinkEvent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.find(id)
	if err != nil {
		return err
	}
	ev.Synced = false
	return nil
}

// RemoveEvent deletes the event. It reports whether anything was removed.
func (s *State) RemoveEvent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.events {
		if e.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return true
		}
	}
	return false
}

func (s *State) find(id string) (*models.Event, error) {
	for _, e := range s.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
}

func cleanColumns(columns []string) ([]string, error) {
	cleaned := make([]string, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if seen[c] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		seen[c] = true
		cleaned = append(cleaned, c)
	}
	return cleaned, nil
}

// normalize repairs snapshots written by older versions: missing slices,
// missing field maps and unknown statuses.
func normalize(ev *models.Event) {
	if ev.Columns == nil {
		ev.Columns = []string{}
	}
	if ev.Guests == nil {
		ev.Guests = []models.Guest{}
	}
	for i := range ev.Guests {
		g := &ev.Guests[i]
		if !g.Status.Valid() {
			g.Status = models.StatusPending
		}
		if g.Fields == nil {
			g.Fields = make(map[string]string, len(ev.Columns))
		}
		for _, c := range ev.Columns {
			if _, ok := g.Fields[c]; !ok {
				g.Fields[c] = ""
			}
		}
		for k := range g.Fields {
			if !ev.HasColumn(k) {
				delete(g.Fields, k)
			}
		}
	}
}
