package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"attendance/internal/models"
)

// Keys of the persisted blobs.
const (
	StateKey     = "attendance_data"
	SessionKey   = "auth_user"
	TemplatesKey = "column_templates"
	EndpointKey  = "apiUrl"
	SyncKey      = "sync_enabled"

	corruptSuffix = ".corrupt"
)

var (
	// ErrStorageCorrupt marks a stored blob that could not be decoded.
	ErrStorageCorrupt = errors.New("stored data is corrupt")
	// ErrNotFound is returned by GetJSON for a missing key.
	ErrNotFound = errors.New("key not found")
)

// Store persists application state as JSON blobs on a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a Store on backend.
func New(logger *slog.Logger, backend Backend) *Store {
	return &Store{backend: backend, logger: logger}
}

// Save writes the full snapshot under StateKey, replacing the previous one.
func (s *Store) Save(snap models.Snapshot) error {
	if snap.Events == nil {
		snap.Events = []models.Event{}
	}
	return s.PutJSON(StateKey, snap)
}

// Load returns the persisted snapshot. A missing or corrupt blob yields
// ok=false; corrupt data is copied aside before the caller starts empty.
func (s *Store) Load() (models.Snapshot, bool) {
	var snap models.Snapshot
	err := s.GetJSON(StateKey, &snap)
	switch {
	case err == nil:
		return snap, true
	case errors.Is(err, ErrNotFound):
		s.logger.Info("No saved state found, starting fresh.", "key", StateKey)
	case errors.Is(err, ErrStorageCorrupt):
		s.logger.Warn("Saved state is corrupt, starting fresh.", "key", StateKey, "error", err)
		s.quarantine(StateKey)
	default:
		s.logger.Error("Failed to read saved state, starting fresh.", "key", StateKey, "error", err)
	}
	return models.Snapshot{}, false
}

// GetJSON decodes the blob at key into dest.
func (s *Store) GetJSON(key string, dest any) error {
	data, ok, err := s.backend.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, key, err)
	}
	return nil
}

// PutJSON encodes v and stores it at key.
func (s *Store) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.backend.Set(key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// GetString returns the raw text stored at key, or "" when missing.
func (s *Store) GetString(key string) string {
	data, ok, err := s.backend.Get(key)
	if err != nil || !ok {
		return ""
	}
	return string(data)
}

// PutString stores raw text at key.
func (s *Store) PutString(key, value string) error {
	return s.backend.Set(key, []byte(value))
}

// Delete removes the blob at key.
func (s *Store) Delete(key string) error {
	return s.backend.Delete(key)
}

func (s *Store) quarantine(key string) {
	data, ok, err := s.backend.Get(key)
	if err != nil || !ok {
		return
	}
	if err := s.backend.Set(key+corruptSuffix, data); err != nil {
		s.logger.Error("Failed to keep a copy of corrupt data", "key", key, "error", err)
		return
	}
	s.logger.Info("Kept a copy of corrupt data", "key", key+corruptSuffix)
}
