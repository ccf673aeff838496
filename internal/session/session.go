package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xorcare/pointer"

	"attendance/internal/models"
	"attendance/internal/remote"
	"attendance/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrInvalidEmail is returned before any remote call for a malformed address.
var ErrInvalidEmail = errors.New("invalid email address")

// UnauthorizedError means the backend refused the user.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Message
}

// Manager owns the current session and its persisted copy.
type Manager struct {
	mu      sync.RWMutex
	current *models.Session
	api     *remote.API
	store   *store.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a Manager with no active session.
func NewManager(logger *slog.Logger, api *remote.API, st *store.Store) *Manager {
	return &Manager{
		api:    api,
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Login validates email with the backend, resolves the spreadsheet and
// persists the resulting session.
func (m *Manager) Login(ctx context.Context, email string) (models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return models.Session{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	sess, err := m.validate(ctx, email)
	if err != nil {
		return models.Session{}, err
	}

	if err := m.store.PutJSON(store.SessionKey, sess); err != nil {
		m.logger.Error("Failed to persist session", "email", email, "error", err)
	}

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()

	m.logger.Info("Logged in", "email", sess.Email, "spreadsheetID", sess.Spreadsheet())
	return sess, nil
}

// Logout drops the session from memory and storage.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.store.Delete(store.SessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Current returns the active session.
func (m *Manager) Current() (models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return models.Session{}, false
	}
	sess := *m.current
	if sess.SpreadsheetID != nil {
		sess.SpreadsheetID = pointer.String(*sess.SpreadsheetID)
	}
	return sess, true
}

// Restore loads the persisted session and revalidates it. Any failure clears
// the stored copy and is returned.
func (m *Manager) Restore(ctx context.Context) (models.Session, error) {
	var saved models.Session
	if err := m.store.GetJSON(store.SessionKey, &saved); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("Discarding unreadable session", "error", err)
			_ = m.store.Delete(store.SessionKey)
		}
		return models.Session{}, err
	}

	sess, err := m.Login(ctx, saved.Email)
	if err != nil {
		m.logger.Warn("Saved session is no longer valid", "email", saved.Email, "error", err)
		_ = m.Logout()
		return models.Session{}, err
	}
	return sess, nil
}

func (m *Manager) validate(ctx context.Context, email string) (models.Session, error) {
	user, err := m.api.ValidateUser(ctx, email)
	if err != nil {
		var rejected *remote.RejectedError
		if errors.As(err, &rejected) {
			return models.Session{}, &UnauthorizedError{Message: rejected.Message}
		}
		return models.Session{}, fmt.Errorf("failed to validate user: %w", err)
	}

	sess := models.Session{
		Email:   email,
		Name:    strings.TrimSpace(user.Name),
		LoginAt: m.now(),
	}
	if sess.Name == "" {
		sess.Name = strings.SplitN(email, "@", 2)[0]
	}

	spreadsheetID := strings.TrimSpace(user.SpreadsheetID)
	if spreadsheetID == "" {
		spreadsheetID, err = m.api.GetOrCreateSpreadsheet(ctx, email)
		if err != nil {
			// The user is valid; sync just stays unavailable.
			m.logger.Warn("Failed to resolve spreadsheet", "email", email, "error", err)
		}
	}
	if spreadsheetID != "" {
		sess.SpreadsheetID = pointer.String(spreadsheetID)
	}
	return sess, nil
}
