package templates

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samborkent/uuidv7"

	"attendance/internal/models"
	"attendance/internal/store"
)

var (
	ErrNotFound     = errors.New("template not found")
	ErrEmptyColumns = errors.New("template needs at least one column")
)

// Preset is a built-in column layout offered to new users.
type Preset struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

var presets = []Preset{
	{Name: "Festa/Aniversário", Columns: []string{"Nome", "Telefone", "Acompanhantes", "Observações"}},
	{Name: "Casamento", Columns: []string{"Nome", "Telefone", "Email", "Acompanhante", "Restrição Alimentar", "Mesa"}},
	{Name: "Evento Corporativo", Columns: []string{"Nome", "Email", "Empresa", "Cargo", "Telefone"}},
	{Name: "Workshop/Curso", Columns: []string{"Nome", "Email", "Telefone", "Área de Interesse", "Nível"}},
	{Name: "Formatura", Columns: []string{"Nome", "Telefone", "Curso", "Convites", "Mesa"}},
}

// Presets returns copies of the built-in layouts.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = Preset{Name: p.Name, Columns: append([]string(nil), p.Columns...)}
	}
	return out
}

// Library keeps saved column templates in the store.
type Library struct {
	mu     sync.Mutex
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewLibrary creates a Library backed by st.
func NewLibrary(logger *slog.Logger, st *store.Store) *Library {
	return &Library{
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuidv7.New().String() },
	}
}

// Save stores a new template. An empty name gets a dated default.
func (l *Library) Save(name string, columns []string) (models.Template, error) {
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return models.Template{}, ErrEmptyColumns
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Template " + now.Format("2006-01-02")
	}
	t := models.Template{
		ID:        l.newID(),
		Name:      name,
		Columns:   cols,
		CreatedAt: now,
	}

	all := l.load()
	all = append(all, t)
	if err := l.store.PutJSON(store.TemplatesKey, all); err != nil {
		return models.Template{}, err
	}
	l.logger.Info("Saved column template", "id", t.ID, "name", t.Name, "columns", len(cols))
	return t, nil
}

// List returns every saved template in creation order.
func (l *Library) List() []models.Template {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Use returns the template and counts the use.
func (l *Library) Use(id string) (models.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.load()
	for i := range all {
		if all[i].ID != id {
			continue
		}
		all[i].UsageCount++
		if err := l.store.PutJSON(store.TemplatesKey, all); err != nil {
			return models.Template{}, err
		}
		return all[i], nil
	}
	return models.Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes a template and reports whether it existed.
func (l *Library) Delete(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.load()
	kept := all[:0]
	for _, t := range all {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(all) {
		return false, nil
	}
	if err := l.store.PutJSON(store.TemplatesKey, kept); err != nil {
		return false, err
	}
	return true, nil
}

// load treats missing or unreadable data as an empty library.
func (l *Library) load() []models.Template {
	var all []models.Template
	if err := l.store.GetJSON(store.TemplatesKey, &all); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.logger.Warn("Ignoring unreadable templates", "error", err)
		}
		return []models.Template{}
	}
	if all == nil {
		all = []models.Template{}
	}
	return all
}
