package state

import (
	"math"
	"sort"
	"strings"

	"attendance/internal/models"
)

// Stats summarizes the answers of an event.
type Stats struct {
	Total            int `json:"total"`
	Confirmed        int `json:"confirmed"`
	Declined         int `json:"declined"`
	Pending          int `json:"pending"`
	ConfirmedPercent int `json:"confirmedPercent"`
	DeclinedPercent  int `json:"declinedPercent"`
	PendingPercent   int `json:"pendingPercent"`
}

// Stats counts guests per status.
func (s *State) Stats(eventID string) (Stats, error) {
	ev, err := s.Event(eventID)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, g := range ev.Guests {
		switch g.Status {
		case models.StatusConfirmed:
			st.Confirmed++
		case models.StatusDeclined:
			st.Declined++
		default:
			st.Pending++
		}
	}
	st.Total = len(ev.Guests)
	st.ConfirmedPercent = percent(st.Confirmed, st.Total)
	st.DeclinedPercent = percent(st.Declined, st.Total)
	st.PendingPercent = percent(st.Pending, st.Total)
	return st, nil
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}

// Suggest returns guest names from every event that start with prefix, or
// have a word that does, for autocomplete. Prefixes shorter than minChars
// yield nothing.
func (s *State) Suggest(prefix string, minChars, limit int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || len([]rune(prefix)) < minChars {
		return nil
	}

	s.mu.RLock()
	seen := make(map[string]bool)
	var out []string
	for _, ev := range s.events {
		for _, g := range ev.Guests {
			name := strings.TrimSpace(g.DisplayName(ev.Columns))
			if name == "" || seen[name] {
				continue
			}
			if matchesPrefix(strings.ToLower(name), prefix) {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	s.mu.RUnlock()

	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func matchesPrefix(name, prefix string) bool {
	if strings.HasPrefix(name, prefix) {
		return true
	}
	for _, word := range strings.Fields(name) {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}
