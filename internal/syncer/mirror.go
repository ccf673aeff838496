package syncer

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"attendance/internal/models"
	"attendance/internal/remote"
)

// Push links an event created while offline and sends every guest the sheet
// does not hold yet.
func (s *Syncer) Push(ctx context.Context, eventID string) (models.Event, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid := s.spreadsheet()
	if !s.enabled || sid == "" {
		return models.Event{}, Outcome{}, ErrSyncUnavailable
	}
	ev, err := s.state.Event(eventID)
	if err != nil {
		return models.Event{}, Outcome{}, err
	}

	fresh := !ev.Linked()
	if fresh {
		created, err := s.api.CreateEvent(ctx, sid, remote.EventSpec{Name: ev.Name, Date: ev.Date, Columns: ev.Columns})
		if err != nil {
			s.logger.Warn("Failed to create event sheet during push.", "eventID", ev.ID, "error", err)
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
		if ev, err = s.state.Event(eventID); err != nil {
			return models.Event{}, Outcome{Attempted: true}, err
		}
	}

	var errs []error
	pushed := 0
	for _, g := range ev.Guests {
		if !fresh && !g.Pending() {
			continue
		}
		_, out, err := s.pushGuest(ctx, sid, ev, g)
		if err != nil {
			return ev, Outcome{Attempted: true, Err: errors.Join(errs...)}, err
		}
		if out.Err != nil {
			errs = append(errs, out.Err)
			continue
		}
		pushed++
	}
	s.logger.Info("Pushed event.", "eventID", ev.ID, "sheet", ev.Sheet(), "guests", pushed, "failures", len(errs))

	ev, err = s.state.Event(eventID)
	return ev, Outcome{Attempted: true, Err: errors.Join(errs...)}, err
}

// PullResult counts what a pull changed locally.
type PullResult struct {
	Created  int   `json:"created"`
	Updated  int   `json:"updated"`
	Unlinked int   `json:"unlinked"`
	Err      error `json:"-"`
}

// Pull refreshes local events from the spreadsheet. For linked events the
// sheet wins; sheets unknown locally become new events; linked events whose
// sheet disappeared are unlinked but kept. Per-sheet failures are collected
// in the result and the rest of the pull continues.
func (s *Syncer) Pull(ctx context.Context) (PullResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res PullResult
	sid := s.spreadsheet()
	if !s.enabled || sid == "" {
		return res, ErrSyncUnavailable
	}

	remoteEvents, err := s.api.GetEvents(ctx, sid)
	if err != nil {
		return res, err
	}

	bySheet := make(map[string]models.Event)
	for _, ev := range s.state.Events() {
		if ev.Sheet() != "" {
			bySheet[ev.Sheet()] = ev
		}
	}

	var errs []error
	seen := make(map[string]bool, len(remoteEvents))
	for _, re := range remoteEvents {
		if re.SheetName == "" {
			continue
		}
		seen[re.SheetName] = true

		rows, err := s.api.GetGuests(ctx, sid, re.SheetName)
		if err != nil {
			s.logger.Warn("Failed to fetch guests, skipping sheet.", "sheet", re.SheetName, "error", err)
			errs = append(errs, err)
			continue
		}

		local, exists := bySheet[re.SheetName]
		if !exists {
			name := re.Name
			if strings.TrimSpace(name) == "" {
				name = re.SheetName
			}
			local = s.state.CreateEvent(name, re.Date)
			res.Created++
		} else {
			if strings.TrimSpace(re.Name) != "" && re.Name != local.Name {
				if _, err := s.state.RenameEvent(local.ID, re.Name); err != nil {
					errs = append(errs, err)
				}
			}
			res.Updated++
		}

		columns := re.Columns
		if len(columns) == 0 {
			columns = local.Columns
		}
		guests := s.guestsFromRows(re.SheetName, columns, rows)
		if exists {
			guests = s.keepLocalOnly(local, guests)
		}
		if err := s.state.ReplaceGuests(local.ID, columns, guests); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.state.LinkEvent(local.ID, re.SheetName); err != nil {
			errs = append(errs, err)
		}
	}

	for sheet, ev := range bySheet {
		if seen[sheet] || !ev.Linked() {
			continue
		}
		if err := s.state.UnlinkEvent(ev.ID); err == nil {
			res.Unlinked++
			s.logger.Warn("Sheet no longer exists, event is local-only now.", "eventID", ev.ID, "sheet", sheet)
		}
	}

	s.persist()
	res.Err = errors.Join(errs...)
	s.logger.Info("Pulled from spreadsheet.", "created", res.Created, "updated", res.Updated, "unlinked", res.Unlinked)
	return res, nil
}

// keepLocalOnly appends the guests of local that never reached the sheet, so
// a pull only overwrites guests the remote side already holds.
func (s *Syncer) keepLocalOnly(local models.Event, pulled []models.Guest) []models.Guest {
	ids := make(map[string]bool, len(pulled))
	for _, g := range pulled {
		ids[g.ID] = true
	}
	kept := 0
	for _, g := range local.Guests {
		if !g.Pending() || ids[g.ID] {
			continue
		}
		pulled = append(pulled, g)
		kept++
	}
	if kept > 0 {
		s.logger.Info("Kept local-only guests during pull.", "eventID", local.ID, "guests", kept)
	}
	return pulled
}

// guestsFromRows converts sheet rows to guests. Rows without an id get a
// local one and are marked OnSheet so they are not pushed again; repeated
// ids keep the first row.
func (s *Syncer) guestsFromRows(sheet string, columns []string, rows []map[string]string) []models.Guest {
	guests := make([]models.Guest, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		g := models.Guest{
			ID:     strings.TrimSpace(row["id"]),
			Fields: make(map[string]string, len(columns)),
			Synced: true,
		}
		if g.ID == "" {
			g.ID = uuid.NewString()
			g.Synced = false
			g.OnSheet = true
		}
		if seen[g.ID] {
			s.logger.Warn("Skipping repeated guest id.", "sheet", sheet, "guestID", g.ID)
			continue
		}
		seen[g.ID] = true

		status, err := models.ParseStatus(strings.ToLower(strings.TrimSpace(row["status"])))
		if err != nil {
			s.logger.Debug("Unknown status in sheet, using pending.", "sheet", sheet, "guestID", g.ID, "status", row["status"])
			status = models.StatusPending
		}
		g.Status = status
		for _, c := range columns {
			g.Fields[c] = row[c]
		}
		if len(columns) == 0 {
			g.Name = row["name"]
			g.Phone = row["phone"]
			g.Email = row["email"]
		}
		guests = append(guests, g)
	}
	return guests
}

// Ping checks that the endpoint answers, regardless of the sync switch.
func (s *Syncer) Ping(ctx context.Context) error {
	return s.api.Ping(ctx)
}
