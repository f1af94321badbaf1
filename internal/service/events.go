package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/repository"
)

// EventInput is the editable part of an event.  Series is only honoured
// on create.
type EventInput struct {
	Name                 string
	Description          string
	Location             string
	StartAt              time.Time
	EndAt                *time.Time
	Points               int
	PointCategory        model.PointCategory
	MaxParticipants      int
	RegistrationOpensAt  *time.Time
	RegistrationClosesAt *time.Time
	HasTimeslots         bool
	WaitlistEnabled      bool
	MaxWaitlistSize      int
	Timeslots            []TimeslotInput
	CategoryIDs          []uint64
	JahrgangIDs          []uint64
	Series               *SeriesOptions
}

// TimeslotInput describes one timeslot.  ID is set when an existing slot
// is edited in place.
type TimeslotInput struct {
	ID              *uint64
	StartAt         time.Time
	EndAt           time.Time
	MaxParticipants int
}

// SeriesOptions expands a create request into several events.
type SeriesOptions struct {
	Count    int
	Interval Interval
}

// EventView is an event together with its computed registration state.
type EventView struct {
	model.Event
	Occupancy    Occupancy      `json:"occupancy"`
	Available    int            `json:"available_spots"`
	Registration Window         `json:"registration"`
	Timeslots    []TimeslotView `json:"timeslots"`
	CategoryIDs  []uint64       `json:"category_ids"`
	JahrgangIDs  []uint64       `json:"jahrgang_ids"`
	MyBooking    *model.Booking `json:"my_booking,omitempty"`
}

// TimeslotView is a timeslot with its own occupancy and window.
type TimeslotView struct {
	model.Timeslot
	Occupancy    Occupancy `json:"occupancy"`
	Available    int       `json:"available_spots"`
	Registration Window    `json:"registration"`
}

func (in *EventInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return invalid("name is required")
	case in.StartAt.IsZero():
		return invalid("event_date is required")
	case in.EndAt != nil && in.EndAt.Before(in.StartAt):
		return invalid("event_end_time must not be before event_date")
	case in.Points < 0:
		return invalid("points must not be negative")
	case !in.PointCategory.Valid():
		return invalid("point_type must be gottesdienst or gemeinde")
	case in.MaxParticipants < 0:
		return invalid("max_participants must not be negative")
	case in.MaxWaitlistSize < 0:
		return invalid("max_waitlist_size must not be negative")
	case in.RegistrationOpensAt != nil && in.RegistrationClosesAt != nil &&
		in.RegistrationClosesAt.Before(*in.RegistrationOpensAt):
		return invalid("registration_closes_at must not be before registration_opens_at")
	case !in.HasTimeslots && len(in.Timeslots) > 0:
		return invalid("timeslots given for an event without timeslots")
	}
	for _, ts := range in.Timeslots {
		if !ts.EndAt.After(ts.StartAt) {
			return invalid("timeslot end_time must be after start_time")
		}
		if ts.MaxParticipants < 0 {
			return invalid("timeslot max_participants must not be negative")
		}
	}
	return nil
}

func (in *EventInput) apply(e *model.Event) {
	e.Name = in.Name
	e.Description = in.Description
	e.Location = in.Location
	e.StartAt = in.StartAt.UTC()
	e.EndAt = utcPtr(in.EndAt)
	e.Points = in.Points
	e.PointCategory = in.PointCategory
	e.MaxParticipants = in.MaxParticipants
	e.RegistrationOpensAt = utcPtr(in.RegistrationOpensAt)
	e.RegistrationClosesAt = utcPtr(in.RegistrationClosesAt)
	e.HasTimeslots = in.HasTimeslots
	e.WaitlistEnabled = in.WaitlistEnabled
	e.MaxWaitlistSize = in.MaxWaitlistSize
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// CreateEvent creates one event, or a whole series when in.Series is
// set.  The first returned event is the series anchor.
func (s *Service) CreateEvent(ctx context.Context, id model.Identity, in EventInput) ([]model.Event, error) {
	if in.Series != nil {
		return s.CreateSeries(ctx, id, in, in.Series.Count, in.Series.Interval)
	}
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out []model.Event
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := insertEvent(ctx, tx, s.now(), id.OrganizationID, in, false, nil)
		if err != nil {
			return nil, err
		}
		out = []model.Event{*e}
		var fx effects
		fx.broadcast(e.OrganizationID, "events", "event-created", map[string]any{"event_id": e.ID})
		return fx, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSeries creates count events spaced by interval in a single
// transaction.  Each occurrence is named "<name> #<n>" and carries its
// own copy of timeslots and associations.
func (s *Service) CreateSeries(ctx context.Context, id model.Identity, tpl EventInput, count int, interval Interval) ([]model.Event, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if err := tpl.validate(); err != nil {
		return nil, err
	}
	dates, err := SeriesDates(tpl.StartAt, count, interval, s.loc)
	if err != nil {
		return nil, err
	}
	var out []model.Event
	err = s.run(ctx, func(tx Tx) ([]Effect, error) {
		out = make([]model.Event, 0, len(dates))
		var anchor *uint64
		for i, start := range dates {
			occ := occurrence(tpl, i+1, start, s.loc)
			e, err := insertEvent(ctx, tx, s.now(), id.OrganizationID, occ, true, anchor)
			if err != nil {
				return nil, err
			}
			if anchor == nil {
				if err := tx.SetSeriesID(ctx, e.ID, e.ID); err != nil {
					return nil, storeErr(err, "event")
				}
				anchorID := e.ID
				anchor = &anchorID
				e.SeriesID = anchor
			}
			out = append(out, *e)
		}
		var fx effects
		fx.broadcast(id.OrganizationID, "events", "series-created", map[string]any{
			"series_id": *anchor,
			"count":     len(out),
		})
		return fx, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertEvent(ctx context.Context, tx Tx, now time.Time, orgID uint64, in EventInput, series bool, seriesID *uint64) (*model.Event, error) {
	e := &model.Event{
		OrganizationID: orgID,
		IsSeries:       series,
		SeriesID:       seriesID,
		CreatedAt:      now,
	}
	in.apply(e)
	if err := tx.InsertEvent(ctx, e); err != nil {
		return nil, storeErr(err, "event")
	}
	for _, ts := range in.Timeslots {
		slot := &model.Timeslot{
			EventID:         e.ID,
			StartAt:         ts.StartAt.UTC(),
			EndAt:           ts.EndAt.UTC(),
			MaxParticipants: ts.MaxParticipants,
		}
		if err := tx.InsertTimeslot(ctx, slot); err != nil {
			return nil, storeErr(err, "timeslot")
		}
	}
	if err := tx.SetEventCategories(ctx, e.ID, in.CategoryIDs); err != nil {
		return nil, storeErr(err, "event")
	}
	if err := tx.SetEventJahrgaenge(ctx, e.ID, in.JahrgangIDs); err != nil {
		return nil, storeErr(err, "event")
	}
	return e, nil
}

// UpdateEvent edits an event and its timeslots.  Timeslots with an ID
// are edited in place, new ones inserted, and omitted ones deleted
// unless bookings reference them.  Freed capacity is handed to the
// waitlist before commit.
func (s *Service) UpdateEvent(ctx context.Context, id model.Identity, eventID uint64, in EventInput) (*model.Event, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if in.Series != nil {
		return nil, invalid("series options are only accepted when creating an event")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *model.Event
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := tx.LockEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		in.apply(e)
		if err := tx.UpdateEvent(ctx, e); err != nil {
			return nil, storeErr(err, "event")
		}
		if err := syncTimeslots(ctx, tx, e, in.Timeslots); err != nil {
			return nil, err
		}
		if in.CategoryIDs != nil {
			if err := tx.SetEventCategories(ctx, e.ID, in.CategoryIDs); err != nil {
				return nil, storeErr(err, "event")
			}
		}
		if in.JahrgangIDs != nil {
			if err := tx.SetEventJahrgaenge(ctx, e.ID, in.JahrgangIDs); err != nil {
				return nil, storeErr(err, "event")
			}
		}

		timeslots, err := tx.ListTimeslots(ctx, e.ID)
		if err != nil {
			return nil, storeErr(err, "timeslot")
		}
		var fx effects
		if _, err := fillEvent(ctx, tx, &fx, e, timeslots); err != nil {
			return nil, err
		}
		fx.broadcast(e.OrganizationID, "events", "event-updated", map[string]any{"event_id": e.ID})
		out = e
		return fx, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func syncTimeslots(ctx context.Context, tx Tx, e *model.Event, in []TimeslotInput) error {
	existing, err := tx.ListTimeslots(ctx, e.ID)
	if err != nil {
		return storeErr(err, "timeslot")
	}
	kept := make(map[uint64]bool, len(in))
	byID := make(map[uint64]model.Timeslot, len(existing))
	for _, ts := range existing {
		byID[ts.ID] = ts
	}
	for _, ts := range in {
		slot := model.Timeslot{
			EventID:         e.ID,
			StartAt:         ts.StartAt.UTC(),
			EndAt:           ts.EndAt.UTC(),
			MaxParticipants: ts.MaxParticipants,
		}
		if ts.ID == nil {
			if err := tx.InsertTimeslot(ctx, &slot); err != nil {
				return storeErr(err, "timeslot")
			}
			continue
		}
		if _, ok := byID[*ts.ID]; !ok {
			return notFound("timeslot")
		}
		slot.ID = *ts.ID
		kept[slot.ID] = true
		if err := tx.UpdateTimeslot(ctx, &slot); err != nil {
			return storeErr(err, "timeslot")
		}
	}
	for _, ts := range existing {
		if kept[ts.ID] {
			continue
		}
		scope := model.TimeslotScope(e.ID, ts.ID)
		confirmed, err := tx.CountBookings(ctx, scope, model.BookingConfirmed)
		if err != nil {
			return storeErr(err, "booking")
		}
		pending, err := tx.CountBookings(ctx, scope, model.BookingPending)
		if err != nil {
			return storeErr(err, "booking")
		}
		if confirmed+pending > 0 {
			return &DeletionBlockedError{What: "timeslot", Confirmed: confirmed, Pending: pending}
		}
		if err := tx.DeleteTimeslot(ctx, ts.ID); err != nil {
			return storeErr(err, "timeslot")
		}
	}
	return nil
}

// DeleteEvent removes an event that has no bookings left.
func (s *Service) DeleteEvent(ctx context.Context, id model.Identity, eventID uint64) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	return s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := tx.LockEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		scope := model.EventScope(e.ID)
		confirmed, err := tx.CountBookings(ctx, scope, model.BookingConfirmed)
		if err != nil {
			return nil, storeErr(err, "booking")
		}
		pending, err := tx.CountBookings(ctx, scope, model.BookingPending)
		if err != nil {
			return nil, storeErr(err, "booking")
		}
		if confirmed+pending > 0 {
			return nil, &DeletionBlockedError{What: "event", Confirmed: confirmed, Pending: pending}
		}
		if err := tx.DeleteEvent(ctx, e.ID); err != nil {
			return nil, storeErr(err, "event")
		}
		if e.IsSeriesAnchor() {
			if err := reanchorSeries(ctx, tx, e); err != nil {
				return nil, err
			}
		}
		var fx effects
		fx.broadcast(e.OrganizationID, "events", "event-deleted", map[string]any{"event_id": e.ID})
		return fx, nil
	})
}

// reanchorSeries moves the series of a deleted anchor onto its earliest
// remaining member.
func reanchorSeries(ctx context.Context, tx Tx, anchor *model.Event) error {
	rest, err := tx.ListSeriesEvents(ctx, anchor.OrganizationID, anchor.ID)
	if err != nil {
		return storeErr(err, "event")
	}
	if len(rest) == 0 {
		return nil
	}
	next := rest[0].ID
	for _, m := range rest {
		if err := tx.SetSeriesID(ctx, m.ID, next); err != nil {
			return storeErr(err, "event")
		}
	}
	return nil
}

// CancelEvent soft-cancels an event and tells every booked user.
// Cancelling an already cancelled event changes nothing.
func (s *Service) CancelEvent(ctx context.Context, id model.Identity, eventID uint64) (*model.Event, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	var out *model.Event
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := tx.LockEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		out = e
		if e.Cancelled {
			return nil, nil
		}
		now := s.now().UTC()
		if err := tx.MarkEventCancelled(ctx, e.ID, now); err != nil {
			return nil, storeErr(err, "event")
		}
		e.Cancelled = true
		e.CancelledAt = &now

		bookings, err := tx.ListBookings(ctx, e.ID)
		if err != nil {
			return nil, storeErr(err, "booking")
		}
		var fx effects
		for _, b := range bookings {
			fx.notify(b.UserID, NotifyEventCancelled, map[string]any{
				"event_id":   e.ID,
				"event_name": e.Name,
				"event_date": e.StartAt,
			})
		}
		fx.broadcast(e.OrganizationID, "events", "event-cancelled", map[string]any{"event_id": e.ID})
		return fx, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetEventWithComputedStatus loads an event and evaluates its
// registration window for the current time.  Konfis also see their own
// booking.
func (s *Service) GetEventWithComputedStatus(ctx context.Context, id model.Identity, eventID uint64) (*EventView, error) {
	var out *EventView
	err := s.view(ctx, func(tx Tx) error {
		e, err := tx.GetEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return storeErr(err, "event")
		}
		timeslots, err := tx.ListTimeslots(ctx, e.ID)
		if err != nil {
			return storeErr(err, "timeslot")
		}
		now := s.now()
		occ, err := loadOccupancy(ctx, tx, e, timeslots, model.EventScope(e.ID))
		if err != nil {
			return err
		}
		views, err := timeslotViews(ctx, tx, now, e, timeslots)
		if err != nil {
			return err
		}
		v := &EventView{
			Event:        *e,
			Occupancy:    occ,
			Available:    occ.Available(),
			Registration: Classify(windowInput(now, e, occ)),
			Timeslots:    views,
		}
		if v.CategoryIDs, err = tx.EventCategories(ctx, e.ID); err != nil {
			return storeErr(err, "event")
		}
		if v.JahrgangIDs, err = tx.EventJahrgaenge(ctx, e.ID); err != nil {
			return storeErr(err, "event")
		}
		b, err := tx.FindBooking(ctx, e.ID, id.UserID)
		switch {
		case err == nil:
			v.MyBooking = b
		case !errors.Is(err, repository.ErrNotFound):
			return storeErr(err, "booking")
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTimeslots returns the timeslots of an event with their occupancy.
func (s *Service) ListTimeslots(ctx context.Context, id model.Identity, eventID uint64) ([]TimeslotView, error) {
	var out []TimeslotView
	err := s.view(ctx, func(tx Tx) error {
		e, err := tx.GetEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return storeErr(err, "event")
		}
		timeslots, err := tx.ListTimeslots(ctx, e.ID)
		if err != nil {
			return storeErr(err, "timeslot")
		}
		out, err = timeslotViews(ctx, tx, s.now(), e, timeslots)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func timeslotViews(ctx context.Context, tx Tx, now time.Time, e *model.Event, timeslots []model.Timeslot) ([]TimeslotView, error) {
	out := make([]TimeslotView, 0, len(timeslots))
	for _, ts := range timeslots {
		occ, err := loadOccupancy(ctx, tx, e, timeslots, model.TimeslotScope(e.ID, ts.ID))
		if err != nil {
			return nil, err
		}
		out = append(out, TimeslotView{
			Timeslot:     ts,
			Occupancy:    occ,
			Available:    occ.Available(),
			Registration: Classify(windowInput(now, e, occ)),
		})
	}
	return out, nil
}
