package service

import (
	"context"
	"errors"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/repository"
)

// promoteNext confirms the oldest pending booking of scope when the
// scope has a free seat.  It returns nil when nothing was promoted, so a
// second run on a resolved scope is a no-op.  The caller holds the event
// lock.
func promoteNext(ctx context.Context, tx Tx, fx *effects, e *model.Event, timeslots []model.Timeslot, scope model.Scope) (*model.Booking, error) {
	if e.Cancelled {
		return nil, nil
	}
	occ, err := loadOccupancy(ctx, tx, e, timeslots, scope)
	if err != nil {
		return nil, err
	}
	if occ.Pending == 0 || !occ.HasSeat() {
		return nil, nil
	}
	b, err := tx.OldestPending(ctx, scope)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err, "booking")
	}
	if err := tx.SetBookingStatus(ctx, b.ID, model.BookingConfirmed); err != nil {
		return nil, storeErr(err, "booking")
	}
	b.Status = model.BookingConfirmed
	metricsPromotions.Inc()

	fx.notify(b.UserID, NotifyWaitlistPromoted, map[string]any{
		"event_id":    e.ID,
		"event_name":  e.Name,
		"booking_id":  b.ID,
		"timeslot_id": b.TimeslotID,
	})
	fx.broadcast(e.OrganizationID, "events", "waitlist-promoted", map[string]any{
		"event_id":   e.ID,
		"booking_id": b.ID,
		"user_id":    b.UserID,
	})
	return b, nil
}

// fillScope promotes pending bookings until the scope is full or its
// waitlist is empty.
func fillScope(ctx context.Context, tx Tx, fx *effects, e *model.Event, timeslots []model.Timeslot, scope model.Scope) ([]*model.Booking, error) {
	var out []*model.Booking
	for {
		b, err := promoteNext(ctx, tx, fx, e, timeslots, scope)
		if err != nil {
			return out, err
		}
		if b == nil {
			return out, nil
		}
		out = append(out, b)
	}
}

// fillEvent runs fillScope on every partition of the event and returns
// the number of promotions.
func fillEvent(ctx context.Context, tx Tx, fx *effects, e *model.Event, timeslots []model.Timeslot) (int, error) {
	n := 0
	for _, scope := range bookingScopes(e, timeslots) {
		promoted, err := fillScope(ctx, tx, fx, e, timeslots, scope)
		n += len(promoted)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Fill promotes waitlisted bookings of one scope while seats are free.
// A nil timeslotID fills every partition of the event.
func (s *Service) Fill(ctx context.Context, id model.Identity, eventID uint64, timeslotID *uint64) (int, error) {
	if err := requireAdmin(id); err != nil {
		return 0, err
	}
	var n int
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		var fx effects
		e, err := tx.LockEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		timeslots, err := tx.ListTimeslots(ctx, e.ID)
		if err != nil {
			return nil, storeErr(err, "timeslot")
		}
		if timeslotID == nil {
			n, err = fillEvent(ctx, tx, &fx, e, timeslots)
			return fx, err
		}
		scope := model.TimeslotScope(e.ID, *timeslotID)
		if _, err := ScopeCapacity(e, timeslots, scope); err != nil {
			return nil, err
		}
		promoted, err := fillScope(ctx, tx, &fx, e, timeslots, scope)
		n = len(promoted)
		return fx, err
	})
	return n, err
}
