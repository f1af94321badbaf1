package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/repository"
)

// BookingResult is returned to the caller of Book and AdminAddParticipant.
type BookingResult struct {
	ID         uint64              `json:"id"`
	Status     model.BookingStatus `json:"status"`
	TimeslotID *uint64             `json:"timeslot_id,omitempty"`
}

// placement describes one booking insert.  Desired is empty for the
// automatic confirmed/pending decision.
type placement struct {
	orgID      uint64
	eventID    uint64
	userID     uint64
	timeslotID *uint64
	desired    model.BookingStatus
	admin      bool
}

// Book registers the caller for an event, optionally in one timeslot.
// The booking is confirmed while seats are free and waitlisted after
// that, if the event has a waitlist with room left.
func (s *Service) Book(ctx context.Context, id model.Identity, eventID uint64, timeslotID *uint64) (*BookingResult, error) {
	var res *BookingResult
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		var fx []Effect
		var err error
		res, fx, err = book(ctx, tx, s.now(), placement{
			orgID:      id.OrganizationID,
			eventID:    eventID,
			userID:     id.UserID,
			timeslotID: timeslotID,
		})
		return fx, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AdminAddParticipant books another user of the organization.  It skips
// the registration time window but not cancellation.  An explicit
// confirmed status needs a free seat; explicit pending ignores the
// waitlist settings.
func (s *Service) AdminAddParticipant(ctx context.Context, id model.Identity, eventID, userID uint64, timeslotID *uint64, desired model.BookingStatus) (*BookingResult, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if desired != "" && !desired.Valid() {
		return nil, invalid("unknown booking status %q", desired)
	}
	var res *BookingResult
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		ok, err := tx.UserInOrg(ctx, id.OrganizationID, userID)
		if err != nil {
			return nil, storeErr(err, "user")
		}
		if !ok {
			return nil, notFound("user")
		}
		var fx []Effect
		res, fx, err = book(ctx, tx, s.now(), placement{
			orgID:      id.OrganizationID,
			eventID:    eventID,
			userID:     userID,
			timeslotID: timeslotID,
			desired:    desired,
			admin:      true,
		})
		return fx, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// book is the transactional core shared by Book and AdminAddParticipant.
func book(ctx context.Context, tx Tx, now time.Time, p placement) (*BookingResult, []Effect, error) {
	e, err := tx.LockEvent(ctx, p.orgID, p.eventID)
	if err != nil {
		return nil, nil, storeErr(err, "event")
	}
	timeslots, err := tx.ListTimeslots(ctx, e.ID)
	if err != nil {
		return nil, nil, storeErr(err, "timeslot")
	}
	scope, err := resolveScope(ctx, tx, e, timeslots, p.timeslotID)
	if err != nil {
		return nil, nil, err
	}
	occ, err := loadOccupancy(ctx, tx, e, timeslots, scope)
	if err != nil {
		return nil, nil, err
	}

	if p.admin {
		if e.Cancelled {
			return nil, nil, &RegistrationError{Reason: ReasonCancelled}
		}
	} else if w := Classify(windowInput(now, e, occ)); w.Status != WindowOpen {
		return nil, nil, &RegistrationError{Reason: w.Reason}
	}

	dup := ErrAlreadyBooked
	if p.admin {
		dup = ErrDuplicateBooking
	}
	_, err = tx.FindBooking(ctx, e.ID, p.userID)
	if err == nil {
		return nil, nil, dup
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, storeErr(err, "booking")
	}

	status, err := decideStatus(e, occ, p.desired)
	if err != nil {
		return nil, nil, err
	}

	b := &model.Booking{
		EventID:    e.ID,
		UserID:     p.userID,
		TimeslotID: scope.TimeslotID,
		Status:     status,
		CreatedAt:  now,
	}
	if err := tx.InsertBooking(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, dup
		}
		return nil, nil, storeErr(err, "booking")
	}
	metricsBookings.WithLabelValues(string(status)).Inc()

	var fx effects
	kind := NotifyBookingConfirmed
	if status == model.BookingPending {
		kind = NotifyBookingWaitlisted
	}
	fx.notify(p.userID, kind, map[string]any{
		"event_id":    e.ID,
		"event_name":  e.Name,
		"booking_id":  b.ID,
		"timeslot_id": b.TimeslotID,
		"status":      status,
	})
	fx.broadcast(e.OrganizationID, "events", "booking-created", map[string]any{
		"event_id":   e.ID,
		"booking_id": b.ID,
		"user_id":    p.userID,
		"status":     status,
	})
	return &BookingResult{ID: b.ID, Status: status, TimeslotID: b.TimeslotID}, fx, nil
}

// resolveScope checks the timeslot argument against the event and locks
// the timeslot row when one is given.
func resolveScope(ctx context.Context, tx Tx, e *model.Event, timeslots []model.Timeslot, timeslotID *uint64) (model.Scope, error) {
	if timeslotID == nil {
		if e.HasTimeslots && len(timeslots) > 0 {
			return model.Scope{}, invalid("timeslot_id is required for this event")
		}
		return model.EventScope(e.ID), nil
	}
	if !e.HasTimeslots {
		return model.Scope{}, notFound("timeslot")
	}
	if _, err := tx.LockTimeslot(ctx, e.ID, *timeslotID); err != nil {
		return model.Scope{}, storeErr(err, "timeslot")
	}
	return model.TimeslotScope(e.ID, *timeslotID), nil
}

// decideStatus picks the status of a new booking from the scope's
// occupancy.
func decideStatus(e *model.Event, occ Occupancy, desired model.BookingStatus) (model.BookingStatus, error) {
	switch desired {
	case model.BookingConfirmed:
		if !occ.HasSeat() {
			return "", fmt.Errorf("%w: no free seat", ErrCapacityExceeded)
		}
		return model.BookingConfirmed, nil
	case model.BookingPending:
		return model.BookingPending, nil
	}
	if occ.HasSeat() {
		return model.BookingConfirmed, nil
	}
	if !e.WaitlistEnabled {
		return "", &RegistrationError{Reason: ReasonFullNoWaitlist}
	}
	if occ.Pending >= e.MaxWaitlistSize {
		return "", &RegistrationError{Reason: ReasonWaitlistFull}
	}
	return model.BookingPending, nil
}

// CancelBooking removes the caller's own booking.  A freed confirmed
// seat goes to the oldest waitlisted booking of the same scope within
// the same transaction.
func (s *Service) CancelBooking(ctx context.Context, id model.Identity, eventID uint64) error {
	return s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := tx.LockEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		b, err := tx.FindBooking(ctx, e.ID, id.UserID)
		if err != nil {
			return nil, storeErr(err, "booking")
		}
		var fx effects
		if err := dropBooking(ctx, tx, &fx, e, b); err != nil {
			return nil, err
		}

		fx.notify(id.UserID, NotifyBookingCancelled, map[string]any{
			"event_id":   e.ID,
			"event_name": e.Name,
		})
		admins, err := tx.ListOrgAdmins(ctx, e.OrganizationID)
		if err != nil {
			return nil, storeErr(err, "user")
		}
		for _, adminID := range admins {
			fx.notify(adminID, NotifyBookingCancelled, map[string]any{
				"event_id":   e.ID,
				"event_name": e.Name,
				"user_id":    id.UserID,
			})
		}
		return fx, nil
	})
}

// RemoveParticipant deletes a booking on behalf of an organizer.  Points
// granted for the event are revoked as if the konfi was marked absent.
func (s *Service) RemoveParticipant(ctx context.Context, id model.Identity, eventID, bookingID uint64) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	return s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := tx.LockEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		b, err := tx.GetBooking(ctx, e.ID, bookingID)
		if err != nil {
			return nil, storeErr(err, "booking")
		}
		var fx effects
		if err := dropBooking(ctx, tx, &fx, e, b); err != nil {
			return nil, err
		}
		revoked, err := revokePoints(ctx, tx, e.ID, b.UserID)
		if err != nil {
			return nil, err
		}
		if revoked > 0 {
			fx.badgeCheck(b.UserID)
		}
		fx.notify(b.UserID, NotifyBookingCancelled, map[string]any{
			"event_id":         e.ID,
			"event_name":       e.Name,
			"removed_by_admin": true,
		})
		return fx, nil
	})
}

// dropBooking deletes b and, if it held a seat, promotes in its scope.
func dropBooking(ctx context.Context, tx Tx, fx *effects, e *model.Event, b *model.Booking) error {
	if err := tx.DeleteBooking(ctx, b.ID); err != nil {
		return storeErr(err, "booking")
	}
	if b.Status == model.BookingConfirmed {
		timeslots, err := tx.ListTimeslots(ctx, e.ID)
		if err != nil {
			return storeErr(err, "timeslot")
		}
		if _, err := promoteNext(ctx, tx, fx, e, timeslots, b.Scope()); err != nil {
			return err
		}
	}
	fx.broadcast(e.OrganizationID, "events", "booking-deleted", map[string]any{
		"event_id":   e.ID,
		"booking_id": b.ID,
		"user_id":    b.UserID,
	})
	return nil
}

// PromoteOrDemoteParticipant overrides a booking's status.  Promotion
// needs a free seat in the booking's scope; demotion frees the seat
// without promoting anybody else.
func (s *Service) PromoteOrDemoteParticipant(ctx context.Context, id model.Identity, eventID, bookingID uint64, status model.BookingStatus) (*model.Booking, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("unknown booking status %q", status)
	}
	var out *model.Booking
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := tx.LockEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		b, err := tx.GetBooking(ctx, e.ID, bookingID)
		if err != nil {
			return nil, storeErr(err, "booking")
		}
		out = b
		if b.Status == status {
			return nil, nil
		}
		if status == model.BookingConfirmed {
			timeslots, err := tx.ListTimeslots(ctx, e.ID)
			if err != nil {
				return nil, storeErr(err, "timeslot")
			}
			occ, err := loadOccupancy(ctx, tx, e, timeslots, b.Scope())
			if err != nil {
				return nil, err
			}
			if !occ.HasSeat() {
				return nil, fmt.Errorf("%w: no free seat", ErrCapacityExceeded)
			}
		}
		if err := tx.SetBookingStatus(ctx, b.ID, status); err != nil {
			return nil, storeErr(err, "booking")
		}
		b.Status = status

		var fx effects
		if status == model.BookingConfirmed {
			metricsPromotions.Inc()
			fx.notify(b.UserID, NotifyWaitlistPromoted, map[string]any{
				"event_id":   e.ID,
				"event_name": e.Name,
				"booking_id": b.ID,
			})
		}
		fx.broadcast(e.OrganizationID, "events", "booking-status", map[string]any{
			"event_id":   e.ID,
			"booking_id": b.ID,
			"status":     status,
		})
		return fx, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListBookings returns all bookings of an event for the organizer's
// participant list, confirmed first, each in FIFO order.
func (s *Service) ListBookings(ctx context.Context, id model.Identity, eventID uint64) ([]model.Booking, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	var out []model.Booking
	err := s.view(ctx, func(tx Tx) error {
		e, err := tx.GetEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return storeErr(err, "event")
		}
		out, err = tx.ListBookings(ctx, e.ID)
		return storeErr(err, "booking")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
