package service

import (
	"context"

	"github.com/iliyamo/konfi-registration/internal/model"
)

// Unlimited is the capacity sentinel.  Zero doubles as "no cap", so an
// event with genuinely zero seats cannot be expressed.
const Unlimited = 0

// TotalCapacity returns the seat count of the whole event: the sum of
// its timeslot capacities when it uses timeslots and has at least one,
// otherwise the flat MaxParticipants value.
func TotalCapacity(e *model.Event, timeslots []model.Timeslot) int {
	if e.HasTimeslots && len(timeslots) > 0 {
		total := 0
		for _, ts := range timeslots {
			total += ts.MaxParticipants
		}
		return total
	}
	return e.MaxParticipants
}

// ScopeCapacity returns the capacity of one partition.  A timeslot scope
// uses the slot's own MaxParticipants.
func ScopeCapacity(e *model.Event, timeslots []model.Timeslot, scope model.Scope) (int, error) {
	if scope.TimeslotID == nil {
		return TotalCapacity(e, timeslots), nil
	}
	for _, ts := range timeslots {
		if ts.ID == *scope.TimeslotID {
			return ts.MaxParticipants, nil
		}
	}
	return 0, notFound("timeslot")
}

// Occupancy is the seat usage of one scope.
type Occupancy struct {
	Capacity  int `json:"capacity"`
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
}

// Unlimited reports whether the scope has no seat cap.
func (o Occupancy) Unlimited() bool { return o.Capacity == Unlimited }

// HasSeat reports whether one more booking can be confirmed.
func (o Occupancy) HasSeat() bool { return o.Unlimited() || o.Confirmed < o.Capacity }

// Available returns the number of free seats, or -1 when unlimited.
func (o Occupancy) Available() int {
	if o.Unlimited() {
		return -1
	}
	if free := o.Capacity - o.Confirmed; free > 0 {
		return free
	}
	return 0
}

// loadOccupancy counts confirmed and pending bookings of scope.  The
// caller holds the event lock when the result feeds a write.
func loadOccupancy(ctx context.Context, tx Tx, e *model.Event, timeslots []model.Timeslot, scope model.Scope) (Occupancy, error) {
	capacity, err := ScopeCapacity(e, timeslots, scope)
	if err != nil {
		return Occupancy{}, err
	}
	confirmed, err := tx.CountBookings(ctx, scope, model.BookingConfirmed)
	if err != nil {
		return Occupancy{}, storeErr(err, "booking")
	}
	pending, err := tx.CountBookings(ctx, scope, model.BookingPending)
	if err != nil {
		return Occupancy{}, storeErr(err, "booking")
	}
	return Occupancy{Capacity: capacity, Confirmed: confirmed, Pending: pending}, nil
}

// bookingScopes lists the partitions of an event: one per timeslot when
// the event uses them, otherwise the event itself.
func bookingScopes(e *model.Event, timeslots []model.Timeslot) []model.Scope {
	if e.HasTimeslots && len(timeslots) > 0 {
		out := make([]model.Scope, 0, len(timeslots))
		for _, ts := range timeslots {
			out = append(out, model.TimeslotScope(e.ID, ts.ID))
		}
		return out
	}
	return []model.Scope{model.EventScope(e.ID)}
}
