package model

import (
	"fmt"
	"time"
)

// BookingStatus is the seat state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingPending   BookingStatus = "pending"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	return s == BookingConfirmed || s == BookingPending
}

// AttendanceStatus records whether a konfi showed up.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid reports whether s is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// Booking is a user's registration for an event.  At most one booking
// exists per (event, user).  CreatedAt is the FIFO key of the waitlist.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – booked event.
//  UserID     – konfi who holds the booking.
//  TimeslotID – optional slot; scopes capacity and waitlist.
//  Status     – confirmed or pending (waitlisted).
//  Attendance – nil until an organizer marks present/absent.
//  CreatedAt  – creation timestamp.
type Booking struct {
	ID         uint64            `json:"id"`
	EventID    uint64            `json:"event_id"`
	UserID     uint64            `json:"user_id"`
	TimeslotID *uint64           `json:"timeslot_id,omitempty"`
	Status     BookingStatus     `json:"status"`
	Attendance *AttendanceStatus `json:"attendance_status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Scope returns the capacity partition the booking belongs to.
func (b *Booking) Scope() Scope {
	return Scope{EventID: b.EventID, TimeslotID: b.TimeslotID}
}

// Scope is a capacity partition: a whole event or one of its timeslots.
type Scope struct {
	EventID    uint64
	TimeslotID *uint64
}

// EventScope returns the event-wide scope.
func EventScope(eventID uint64) Scope { return Scope{EventID: eventID} }

// TimeslotScope returns the scope of a single timeslot.
func TimeslotScope(eventID, timeslotID uint64) Scope {
	return Scope{EventID: eventID, TimeslotID: &timeslotID}
}

// String renders the scope for logs, e.g. "event:4/timeslot:9".
func (s Scope) String() string {
	if s.TimeslotID == nil {
		return fmt.Sprintf("event:%d", s.EventID)
	}
	return fmt.Sprintf("event:%d/timeslot:%d", s.EventID, *s.TimeslotID)
}
