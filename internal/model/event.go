package model

import "time"

// PointCategory names the bucket an event's points are credited to.
type PointCategory string

const (
	PointCategoryGottesdienst PointCategory = "gottesdienst"
	PointCategoryGemeinde     PointCategory = "gemeinde"
)

// Valid reports whether c is one of the known categories.
func (c PointCategory) Valid() bool {
	return c == PointCategoryGottesdienst || c == PointCategoryGemeinde
}

// Event is a bookable Konfi event.  Capacity is either the flat
// MaxParticipants value or, when HasTimeslots is set and timeslots
// exist, the sum of the timeslot capacities.  A capacity of zero means
// unlimited.
//
// Fields:
//  ID                   – primary key identifier.
//  OrganizationID       – tenant the event belongs to.
//  StartAt / EndAt      – event date and optional end.
//  Points               – points awarded for attendance (0 = none).
//  PointCategory        – gottesdienst or gemeinde.
//  MaxParticipants      – flat capacity, fallback when no timeslots exist.
//  RegistrationOpensAt  – optional lower bound of the booking window.
//  RegistrationClosesAt – optional upper bound of the booking window.
//  WaitlistEnabled      – whether full events accept pending bookings.
//  MaxWaitlistSize      – pending bookings allowed per scope.
//  IsSeries / SeriesID  – series membership; the anchor's SeriesID is its own ID.
//  Cancelled            – soft cancellation flag with CancelledAt.
type Event struct {
	ID                   uint64        `json:"id"`
	OrganizationID       uint64        `json:"organization_id"`
	Name                 string        `json:"name"`
	Description          string        `json:"description"`
	StartAt              time.Time     `json:"event_date"`
	EndAt                *time.Time    `json:"event_end_time,omitempty"`
	Location             string        `json:"location"`
	Points               int           `json:"points"`
	PointCategory        PointCategory `json:"point_type"`
	MaxParticipants      int           `json:"max_participants"`
	RegistrationOpensAt  *time.Time    `json:"registration_opens_at,omitempty"`
	RegistrationClosesAt *time.Time    `json:"registration_closes_at,omitempty"`
	HasTimeslots         bool          `json:"has_timeslots"`
	WaitlistEnabled      bool          `json:"waitlist_enabled"`
	MaxWaitlistSize      int           `json:"max_waitlist_size"`
	IsSeries             bool          `json:"is_series"`
	SeriesID             *uint64       `json:"series_id,omitempty"`
	Cancelled            bool          `json:"cancelled"`
	CancelledAt          *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
}

// IsSeriesAnchor reports whether the event is the first event of its series.
func (e *Event) IsSeriesAnchor() bool {
	return e.SeriesID != nil && *e.SeriesID == e.ID
}

// EventRef identifies an event together with its tenant.  It is used by
// background jobs that work across organizations.
type EventRef struct {
	OrganizationID uint64
	EventID        uint64
}
