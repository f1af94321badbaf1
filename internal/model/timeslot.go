package model

import "time"

// Timeslot partitions an event's capacity.  Bookings that carry a
// timeslot are counted and waitlisted inside that slot only.
type Timeslot struct {
	ID              uint64    `json:"id"`
	EventID         uint64    `json:"event_id"`
	StartAt         time.Time `json:"start_time"`
	EndAt           time.Time `json:"end_time"`
	MaxParticipants int       `json:"max_participants"`
}
