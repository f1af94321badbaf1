package service

import (
	"time"

	"github.com/iliyamo/konfi-registration/internal/model"
)

// WindowStatus is the computed registration state of an event.  It is
// derived on every read and never stored.
type WindowStatus string

const (
	WindowCancelled WindowStatus = "cancelled"
	WindowUpcoming  WindowStatus = "upcoming"
	WindowClosed    WindowStatus = "closed"
	WindowOpen      WindowStatus = "open"
)

// WindowInput collects everything the classifier looks at.  Nil bounds
// leave that side of the window open.
type WindowInput struct {
	Now             time.Time
	OpensAt         *time.Time
	ClosesAt        *time.Time
	Confirmed       int
	Capacity        int
	WaitlistEnabled bool
	Pending         int
	MaxWaitlist     int
	Cancelled       bool
}

// Window is the classifier's verdict.  Reason is empty when Status is open.
type Window struct {
	Status WindowStatus `json:"status"`
	Reason Reason       `json:"reason,omitempty"`
}

// Classify evaluates, in order: cancellation, the opening time, the
// closing time, and finally whether both seats and waitlist are used up.
func Classify(in WindowInput) Window {
	if in.Cancelled {
		return Window{Status: WindowCancelled, Reason: ReasonCancelled}
	}
	if in.OpensAt != nil && in.Now.Before(*in.OpensAt) {
		return Window{Status: WindowUpcoming, Reason: ReasonNotYetOpen}
	}
	if in.ClosesAt != nil && in.Now.After(*in.ClosesAt) {
		return Window{Status: WindowClosed, Reason: ReasonClosed}
	}
	if in.Capacity != Unlimited && in.Confirmed >= in.Capacity {
		if !in.WaitlistEnabled {
			return Window{Status: WindowClosed, Reason: ReasonFullNoWaitlist}
		}
		if in.Pending >= in.MaxWaitlist {
			return Window{Status: WindowClosed, Reason: ReasonWaitlistFull}
		}
	}
	return Window{Status: WindowOpen}
}

func windowInput(now time.Time, e *model.Event, occ Occupancy) WindowInput {
	return WindowInput{
		Now:             now,
		OpensAt:         e.RegistrationOpensAt,
		ClosesAt:        e.RegistrationClosesAt,
		Confirmed:       occ.Confirmed,
		Capacity:        occ.Capacity,
		WaitlistEnabled: e.WaitlistEnabled,
		Pending:         occ.Pending,
		MaxWaitlist:     e.MaxWaitlistSize,
		Cancelled:       e.Cancelled,
	}
}
