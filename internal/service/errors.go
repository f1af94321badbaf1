package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/konfi-registration/internal/repository"
)

// Sentinel errors of the registration engine.  Handlers translate them
// into HTTP status codes; all of them work with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrAlreadyBooked       = errors.New("already booked")
	ErrDuplicateBooking    = errors.New("duplicate booking")
	ErrRegistrationNotOpen = errors.New("registration not open")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrWaitlistFull        = errors.New("waitlist full")
	ErrDeletionBlocked     = errors.New("deletion blocked")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Reason explains why registration is not open.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNotYetOpen     Reason = "not-yet-open"
	ReasonClosed         Reason = "closed"
	ReasonFullNoWaitlist Reason = "full-no-waitlist"
	ReasonWaitlistFull   Reason = "waitlist-full"
	ReasonCancelled      Reason = "cancelled"
)

// RegistrationError is returned when a booking is refused by the
// registration window.  It matches ErrRegistrationNotOpen and, for the
// two capacity reasons, ErrCapacityExceeded or ErrWaitlistFull.
type RegistrationError struct {
	Reason Reason
}

func (e *RegistrationError) Error() string {
	switch e.Reason {
	case ReasonNotYetOpen:
		return "registration is not open yet"
	case ReasonClosed:
		return "registration is closed"
	case ReasonFullNoWaitlist:
		return "event full, no waitlist"
	case ReasonWaitlistFull:
		return "event full, waitlist also full"
	case ReasonCancelled:
		return "event is cancelled"
	}
	return "registration not open"
}

func (e *RegistrationError) Is(target error) bool {
	switch target {
	case ErrRegistrationNotOpen:
		return true
	case ErrCapacityExceeded:
		return e.Reason == ReasonFullNoWaitlist
	case ErrWaitlistFull:
		return e.Reason == ReasonWaitlistFull
	}
	return false
}

// DeletionBlockedError reports the bookings that prevent a deletion.
type DeletionBlockedError struct {
	What      string
	Confirmed int
	Pending   int
}

func (e *DeletionBlockedError) Error() string {
	parts := make([]string, 0, 2)
	if e.Confirmed > 0 {
		parts = append(parts, fmt.Sprintf("%d confirmed bookings", e.Confirmed))
	}
	if e.Pending > 0 {
		parts = append(parts, fmt.Sprintf("%d waitlisted bookings", e.Pending))
	}
	what := e.What
	if what == "" {
		what = "event"
	}
	return fmt.Sprintf("cannot delete %s: %s", what, strings.Join(parts, ", "))
}

func (e *DeletionBlockedError) Is(target error) bool { return target == ErrDeletionBlocked }

// ValidationError carries a human readable message for bad input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// storeErr translates repository sentinels into engine errors.  what
// names the entity for not-found messages.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrLockConflict):
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	return err
}
