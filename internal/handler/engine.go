package handler

import (
	"context"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/service"
)

// Engine is the part of service.Service the HTTP layer calls.
type Engine interface {
	CreateEvent(ctx context.Context, id model.Identity, in service.EventInput) ([]model.Event, error)
	CreateSeries(ctx context.Context, id model.Identity, tpl service.EventInput, count int, interval service.Interval) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id model.Identity, eventID uint64, in service.EventInput) (*model.Event, error)
	DeleteEvent(ctx context.Context, id model.Identity, eventID uint64) error
	CancelEvent(ctx context.Context, id model.Identity, eventID uint64) (*model.Event, error)
	GetEventWithComputedStatus(ctx context.Context, id model.Identity, eventID uint64) (*service.EventView, error)
	ListTimeslots(ctx context.Context, id model.Identity, eventID uint64) ([]service.TimeslotView, error)
	ExportCalendar(ctx context.Context, id model.Identity, eventID uint64) (string, error)

	Book(ctx context.Context, id model.Identity, eventID uint64, timeslotID *uint64) (*service.BookingResult, error)
	CancelBooking(ctx context.Context, id model.Identity, eventID uint64) error
	AdminAddParticipant(ctx context.Context, id model.Identity, eventID, userID uint64, timeslotID *uint64, desired model.BookingStatus) (*service.BookingResult, error)
	RemoveParticipant(ctx context.Context, id model.Identity, eventID, bookingID uint64) error
	PromoteOrDemoteParticipant(ctx context.Context, id model.Identity, eventID, bookingID uint64, status model.BookingStatus) (*model.Booking, error)
	ListBookings(ctx context.Context, id model.Identity, eventID uint64) ([]model.Booking, error)
	MarkAttendance(ctx context.Context, id model.Identity, eventID, bookingID uint64, status model.AttendanceStatus) (*service.AttendanceResult, error)
}

var _ Engine = (*service.Service)(nil)
