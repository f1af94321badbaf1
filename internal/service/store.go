package service

import (
	"context"
	"time"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/repository"
)

// Store opens transactions.  Every engine operation runs inside exactly
// one InTx call; fn's error rolls the transaction back.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the persistence context handed to the transactional core.  Lock*
// methods take an exclusive row lock held until the transaction ends.
// Lookups that miss return repository.ErrNotFound.
type Tx interface {
	GetEvent(ctx context.Context, orgID, eventID uint64) (*model.Event, error)
	LockEvent(ctx context.Context, orgID, eventID uint64) (*model.Event, error)
	InsertEvent(ctx context.Context, e *model.Event) error
	UpdateEvent(ctx context.Context, e *model.Event) error
	SetSeriesID(ctx context.Context, eventID, seriesID uint64) error
	MarkEventCancelled(ctx context.Context, eventID uint64, at time.Time) error
	DeleteEvent(ctx context.Context, eventID uint64) error
	ListSeriesEvents(ctx context.Context, orgID, seriesID uint64) ([]model.Event, error)
	ListEventsWithPending(ctx context.Context) ([]model.EventRef, error)

	EventCategories(ctx context.Context, eventID uint64) ([]uint64, error)
	SetEventCategories(ctx context.Context, eventID uint64, ids []uint64) error
	EventJahrgaenge(ctx context.Context, eventID uint64) ([]uint64, error)
	SetEventJahrgaenge(ctx context.Context, eventID uint64, ids []uint64) error

	ListTimeslots(ctx context.Context, eventID uint64) ([]model.Timeslot, error)
	LockTimeslot(ctx context.Context, eventID, timeslotID uint64) (*model.Timeslot, error)
	InsertTimeslot(ctx context.Context, ts *model.Timeslot) error
	UpdateTimeslot(ctx context.Context, ts *model.Timeslot) error
	DeleteTimeslot(ctx context.Context, timeslotID uint64) error

	CountBookings(ctx context.Context, scope model.Scope, status model.BookingStatus) (int, error)
	FindBooking(ctx context.Context, eventID, userID uint64) (*model.Booking, error)
	GetBooking(ctx context.Context, eventID, bookingID uint64) (*model.Booking, error)
	ListBookings(ctx context.Context, eventID uint64) ([]model.Booking, error)
	OldestPending(ctx context.Context, scope model.Scope) (*model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	DeleteBooking(ctx context.Context, bookingID uint64) error
	SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error
	SetAttendance(ctx context.Context, bookingID uint64, status model.AttendanceStatus) error

	UserInOrg(ctx context.Context, orgID, userID uint64) (bool, error)
	ListOrgAdmins(ctx context.Context, orgID uint64) ([]uint64, error)

	InsertEventPoints(ctx context.Context, p *model.EventPoints) (bool, error)
	GetEventPoints(ctx context.Context, konfiID, eventID uint64) (*model.EventPoints, error)
	DeleteEventPoints(ctx context.Context, id uint64) error
	AdjustProfilePoints(ctx context.Context, konfiID uint64, c model.PointCategory, delta int) error
	ProfileTotals(ctx context.Context, konfiID uint64) (model.PointTotals, error) // locks the profile row
	LedgerTotals(ctx context.Context, konfiID uint64) (model.PointTotals, error)
	SetProfileTotals(ctx context.Context, konfiID uint64, t model.PointTotals) error
	ListKonfiProfiles(ctx context.Context) ([]uint64, error)
}

// MySQLStore adapts the repository store to Store.
func MySQLStore(r *repository.Store) Store { return mysqlStore{r} }

type mysqlStore struct{ r *repository.Store }

func (s mysqlStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.r.InTx(ctx, func(tx *repository.Tx) error { return fn(tx) })
}

var _ Tx = (*repository.Tx)(nil)
