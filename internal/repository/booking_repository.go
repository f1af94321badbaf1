package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/konfi-registration/internal/model"
)

const bookingColumns = `id, event_id, user_id, timeslot_id, status, attendance_status, created_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b          model.Booking
		timeslotID sql.NullInt64
		status     string
		attendance sql.NullString
	)
	if err := row.Scan(&b.ID, &b.EventID, &b.UserID, &timeslotID, &status, &attendance, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.TimeslotID = idPtr(timeslotID)
	b.Status = model.BookingStatus(status)
	if attendance.Valid {
		a := model.AttendanceStatus(attendance.String)
		b.Attendance = &a
	}
	return &b, nil
}

// scopeFilter returns the WHERE fragment selecting the bookings of scope.
// The event-wide scope includes the bookings of every timeslot.
func scopeFilter(scope model.Scope) (string, []any) {
	if scope.TimeslotID == nil {
		return `event_id = ?`, []any{scope.EventID}
	}
	return `event_id = ? AND timeslot_id = ?`, []any{scope.EventID, *scope.TimeslotID}
}

// CountBookings counts bookings of one status inside scope.
func (t *Tx) CountBookings(ctx context.Context, scope model.Scope, status model.BookingStatus) (int, error) {
	where, args := scopeFilter(scope)
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_bookings WHERE `+where+` AND status = ?`,
		append(args, string(status))...).Scan(&n)
	if err != nil {
		return 0, classify(err, "count bookings")
	}
	return n, nil
}

// FindBooking returns the booking of user for event.
func (t *Tx) FindBooking(ctx context.Context, eventID, userID uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM event_bookings WHERE event_id = ? AND user_id = ?`
	b, err := scanBooking(t.tx.QueryRowContext(ctx, q, eventID, userID))
	if err != nil {
		return nil, classify(err, "find booking")
	}
	return b, nil
}

// GetBooking returns a booking by id, restricted to the event.
func (t *Tx) GetBooking(ctx context.Context, eventID, bookingID uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM event_bookings WHERE id = ? AND event_id = ?`
	b, err := scanBooking(t.tx.QueryRowContext(ctx, q, bookingID, eventID))
	if err != nil {
		return nil, classify(err, "get booking")
	}
	return b, nil
}

// ListBookings returns the bookings of an event, confirmed before
// pending, each group in FIFO order.
func (t *Tx) ListBookings(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM event_bookings WHERE event_id = ?
		ORDER BY status = 'pending', created_at, id`
	rows, err := t.tx.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, classify(err, "list bookings")
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, classify(err, "list bookings")
		}
		out = append(out, *b)
	}
	return out, classify(rows.Err(), "list bookings")
}

// OldestPending returns the waitlist head of scope and locks it.
func (t *Tx) OldestPending(ctx context.Context, scope model.Scope) (*model.Booking, error) {
	where, args := scopeFilter(scope)
	q := `SELECT ` + bookingColumns + ` FROM event_bookings WHERE ` + where + ` AND status = 'pending'
		ORDER BY created_at, id LIMIT 1 FOR UPDATE`
	b, err := scanBooking(t.tx.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, classify(err, "oldest pending")
	}
	return b, nil
}

// InsertBooking stores b.  A second booking for the same (event, user)
// fails with ErrDuplicate.
func (t *Tx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO event_bookings (event_id, user_id, timeslot_id, status, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, b.EventID, b.UserID, nullID(b.TimeslotID), string(b.Status), b.CreatedAt.UTC())
	if err != nil {
		return classify(err, "insert booking")
	}
	b.ID, err = insertID(res, "insert booking")
	return err
}

// DeleteBooking removes a booking.
func (t *Tx) DeleteBooking(ctx context.Context, bookingID uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM event_bookings WHERE id = ?`, bookingID)
	if err != nil {
		return classify(err, "delete booking")
	}
	return mustAffect(res, "delete booking")
}

// SetBookingStatus flips a booking between confirmed and pending.
func (t *Tx) SetBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE event_bookings SET status = ? WHERE id = ?`, string(status), bookingID)
	if err != nil {
		return classify(err, "set booking status")
	}
	return mustAffect(res, "set booking status")
}

// SetAttendance records present or absent.
func (t *Tx) SetAttendance(ctx context.Context, bookingID uint64, status model.AttendanceStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE event_bookings SET attendance_status = ? WHERE id = ?`, string(status), bookingID)
	if err != nil {
		return classify(err, "set attendance")
	}
	return mustAffect(res, "set attendance")
}
