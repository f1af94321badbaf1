package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/konfi-registration/internal/model"
)

const eventColumns = `id, organization_id, name, description, event_date, event_end_time, location,
	points, point_type, max_participants, registration_opens_at, registration_closes_at,
	has_timeslots, waitlist_enabled, max_waitlist_size, is_series, series_id,
	cancelled, cancelled_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e                                   model.Event
		endAt, opensAt, closesAt, cancelled sql.NullTime
		seriesID                            sql.NullInt64
		category                            string
	)
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.Name, &e.Description, &e.StartAt, &endAt, &e.Location,
		&e.Points, &category, &e.MaxParticipants, &opensAt, &closesAt,
		&e.HasTimeslots, &e.WaitlistEnabled, &e.MaxWaitlistSize, &e.IsSeries, &seriesID,
		&e.Cancelled, &cancelled, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.PointCategory = model.PointCategory(category)
	e.EndAt = timePtr(endAt)
	e.RegistrationOpensAt = timePtr(opensAt)
	e.RegistrationClosesAt = timePtr(closesAt)
	e.SeriesID = idPtr(seriesID)
	e.CancelledAt = timePtr(cancelled)
	return &e, nil
}

// GetEvent loads an event of the organization without locking it.
func (t *Tx) GetEvent(ctx context.Context, orgID, eventID uint64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ? AND organization_id = ?`
	e, err := scanEvent(t.tx.QueryRowContext(ctx, q, eventID, orgID))
	if err != nil {
		return nil, classify(err, "get event")
	}
	return e, nil
}

// LockEvent loads an event with an exclusive row lock.  Every capacity
// decision of the event serializes on this lock.
func (t *Tx) LockEvent(ctx context.Context, orgID, eventID uint64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ? AND organization_id = ? FOR UPDATE`
	e, err := scanEvent(t.tx.QueryRowContext(ctx, q, eventID, orgID))
	if err != nil {
		return nil, classify(err, "lock event")
	}
	return e, nil
}

// InsertEvent stores e and fills in its ID.
func (t *Tx) InsertEvent(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (organization_id, name, description, event_date, event_end_time, location,
		points, point_type, max_participants, registration_opens_at, registration_closes_at,
		has_timeslots, waitlist_enabled, max_waitlist_size, is_series, series_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := t.tx.ExecContext(ctx, q,
		e.OrganizationID, e.Name, e.Description, e.StartAt.UTC(), nullTime(e.EndAt), e.Location,
		e.Points, string(e.PointCategory), e.MaxParticipants, nullTime(e.RegistrationOpensAt), nullTime(e.RegistrationClosesAt),
		e.HasTimeslots, e.WaitlistEnabled, e.MaxWaitlistSize, e.IsSeries, nullID(e.SeriesID), e.CreatedAt.UTC(),
	)
	if err != nil {
		return classify(err, "insert event")
	}
	e.ID, err = insertID(res, "insert event")
	return err
}

// UpdateEvent writes the editable columns of e.  Organization, series
// membership and cancellation are not touched.
func (t *Tx) UpdateEvent(ctx context.Context, e *model.Event) error {
	const q = `UPDATE events SET name = ?, description = ?, event_date = ?, event_end_time = ?, location = ?,
		points = ?, point_type = ?, max_participants = ?, registration_opens_at = ?, registration_closes_at = ?,
		has_timeslots = ?, waitlist_enabled = ?, max_waitlist_size = ?
		WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q,
		e.Name, e.Description, e.StartAt.UTC(), nullTime(e.EndAt), e.Location,
		e.Points, string(e.PointCategory), e.MaxParticipants, nullTime(e.RegistrationOpensAt), nullTime(e.RegistrationClosesAt),
		e.HasTimeslots, e.WaitlistEnabled, e.MaxWaitlistSize, e.ID,
	)
	if err != nil {
		return classify(err, "update event")
	}
	return mustAffect(res, "update event")
}

// SetSeriesID points an event at its series anchor.
func (t *Tx) SetSeriesID(ctx context.Context, eventID, seriesID uint64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE events SET series_id = ? WHERE id = ?`, seriesID, eventID)
	if err != nil {
		return classify(err, "set series")
	}
	return mustAffect(res, "set series")
}

// MarkEventCancelled sets the cancellation flag and timestamp.
func (t *Tx) MarkEventCancelled(ctx context.Context, eventID uint64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE events SET cancelled = 1, cancelled_at = ? WHERE id = ?`, at.UTC(), eventID)
	if err != nil {
		return classify(err, "cancel event")
	}
	return mustAffect(res, "cancel event")
}

// DeleteEvent removes an event with its timeslots and associations.
func (t *Tx) DeleteEvent(ctx context.Context, eventID uint64) error {
	for _, q := range []string{
		`DELETE FROM event_categories WHERE event_id = ?`,
		`DELETE FROM event_jahrgang_assignments WHERE event_id = ?`,
		`DELETE FROM event_timeslots WHERE event_id = ?`,
	} {
		if _, err := t.tx.ExecContext(ctx, q, eventID); err != nil {
			return classify(err, "delete event")
		}
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	if err != nil {
		return classify(err, "delete event")
	}
	return mustAffect(res, "delete event")
}

// ListSeriesEvents returns all events of a series ordered by date.
func (t *Tx) ListSeriesEvents(ctx context.Context, orgID, seriesID uint64) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE organization_id = ? AND series_id = ? ORDER BY event_date, id`
	rows, err := t.tx.QueryContext(ctx, q, orgID, seriesID)
	if err != nil {
		return nil, classify(err, "list series")
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, classify(err, "list series")
		}
		out = append(out, *e)
	}
	return out, classify(rows.Err(), "list series")
}

// ListEventsWithPending returns every non-cancelled event that has at
// least one waitlisted booking.
func (t *Tx) ListEventsWithPending(ctx context.Context) ([]model.EventRef, error) {
	const q = `SELECT DISTINCT e.organization_id, e.id
		FROM events e JOIN event_bookings b ON b.event_id = e.id
		WHERE b.status = 'pending' AND e.cancelled = 0
		ORDER BY e.id`
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err, "events with pending")
	}
	defer rows.Close()
	var out []model.EventRef
	for rows.Next() {
		var ref model.EventRef
		if err := rows.Scan(&ref.OrganizationID, &ref.EventID); err != nil {
			return nil, classify(err, "events with pending")
		}
		out = append(out, ref)
	}
	return out, classify(rows.Err(), "events with pending")
}

// EventCategories returns the category ids of an event.
func (t *Tx) EventCategories(ctx context.Context, eventID uint64) ([]uint64, error) {
	return t.listIDs(ctx, `SELECT category_id FROM event_categories WHERE event_id = ? ORDER BY category_id`, eventID)
}

// SetEventCategories replaces the category ids of an event.
func (t *Tx) SetEventCategories(ctx context.Context, eventID uint64, ids []uint64) error {
	return t.replaceIDs(ctx, "event_categories", "category_id", eventID, ids)
}

// EventJahrgaenge returns the jahrgang ids an event is assigned to.
func (t *Tx) EventJahrgaenge(ctx context.Context, eventID uint64) ([]uint64, error) {
	return t.listIDs(ctx, `SELECT jahrgang_id FROM event_jahrgang_assignments WHERE event_id = ? ORDER BY jahrgang_id`, eventID)
}

// SetEventJahrgaenge replaces the jahrgang assignments of an event.
func (t *Tx) SetEventJahrgaenge(ctx context.Context, eventID uint64, ids []uint64) error {
	return t.replaceIDs(ctx, "event_jahrgang_assignments", "jahrgang_id", eventID, ids)
}

func (t *Tx) listIDs(ctx context.Context, q string, args ...any) ([]uint64, error) {
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "list ids")
	}
	defer rows.Close()
	out := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "list ids")
		}
		out = append(out, id)
	}
	return out, classify(rows.Err(), "list ids")
}

// replaceIDs rewrites a (event_id, column) association table.  table and
// column are constants of this package, never user input.
func (t *Tx) replaceIDs(ctx context.Context, table, column string, eventID uint64, ids []uint64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE event_id = ?`, eventID); err != nil {
		return classify(err, "replace "+table)
	}
	if len(ids) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO ` + table + ` (event_id, ` + column + `) VALUES `
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, eventID, id)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return classify(err, "replace "+table)
	}
	return nil
}
