package repository

import (
	"context"

	"github.com/iliyamo/konfi-registration/internal/model"
)

// ListTimeslots returns the timeslots of an event in chronological order.
func (t *Tx) ListTimeslots(ctx context.Context, eventID uint64) ([]model.Timeslot, error) {
	const q = `SELECT id, event_id, start_time, end_time, max_participants
		FROM event_timeslots WHERE event_id = ? ORDER BY start_time, id`
	rows, err := t.tx.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, classify(err, "list timeslots")
	}
	defer rows.Close()
	var out []model.Timeslot
	for rows.Next() {
		var ts model.Timeslot
		if err := rows.Scan(&ts.ID, &ts.EventID, &ts.StartAt, &ts.EndAt, &ts.MaxParticipants); err != nil {
			return nil, classify(err, "list timeslots")
		}
		out = append(out, ts)
	}
	return out, classify(rows.Err(), "list timeslots")
}

// LockTimeslot loads one timeslot of the event FOR UPDATE.
func (t *Tx) LockTimeslot(ctx context.Context, eventID, timeslotID uint64) (*model.Timeslot, error) {
	const q = `SELECT id, event_id, start_time, end_time, max_participants
		FROM event_timeslots WHERE id = ? AND event_id = ? FOR UPDATE`
	var ts model.Timeslot
	err := t.tx.QueryRowContext(ctx, q, timeslotID, eventID).
		Scan(&ts.ID, &ts.EventID, &ts.StartAt, &ts.EndAt, &ts.MaxParticipants)
	if err != nil {
		return nil, classify(err, "lock timeslot")
	}
	return &ts, nil
}

// InsertTimeslot stores ts and fills in its ID.
func (t *Tx) InsertTimeslot(ctx context.Context, ts *model.Timeslot) error {
	const q = `INSERT INTO event_timeslots (event_id, start_time, end_time, max_participants) VALUES (?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, ts.EventID, ts.StartAt.UTC(), ts.EndAt.UTC(), ts.MaxParticipants)
	if err != nil {
		return classify(err, "insert timeslot")
	}
	ts.ID, err = insertID(res, "insert timeslot")
	return err
}

// UpdateTimeslot edits a timeslot in place; bookings keep pointing at it.
func (t *Tx) UpdateTimeslot(ctx context.Context, ts *model.Timeslot) error {
	const q = `UPDATE event_timeslots SET start_time = ?, end_time = ?, max_participants = ? WHERE id = ? AND event_id = ?`
	res, err := t.tx.ExecContext(ctx, q, ts.StartAt.UTC(), ts.EndAt.UTC(), ts.MaxParticipants, ts.ID, ts.EventID)
	if err != nil {
		return classify(err, "update timeslot")
	}
	return mustAffect(res, "update timeslot")
}

// DeleteTimeslot removes a timeslot.  The caller checks for bookings.
func (t *Tx) DeleteTimeslot(ctx context.Context, timeslotID uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM event_timeslots WHERE id = ?`, timeslotID)
	if err != nil {
		return classify(err, "delete timeslot")
	}
	return mustAffect(res, "delete timeslot")
}
