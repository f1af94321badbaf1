package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/repository"
)

// AttendanceResult reports the ledger change of one attendance mark.
type AttendanceResult struct {
	BookingID     uint64                 `json:"booking_id"`
	Status        model.AttendanceStatus `json:"attendance_status"`
	PointsAwarded int                    `json:"points_awarded"`
	PointsRevoked int                    `json:"points_revoked"`
}

// MarkAttendance records present/absent for a confirmed booking and keeps
// the points ledger in step.  Marking present twice awards once; marking
// absent takes back exactly what the ledger recorded.
func (s *Service) MarkAttendance(ctx context.Context, id model.Identity, eventID, bookingID uint64, status model.AttendanceStatus) (*AttendanceResult, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("unknown attendance status %q", status)
	}
	var res *AttendanceResult
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		var fx []Effect
		var err error
		res, fx, err = markAttendance(ctx, tx, s.now(), id.OrganizationID, eventID, bookingID, status)
		return fx, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func markAttendance(ctx context.Context, tx Tx, now time.Time, orgID, eventID, bookingID uint64, status model.AttendanceStatus) (*AttendanceResult, []Effect, error) {
	e, err := tx.GetEvent(ctx, orgID, eventID)
	if err != nil {
		return nil, nil, storeErr(err, "event")
	}
	b, err := tx.GetBooking(ctx, e.ID, bookingID)
	if err != nil {
		return nil, nil, storeErr(err, "booking")
	}
	if b.Status != model.BookingConfirmed {
		return nil, nil, invalid("only confirmed bookings can be marked")
	}
	if err := tx.SetAttendance(ctx, b.ID, status); err != nil {
		return nil, nil, storeErr(err, "booking")
	}

	res := &AttendanceResult{BookingID: b.ID, Status: status}
	var fx effects
	switch status {
	case model.AttendancePresent:
		res.PointsAwarded, err = awardPoints(ctx, tx, now, e, b.UserID)
	case model.AttendanceAbsent:
		res.PointsRevoked, err = revokePoints(ctx, tx, e.ID, b.UserID)
	}
	if err != nil {
		return nil, nil, err
	}

	fx.notify(b.UserID, NotifyAttendanceResult, map[string]any{
		"event_id":       e.ID,
		"event_name":     e.Name,
		"status":         status,
		"points_awarded": res.PointsAwarded,
		"points_revoked": res.PointsRevoked,
		"point_type":     e.PointCategory,
	})
	if res.PointsAwarded > 0 || res.PointsRevoked > 0 {
		fx.badgeCheck(b.UserID)
	}
	fx.broadcast(e.OrganizationID, "events", "attendance", map[string]any{
		"event_id":   e.ID,
		"booking_id": b.ID,
		"status":     status,
	})
	return res, fx, nil
}

// awardPoints inserts the ledger row for (konfi, event).  Only a real
// insert touches the profile total, so repeated calls award once.
func awardPoints(ctx context.Context, tx Tx, now time.Time, e *model.Event, konfiID uint64) (int, error) {
	if e.Points <= 0 {
		return 0, nil
	}
	inserted, err := tx.InsertEventPoints(ctx, &model.EventPoints{
		KonfiID:        konfiID,
		EventID:        e.ID,
		OrganizationID: e.OrganizationID,
		Points:         e.Points,
		Category:       e.PointCategory,
		AwardedAt:      now,
	})
	if err != nil {
		return 0, storeErr(err, "points")
	}
	if !inserted {
		return 0, nil
	}
	if err := tx.AdjustProfilePoints(ctx, konfiID, e.PointCategory, e.Points); err != nil {
		return 0, storeErr(err, "konfi profile")
	}
	metricsPointsAwarded.Add(float64(e.Points))
	return e.Points, nil
}

// revokePoints deletes the ledger row for (konfi, event), if any, and
// subtracts the recorded amount from the recorded category.
func revokePoints(ctx context.Context, tx Tx, eventID, konfiID uint64) (int, error) {
	p, err := tx.GetEventPoints(ctx, konfiID, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr(err, "points")
	}
	if err := tx.DeleteEventPoints(ctx, p.ID); err != nil {
		return 0, storeErr(err, "points")
	}
	if err := tx.AdjustProfilePoints(ctx, konfiID, p.Category, -p.Points); err != nil {
		return 0, storeErr(err, "konfi profile")
	}
	metricsPointsRevoked.Add(float64(p.Points))
	return p.Points, nil
}
