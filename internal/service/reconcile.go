package service

import (
	"context"

	"github.com/iliyamo/konfi-registration/internal/model"
)

// ReconcileReport summarises one sweep.
type ReconcileReport struct {
	EventsScanned int `json:"events_scanned"`
	Promotions    int `json:"promotions"`
	ProfilesFixed int `json:"profiles_fixed"`
	Failures      int `json:"failures"`
}

// Reconcile repairs state that can only drift through crashes or manual
// database edits: waitlists that were not drained although seats are
// free, and profile totals that disagree with the points ledger.  Each
// event and each profile is handled in its own transaction; failures are
// logged and the sweep carries on.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport

	var refs []model.EventRef
	err := s.view(ctx, func(tx Tx) error {
		var err error
		refs, err = tx.ListEventsWithPending(ctx)
		return storeErr(err, "event")
	})
	if err != nil {
		return rep, err
	}
	for _, ref := range refs {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		rep.EventsScanned++
		n, err := s.fillRef(ctx, ref)
		if err != nil {
			rep.Failures++
			s.log.WithError(err).WithField("event", ref.EventID).Warn("reconcile: waitlist fill failed")
			continue
		}
		rep.Promotions += n
	}
	if rep.Promotions > 0 {
		metricsReconcileFixes.WithLabelValues("promotion").Add(float64(rep.Promotions))
	}

	var konfis []uint64
	err = s.view(ctx, func(tx Tx) error {
		var err error
		konfis, err = tx.ListKonfiProfiles(ctx)
		return storeErr(err, "konfi profile")
	})
	if err != nil {
		return rep, err
	}
	for _, konfiID := range konfis {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		fixed, err := s.fixTotals(ctx, konfiID)
		if err != nil {
			rep.Failures++
			s.log.WithError(err).WithField("konfi", konfiID).Warn("reconcile: totals check failed")
			continue
		}
		if fixed {
			rep.ProfilesFixed++
			metricsReconcileFixes.WithLabelValues("profile").Inc()
		}
	}
	return rep, nil
}

func (s *Service) fillRef(ctx context.Context, ref model.EventRef) (int, error) {
	var n int
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		e, err := tx.LockEvent(ctx, ref.OrganizationID, ref.EventID)
		if err != nil {
			return nil, storeErr(err, "event")
		}
		timeslots, err := tx.ListTimeslots(ctx, e.ID)
		if err != nil {
			return nil, storeErr(err, "timeslot")
		}
		var fx effects
		n, err = fillEvent(ctx, tx, &fx, e, timeslots)
		return fx, err
	})
	return n, err
}

// fixTotals overwrites a profile's totals with the ledger sums when they
// differ.  ProfileTotals locks the profile row, so a concurrent award
// either is visible in the ledger sums or waits for this transaction.
func (s *Service) fixTotals(ctx context.Context, konfiID uint64) (bool, error) {
	var fixed bool
	err := s.run(ctx, func(tx Tx) ([]Effect, error) {
		profile, err := tx.ProfileTotals(ctx, konfiID)
		if err != nil {
			return nil, storeErr(err, "konfi profile")
		}
		ledger, err := tx.LedgerTotals(ctx, konfiID)
		if err != nil {
			return nil, storeErr(err, "points")
		}
		if profile == ledger {
			return nil, nil
		}
		if err := tx.SetProfileTotals(ctx, konfiID, ledger); err != nil {
			return nil, storeErr(err, "konfi profile")
		}
		fixed = true
		s.log.WithField("konfi", konfiID).
			WithField("profile", profile).
			WithField("ledger", ledger).
			Info("reconcile: profile totals corrected")
		return nil, nil
	})
	return fixed, err
}
