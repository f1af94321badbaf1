package main

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/konfi-registration/internal/service"
)

// startReconciler runs the reconciliation sweep on schedule.  An empty schedule
// disables the sweep and returns a nil scheduler.  Overlapping runs are
// skipped.
func startReconciler(ctx context.Context, svc *service.Service, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	log := logrus.WithField("pkg", "reconcile")
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(log)),
	))
	_, err := c.AddFunc(schedule, func() {
		rep, err := svc.Reconcile(ctx)
		if err != nil {
			log.WithError(err).Error("sweep aborted")
			return
		}
		log.WithFields(logrus.Fields{
			"events":     rep.EventsScanned,
			"promotions": rep.Promotions,
			"profiles":   rep.ProfilesFixed,
			"failures":   rep.Failures,
		}).Info("sweep finished")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
