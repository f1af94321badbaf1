package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsBookings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "konfi_bookings_total",
	Help: "Bookings created, by resulting status",
}, []string{"status"})

var metricsPromotions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "konfi_waitlist_promotions_total",
	Help: "Pending bookings promoted to confirmed",
})

var metricsPointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "konfi_points_awarded_total",
	Help: "Points granted through attendance",
})

var metricsPointsRevoked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "konfi_points_revoked_total",
	Help: "Points taken back through attendance changes",
})

var metricsEffectsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "konfi_effects_failed_total",
	Help: "Side effects that failed after commit",
}, []string{"effect"})

var metricsReconcileFixes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "konfi_reconcile_fixes_total",
	Help: "Inconsistencies repaired by the reconciliation sweep",
}, []string{"kind"})
