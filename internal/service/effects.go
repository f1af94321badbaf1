package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// NotificationKind names a message sent to a user.
type NotificationKind string

const (
	NotifyBookingConfirmed  NotificationKind = "booking-confirmed"
	NotifyBookingWaitlisted NotificationKind = "booking-waitlisted"
	NotifyBookingCancelled  NotificationKind = "booking-cancelled"
	NotifyWaitlistPromoted  NotificationKind = "waitlist-promoted"
	NotifyAttendanceResult  NotificationKind = "attendance-result"
	NotifyEventCancelled    NotificationKind = "event-cancelled"
)

// Notifier delivers a message to one user.  Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, kind NotificationKind, payload map[string]any) error
}

// Broadcaster fans a live update out to connected clients of scope.
type Broadcaster interface {
	BroadcastLiveUpdate(ctx context.Context, scope, topic, action string, data any) error
}

// BadgeResult is what the badge engine reports back.
type BadgeResult struct {
	NewlyAwarded int      `json:"newly_awarded_count"`
	Badges       []string `json:"badge_details"`
}

// BadgeChecker evaluates badge criteria for a konfi after a point change.
type BadgeChecker interface {
	CheckAndAwardBadges(ctx context.Context, konfiID uint64) (BadgeResult, error)
}

// Effect is a side effect requested by the transactional core.  Effects
// are only executed after the transaction committed.
type Effect interface {
	effectName() string
}

// NotifyEffect asks the Notifier to message a user.
type NotifyEffect struct {
	UserID  uint64
	Kind    NotificationKind
	Payload map[string]any
}

// BroadcastEffect asks the Broadcaster to publish a live update.
type BroadcastEffect struct {
	Scope  string
	Topic  string
	Action string
	Data   any
}

// BadgeCheckEffect asks the badge engine to re-evaluate a konfi.
type BadgeCheckEffect struct {
	KonfiID uint64
}

func (NotifyEffect) effectName() string     { return "notify" }
func (BroadcastEffect) effectName() string  { return "broadcast" }
func (BadgeCheckEffect) effectName() string { return "badge-check" }

// effects collects the side effects of one transaction.
type effects []Effect

func (fx *effects) notify(userID uint64, kind NotificationKind, payload map[string]any) {
	*fx = append(*fx, NotifyEffect{UserID: userID, Kind: kind, Payload: payload})
}

func (fx *effects) broadcast(orgID uint64, topic, action string, data any) {
	*fx = append(*fx, BroadcastEffect{Scope: OrgScope(orgID), Topic: topic, Action: action, Data: data})
}

func (fx *effects) badgeCheck(konfiID uint64) {
	*fx = append(*fx, BadgeCheckEffect{KonfiID: konfiID})
}

// OrgScope is the live update scope of an organization.
func OrgScope(orgID uint64) string { return fmt.Sprintf("org:%d", orgID) }

// Dispatcher executes effects after commit.  Failures are logged and
// counted; they never reach the caller of the engine operation.  Nil
// collaborators are skipped.
type Dispatcher struct {
	notifier    Notifier
	broadcaster Broadcaster
	badges      BadgeChecker
	timeout     time.Duration
	log         *logrus.Entry
}

// NewDispatcher wires the external collaborators.
func NewDispatcher(n Notifier, b Broadcaster, bc BadgeChecker) *Dispatcher {
	return &Dispatcher{
		notifier:    n,
		broadcaster: b,
		badges:      bc,
		timeout:     5 * time.Second,
		log:         logrus.WithField("pkg", "effects"),
	}
}

// Dispatch runs every effect in order.  The request context may already
// be cancelled once the response is written, so effects run on a
// detached context with their own timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, list []Effect) {
	if d == nil || len(list) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	for _, e := range list {
		if err := d.apply(ctx, e); err != nil {
			metricsEffectsFailed.WithLabelValues(e.effectName()).Inc()
			d.log.WithError(err).WithField("effect", e.effectName()).Warn("side effect failed")
		}
	}
}

func (d *Dispatcher) apply(ctx context.Context, e Effect) error {
	switch v := e.(type) {
	case NotifyEffect:
		if d.notifier == nil {
			return nil
		}
		return d.notifier.Notify(ctx, v.UserID, v.Kind, v.Payload)
	case BroadcastEffect:
		if d.broadcaster == nil {
			return nil
		}
		return d.broadcaster.BroadcastLiveUpdate(ctx, v.Scope, v.Topic, v.Action, v.Data)
	case BadgeCheckEffect:
		if d.badges == nil {
			return nil
		}
		res, err := d.badges.CheckAndAwardBadges(ctx, v.KonfiID)
		if err != nil {
			return err
		}
		if res.NewlyAwarded > 0 {
			d.log.WithField("konfi", v.KonfiID).WithField("badges", res.NewlyAwarded).Info("badges awarded")
		}
		return nil
	}
	return fmt.Errorf("unknown effect %T", e)
}
