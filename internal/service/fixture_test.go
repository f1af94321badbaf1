package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/konfi-registration/internal/model"
)

const testOrg = 7

var (
	t0    = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	admin = model.Identity{UserID: 1, OrganizationID: testOrg, UserType: model.UserTypeAdmin, Role: "pastor"}
)

func konfi(id uint64) model.Identity {
	return model.Identity{UserID: id, OrganizationID: testOrg, UserType: model.UserTypeKonfi}
}

// recorder captures dispatched effects.
type recorder struct {
	mu        sync.Mutex
	notes     []NotifyEffect
	casts     []BroadcastEffect
	badges    []uint64
	notifyErr error
}

func (r *recorder) Notify(_ context.Context, userID uint64, kind NotificationKind, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, NotifyEffect{UserID: userID, Kind: kind, Payload: payload})
	return r.notifyErr
}

func (r *recorder) BroadcastLiveUpdate(_ context.Context, scope, topic, action string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casts = append(r.casts, BroadcastEffect{Scope: scope, Topic: topic, Action: action, Data: data})
	return nil
}

func (r *recorder) CheckAndAwardBadges(_ context.Context, konfiID uint64) (BadgeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.badges = append(r.badges, konfiID)
	return BadgeResult{}, nil
}

// kinds returns the notification kinds sent to userID, in order.
func (r *recorder) kinds(userID uint64) []NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []NotificationKind
	for _, n := range r.notes {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

func (r *recorder) count(kind NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	store *memStore
	rec   *recorder
	svc   *Service

	mu  sync.Mutex
	now time.Time
}

// newFixture returns a service whose clock advances one second per
// reading, so bookings get distinct creation times.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), rec: &recorder{}, now: t0}
	f.store.addUser(admin.UserID, testOrg, model.UserTypeAdmin)
	for id := uint64(10); id < 60; id++ {
		f.store.addUser(id, testOrg, model.UserTypeKonfi)
	}
	f.store.addUser(99, testOrg+1, model.UserTypeKonfi)
	f.svc = New(f.store, NewDispatcher(f.rec, f.rec, f.rec), WithClock(f.clock))
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func baseInput() EventInput {
	return EventInput{
		Name:            "Gottesdienst",
		Location:        "Kirche",
		StartAt:         t0.Add(7 * 24 * time.Hour),
		Points:          2,
		PointCategory:   model.PointCategoryGottesdienst,
		MaxParticipants: 2,
		WaitlistEnabled: true,
		MaxWaitlistSize: 2,
	}
}

func (f *fixture) event(t *testing.T, mut func(in *EventInput)) model.Event {
	t.Helper()
	in := baseInput()
	if mut != nil {
		mut(&in)
	}
	out, err := f.svc.CreateEvent(context.Background(), admin, in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func (f *fixture) book(t *testing.T, userID, eventID uint64, timeslotID *uint64) *BookingResult {
	t.Helper()
	res, err := f.svc.Book(context.Background(), konfi(userID), eventID, timeslotID)
	require.NoError(t, err)
	return res
}

// statusOf returns the booking status of userID, or "" without booking.
func (f *fixture) statusOf(eventID, userID uint64) model.BookingStatus {
	var st model.BookingStatus
	f.store.read(func(s *memState) {
		for _, b := range s.bookings {
			if b.EventID == eventID && b.UserID == userID {
				st = b.Status
			}
		}
	})
	return st
}

func (f *fixture) timeslotIDs(t *testing.T, eventID uint64) []uint64 {
	t.Helper()
	views, err := f.svc.ListTimeslots(context.Background(), admin, eventID)
	require.NoError(t, err)
	ids := make([]uint64, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

func (f *fixture) totals(konfiID uint64) model.PointTotals {
	var tot model.PointTotals
	f.store.read(func(s *memState) { tot = s.profiles[konfiID] })
	return tot
}

func (f *fixture) ledger(konfiID uint64) model.PointTotals {
	var tot model.PointTotals
	f.store.read(func(s *memState) {
		for _, p := range s.points {
			if p.KonfiID == konfiID {
				tot.Add(p.Category, p.Points)
			}
		}
	})
	return tot
}
