package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchContinuesAfterFailure(t *testing.T) {
	rec := &recorder{notifyErr: errors.New("smtp down")}
	d := NewDispatcher(rec, rec, rec)

	var fx effects
	fx.notify(10, NotifyBookingConfirmed, nil)
	fx.broadcast(7, "events", "booking-created", map[string]any{"event_id": 1})
	fx.badgeCheck(10)
	d.Dispatch(context.Background(), fx)

	assert.Len(t, rec.notes, 1)
	assert.Len(t, rec.casts, 1)
	assert.Equal(t, "org:7", rec.casts[0].Scope)
	assert.Equal(t, []uint64{10}, rec.badges)
}

func TestDispatchSkipsMissingCollaborators(t *testing.T) {
	var fx effects
	fx.notify(10, NotifyBookingConfirmed, nil)
	fx.badgeCheck(10)

	assert.NotPanics(t, func() { NewDispatcher(nil, nil, nil).Dispatch(context.Background(), fx) })
	var d *Dispatcher
	assert.NotPanics(t, func() { d.Dispatch(context.Background(), fx) })
}

func TestDispatchRunsAfterRequestCancel(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, rec, rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var fx effects
	fx.notify(10, NotifyBookingCancelled, nil)
	d.Dispatch(ctx, fx)
	assert.Len(t, rec.notes, 1)
}

func TestEffectsOnlyAfterCommit(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, func(in *EventInput) {
		in.MaxParticipants = 1
		in.WaitlistEnabled = false
	})
	f.book(t, 10, e.ID, nil)
	before := len(f.rec.casts)

	_, err := f.svc.Book(context.Background(), konfi(11), e.ID, nil)
	assert.Error(t, err)
	assert.Len(t, f.rec.casts, before)
	assert.Empty(t, f.rec.kinds(11))
}
