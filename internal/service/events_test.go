package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/konfi-registration/internal/model"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func TestSeriesDatesWeekly(t *testing.T) {
	loc := berlin(t)
	start := time.Date(2025, 1, 6, 18, 0, 0, 0, loc)

	dates, err := SeriesDates(start, 4, IntervalWeek, loc)
	require.NoError(t, err)
	require.Len(t, dates, 4)
	for i, want := range []int{6, 13, 20, 27} {
		got := dates[i].In(loc)
		assert.Equal(t, time.January, got.Month())
		assert.Equal(t, want, got.Day())
		assert.Equal(t, 18, got.Hour())
	}
}

func TestSeriesDatesKeepsWallClockAcrossDST(t *testing.T) {
	loc := berlin(t)
	start := time.Date(2025, 3, 24, 9, 30, 0, 0, loc)

	dates, err := SeriesDates(start, 2, IntervalWeek, loc)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	second := dates[1].In(loc)
	assert.Equal(t, 31, second.Day())
	assert.Equal(t, 9, second.Hour())
	assert.Equal(t, 30, second.Minute())
	assert.Equal(t, 7*24*time.Hour-time.Hour, dates[1].Sub(dates[0]))
}

func TestSeriesDatesIntervals(t *testing.T) {
	start := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		interval Interval
		want     []time.Time
	}{
		{IntervalDay, []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 2)}},
		{IntervalBiweek, []time.Time{start, start.AddDate(0, 0, 14), start.AddDate(0, 0, 28)}},
		{IntervalMonth, []time.Time{
			start,
			time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
		}},
	}
	for _, c := range cases {
		t.Run(string(c.interval), func(t *testing.T) {
			dates, err := SeriesDates(start, 3, c.interval, time.UTC)
			require.NoError(t, err)
			require.Len(t, dates, len(c.want))
			for i := range c.want {
				assert.True(t, c.want[i].Equal(dates[i]), "occurrence %d: want %s, got %s", i, c.want[i], dates[i])
			}
		})
	}
}

func TestSeriesDatesMonthlyAddsCalendarMonths(t *testing.T) {
	loc := berlin(t)
	start := time.Date(2025, 1, 15, 19, 0, 0, 0, loc)

	dates, err := SeriesDates(start, 12, IntervalMonth, loc)
	require.NoError(t, err)
	require.Len(t, dates, 12)
	for i, d := range dates {
		got := d.In(loc)
		assert.Equal(t, time.Month(i+1), got.Month(), "occurrence %d", i)
		assert.Equal(t, 15, got.Day())
		assert.Equal(t, 19, got.Hour())
	}
}

func TestSeriesDatesRejectsBadInput(t *testing.T) {
	start := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	for _, n := range []int{0, -1, MaxSeriesCount + 1} {
		_, err := SeriesDates(start, n, IntervalWeek, time.UTC)
		assert.ErrorIs(t, err, ErrValidation, "count %d", n)
	}
	_, err := SeriesDates(start, 2, Interval("fortnight"), time.UTC)
	assert.ErrorIs(t, err, ErrValidation)

	dates, err := SeriesDates(start, MaxSeriesCount, IntervalWeek, time.UTC)
	require.NoError(t, err)
	assert.Len(t, dates, MaxSeriesCount)
}

func TestCreateSeries(t *testing.T) {
	f := newFixture(t)
	loc := berlin(t)
	f.svc = New(f.store, NewDispatcher(f.rec, f.rec, f.rec), WithClock(f.clock), WithLocation(loc))

	start := time.Date(2025, 1, 6, 18, 0, 0, 0, loc)
	opens := time.Date(2025, 1, 1, 8, 0, 0, 0, loc)
	in := baseInput()
	in.Name = "Konfi-Treff"
	in.StartAt = start
	in.RegistrationOpensAt = &opens
	in.CategoryIDs = []uint64{3}
	in.HasTimeslots = true
	in.Timeslots = []TimeslotInput{{StartAt: start, EndAt: start.Add(time.Hour), MaxParticipants: 4}}
	in.Series = &SeriesOptions{Count: 4, Interval: IntervalWeek}

	events, err := f.svc.CreateEvent(context.Background(), admin, in)
	require.NoError(t, err)
	require.Len(t, events, 4)

	anchor := events[0]
	require.NotNil(t, anchor.SeriesID)
	assert.Equal(t, anchor.ID, *anchor.SeriesID)
	assert.True(t, anchor.IsSeriesAnchor())

	for i, e := range events {
		assert.Equal(t, fmt.Sprintf("Konfi-Treff #%d", i+1), e.Name)
		assert.True(t, e.IsSeries)
		require.NotNil(t, e.SeriesID)
		assert.Equal(t, anchor.ID, *e.SeriesID)
		assert.Equal(t, 6+7*i, e.StartAt.In(loc).Day())
		require.NotNil(t, e.RegistrationOpensAt)
		assert.Equal(t, 1+7*i, e.RegistrationOpensAt.In(loc).Day())

		views, err := f.svc.ListTimeslots(context.Background(), admin, e.ID)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.True(t, views[0].StartAt.Equal(e.StartAt))

		view, err := f.svc.GetEventWithComputedStatus(context.Background(), admin, e.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint64{3}, view.CategoryIDs)
	}
}

func TestCreateSeriesRejectsBadCount(t *testing.T) {
	f := newFixture(t)
	in := baseInput()
	in.Series = &SeriesOptions{Count: 60, Interval: IntervalWeek}

	_, err := f.svc.CreateEvent(context.Background(), admin, in)
	assert.ErrorIs(t, err, ErrValidation)
	f.store.read(func(s *memState) { assert.Empty(t, s.events) })
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		mut  func(in *EventInput)
	}{
		{"blank name", func(in *EventInput) { in.Name = "  " }},
		{"no date", func(in *EventInput) { in.StartAt = time.Time{} }},
		{"bad category", func(in *EventInput) { in.PointCategory = "jugend" }},
		{"negative capacity", func(in *EventInput) { in.MaxParticipants = -1 }},
		{"timeslots on flat event", func(in *EventInput) {
			in.Timeslots = []TimeslotInput{{StartAt: t0, EndAt: t0.Add(time.Hour)}}
		}},
		{"empty timeslot", func(in *EventInput) {
			in.HasTimeslots = true
			in.Timeslots = []TimeslotInput{{StartAt: t0, EndAt: t0}}
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := baseInput()
			c.mut(&in)
			_, err := f.svc.CreateEvent(context.Background(), admin, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := f.svc.CreateEvent(context.Background(), konfi(10), baseInput())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteEventWithBookingsIsBlocked(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, func(in *EventInput) { in.MaxParticipants = Unlimited })
	for id := uint64(10); id < 22; id++ {
		f.book(t, id, e.ID, nil)
	}

	err := f.svc.DeleteEvent(context.Background(), admin, e.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeletionBlocked)
	assert.Equal(t, "cannot delete event: 12 confirmed bookings", err.Error())

	_, err = f.svc.GetEventWithComputedStatus(context.Background(), admin, e.ID)
	assert.NoError(t, err)
}

func TestDeleteEvent(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, nil)
	f.book(t, 10, e.ID, nil)
	require.NoError(t, f.svc.CancelBooking(context.Background(), konfi(10), e.ID))

	require.NoError(t, f.svc.DeleteEvent(context.Background(), admin, e.ID))
	_, err := f.svc.GetEventWithComputedStatus(context.Background(), admin, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSeriesAnchorReanchorsSeries(t *testing.T) {
	f := newFixture(t)
	in := baseInput()
	in.Name = "Konfi-Treff"
	in.Series = &SeriesOptions{Count: 3, Interval: IntervalWeek}
	events, err := f.svc.CreateEvent(context.Background(), admin, in)
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.NoError(t, f.svc.DeleteEvent(context.Background(), admin, events[0].ID))

	next := events[1].ID
	f.store.read(func(s *memState) {
		require.Len(t, s.events, 2)
		for _, e := range s.events {
			require.NotNil(t, e.SeriesID)
			assert.Equal(t, next, *e.SeriesID, "event %d", e.ID)
		}
		anchor := s.events[next]
		assert.True(t, anchor.IsSeriesAnchor())
	})

	out, err := f.svc.ExportCalendar(context.Background(), konfi(10), events[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
}

func TestCancelEventIsIdempotent(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, func(in *EventInput) { in.MaxParticipants = 1 })
	f.book(t, 10, e.ID, nil)
	f.book(t, 11, e.ID, nil)

	got, err := f.svc.CancelEvent(context.Background(), admin, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, 2, f.rec.count(NotifyEventCancelled))

	again, err := f.svc.CancelEvent(context.Background(), admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, got.CancelledAt, again.CancelledAt)
	assert.Equal(t, 2, f.rec.count(NotifyEventCancelled))

	// Seats freed after cancellation are not handed to the waitlist.
	require.NoError(t, f.svc.CancelBooking(context.Background(), konfi(10), e.ID))
	assert.Equal(t, model.BookingPending, f.statusOf(e.ID, 11))

	view, err := f.svc.GetEventWithComputedStatus(context.Background(), admin, e.ID)
	require.NoError(t, err)
	assert.Equal(t, WindowCancelled, view.Registration.Status)
}

func TestUpdateEventRaisingCapacityDrainsWaitlist(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, func(in *EventInput) { in.MaxParticipants = 1 })
	f.book(t, 10, e.ID, nil)
	f.book(t, 11, e.ID, nil)
	f.book(t, 12, e.ID, nil)

	in := baseInput()
	in.MaxParticipants = 2
	updated, err := f.svc.UpdateEvent(context.Background(), admin, e.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MaxParticipants)
	assert.Equal(t, model.BookingConfirmed, f.statusOf(e.ID, 11))
	assert.Equal(t, model.BookingPending, f.statusOf(e.ID, 12))

	in.Series = &SeriesOptions{Count: 2, Interval: IntervalWeek}
	_, err = f.svc.UpdateEvent(context.Background(), admin, e.ID, in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateEventTimeslots(t *testing.T) {
	f := newFixture(t)
	start := t0.Add(7 * 24 * time.Hour)
	in := baseInput()
	in.HasTimeslots = true
	in.Timeslots = []TimeslotInput{
		{StartAt: start, EndAt: start.Add(time.Hour), MaxParticipants: 1},
		{StartAt: start.Add(time.Hour), EndAt: start.Add(2 * time.Hour), MaxParticipants: 1},
	}
	out, err := f.svc.CreateEvent(context.Background(), admin, in)
	require.NoError(t, err)
	e := out[0]
	slots := f.timeslotIDs(t, e.ID)
	f.book(t, 10, e.ID, &slots[0])

	// Dropping the booked slot is refused.
	in.Timeslots = []TimeslotInput{
		{ID: &slots[1], StartAt: start.Add(time.Hour), EndAt: start.Add(2 * time.Hour), MaxParticipants: 1},
	}
	_, err = f.svc.UpdateEvent(context.Background(), admin, e.ID, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeletionBlocked)
	assert.Equal(t, "cannot delete timeslot: 1 confirmed bookings", err.Error())
	assert.Len(t, f.timeslotIDs(t, e.ID), 2)

	// Dropping the empty slot and adding a new one works.
	in.Timeslots = []TimeslotInput{
		{ID: &slots[0], StartAt: start, EndAt: start.Add(time.Hour), MaxParticipants: 5},
		{StartAt: start.Add(3 * time.Hour), EndAt: start.Add(4 * time.Hour), MaxParticipants: 2},
	}
	_, err = f.svc.UpdateEvent(context.Background(), admin, e.ID, in)
	require.NoError(t, err)
	views, err := f.svc.ListTimeslots(context.Background(), admin, e.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, slots[0], views[0].ID)
	assert.Equal(t, 5, views[0].MaxParticipants)
	assert.Equal(t, 4, views[0].Available)
	assert.NotEqual(t, slots[1], views[1].ID)
}

func TestGetEventWithComputedStatus(t *testing.T) {
	f := newFixture(t)
	e := f.event(t, func(in *EventInput) {
		in.MaxParticipants = 1
		in.WaitlistEnabled = false
	})

	view, err := f.svc.GetEventWithComputedStatus(context.Background(), konfi(10), e.ID)
	require.NoError(t, err)
	assert.Equal(t, WindowOpen, view.Registration.Status)
	assert.Equal(t, 1, view.Available)
	assert.Nil(t, view.MyBooking)

	f.book(t, 10, e.ID, nil)
	view, err = f.svc.GetEventWithComputedStatus(context.Background(), konfi(10), e.ID)
	require.NoError(t, err)
	assert.Equal(t, Window{Status: WindowClosed, Reason: ReasonFullNoWaitlist}, view.Registration)
	assert.Equal(t, 0, view.Available)
	require.NotNil(t, view.MyBooking)
	assert.Equal(t, model.BookingConfirmed, view.MyBooking.Status)
}

func TestExportCalendar(t *testing.T) {
	f := newFixture(t)
	in := baseInput()
	in.Name = "Konfi-Treff"
	in.Description = "Treffen im Gemeindehaus"
	in.Series = &SeriesOptions{Count: 3, Interval: IntervalWeek}
	events, err := f.svc.CreateEvent(context.Background(), admin, in)
	require.NoError(t, err)

	_, err = f.svc.CancelEvent(context.Background(), admin, events[1].ID)
	require.NoError(t, err)

	out, err := f.svc.ExportCalendar(context.Background(), konfi(10), events[2].ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Equal(t, 3, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "SUMMARY:Konfi-Treff #2")
	assert.Contains(t, out, "LOCATION:Kirche")
	assert.Equal(t, 1, strings.Count(out, "STATUS:CANCELLED"))

	single := f.event(t, nil)
	out, err = f.svc.ExportCalendar(context.Background(), konfi(10), single.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
}
