package service

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Interval is the spacing of a series.
type Interval string

const (
	IntervalDay    Interval = "day"
	IntervalWeek   Interval = "week"
	IntervalBiweek Interval = "biweek"
	IntervalMonth  Interval = "month"
)

// MaxSeriesCount caps the number of occurrences of one series.
const MaxSeriesCount = 52

func (i Interval) rule() (rrule.Frequency, int, error) {
	switch i {
	case IntervalDay:
		return rrule.DAILY, 1, nil
	case IntervalWeek:
		return rrule.WEEKLY, 1, nil
	case IntervalBiweek:
		return rrule.WEEKLY, 2, nil
	case IntervalMonth:
		return rrule.MONTHLY, 1, nil
	}
	return 0, 0, invalid("unknown series interval %q", i)
}

// SeriesDates returns the start times of count occurrences beginning at
// start, computed in loc so the wall clock time survives DST changes.
// Monthly occurrence i is start plus i calendar months; a day the month
// lacks rolls over into the next month (31 Jan + 1 month = 3 Mar).
func SeriesDates(start time.Time, count int, interval Interval, loc *time.Location) ([]time.Time, error) {
	if count < 1 || count > MaxSeriesCount {
		return nil, invalid("series count must be between 1 and %d", MaxSeriesCount)
	}
	freq, step, err := interval.rule()
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	if interval == IntervalMonth {
		local := start.In(loc)
		out := make([]time.Time, count)
		for i := range out {
			out[i] = local.AddDate(0, i, 0)
		}
		return out, nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: step,
		Count:    count,
		Dtstart:  start.In(loc),
	})
	if err != nil {
		return nil, fmt.Errorf("series rule: %w", err)
	}
	return r.All(), nil
}

// dayDelta counts calendar days between the dates of from and to in loc.
func dayDelta(from, to time.Time, loc *time.Location) int {
	a := from.In(loc)
	b := to.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// shiftDays moves t by days calendar days keeping its clock time in loc.
func shiftDays(t time.Time, days int, loc *time.Location) time.Time {
	return t.In(loc).AddDate(0, 0, days).UTC()
}

func shiftDaysPtr(t *time.Time, days int, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	s := shiftDays(*t, days, loc)
	return &s
}

// occurrence derives the input of the n-th (1-based) series event from
// the template by shifting every date by the same day delta.
func occurrence(tpl EventInput, n int, start time.Time, loc *time.Location) EventInput {
	days := dayDelta(tpl.StartAt, start, loc)
	out := tpl
	out.Series = nil
	out.Name = fmt.Sprintf("%s #%d", tpl.Name, n)
	out.StartAt = start.UTC()
	out.EndAt = shiftDaysPtr(tpl.EndAt, days, loc)
	out.RegistrationOpensAt = shiftDaysPtr(tpl.RegistrationOpensAt, days, loc)
	out.RegistrationClosesAt = shiftDaysPtr(tpl.RegistrationClosesAt, days, loc)
	out.Timeslots = make([]TimeslotInput, len(tpl.Timeslots))
	for i, ts := range tpl.Timeslots {
		out.Timeslots[i] = TimeslotInput{
			StartAt:         shiftDays(ts.StartAt, days, loc),
			EndAt:           shiftDays(ts.EndAt, days, loc),
			MaxParticipants: ts.MaxParticipants,
		}
	}
	out.CategoryIDs = append([]uint64(nil), tpl.CategoryIDs...)
	out.JahrgangIDs = append([]uint64(nil), tpl.JahrgangIDs...)
	return out
}
