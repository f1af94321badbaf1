package service

import (
	"context"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/iliyamo/konfi-registration/internal/model"
)

const calendarProductID = "-//konfi//registration//DE"

// ExportCalendar renders an event as iCalendar text.  Series members are
// exported together with every other event of their series.
func (s *Service) ExportCalendar(ctx context.Context, id model.Identity, eventID uint64) (string, error) {
	var events []model.Event
	err := s.view(ctx, func(tx Tx) error {
		e, err := tx.GetEvent(ctx, id.OrganizationID, eventID)
		if err != nil {
			return storeErr(err, "event")
		}
		if e.SeriesID == nil {
			events = []model.Event{*e}
			return nil
		}
		events, err = tx.ListSeriesEvents(ctx, id.OrganizationID, *e.SeriesID)
		return storeErr(err, "event")
	})
	if err != nil {
		return "", err
	}
	return renderCalendar(events, s.now()), nil
}

func renderCalendar(events []model.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)
	for _, e := range events {
		ev := cal.AddEvent(fmt.Sprintf("event-%d@konfi", e.ID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetCreatedTime(e.CreatedAt)
		ev.SetStartAt(e.StartAt)
		if e.EndAt != nil {
			ev.SetEndAt(*e.EndAt)
		}
		ev.SetSummary(e.Name)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if e.Cancelled {
			ev.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}
