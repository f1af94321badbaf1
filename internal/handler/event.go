package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/konfi-registration/internal/middleware"
	"github.com/iliyamo/konfi-registration/internal/model"
	"github.com/iliyamo/konfi-registration/internal/service"
)

// EventHandler serves event reads for every user and event management
// for organizers.
type EventHandler struct {
	Engine Engine
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(e Engine) *EventHandler { return &EventHandler{Engine: e} }

type timeslotRequest struct {
	ID              *uint64   `json:"id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MaxParticipants int       `json:"max_participants" validate:"gte=0"`
}

// eventRequest is the body of create and update.  Series fields are only
// accepted on create.
type eventRequest struct {
	Name                 string            `json:"name" validate:"required,max=255"`
	Description          string            `json:"description"`
	Location             string            `json:"location" validate:"max=255"`
	EventDate            time.Time         `json:"event_date"`
	EventEndTime         *time.Time        `json:"event_end_time"`
	Points               int               `json:"points" validate:"gte=0"`
	PointType            string            `json:"point_type" validate:"required,oneof=gottesdienst gemeinde"`
	MaxParticipants      int               `json:"max_participants" validate:"gte=0"`
	RegistrationOpensAt  *time.Time        `json:"registration_opens_at"`
	RegistrationClosesAt *time.Time        `json:"registration_closes_at"`
	HasTimeslots         bool              `json:"has_timeslots"`
	WaitlistEnabled      bool              `json:"waitlist_enabled"`
	MaxWaitlistSize      int               `json:"max_waitlist_size" validate:"gte=0"`
	Timeslots            []timeslotRequest `json:"timeslots" validate:"dive"`
	CategoryIDs          []uint64          `json:"category_ids"`
	JahrgangIDs          []uint64          `json:"jahrgang_ids"`
	IsSeries             bool              `json:"is_series"`
	SeriesCount          int               `json:"series_count" validate:"omitempty,min=1,max=52"`
	SeriesInterval       string            `json:"series_interval" validate:"omitempty,oneof=day week biweek month"`
}

func (r eventRequest) input() service.EventInput {
	in := service.EventInput{
		Name:                 r.Name,
		Description:          r.Description,
		Location:             r.Location,
		StartAt:              r.EventDate,
		EndAt:                r.EventEndTime,
		Points:               r.Points,
		PointCategory:        model.PointCategory(r.PointType),
		MaxParticipants:      r.MaxParticipants,
		RegistrationOpensAt:  r.RegistrationOpensAt,
		RegistrationClosesAt: r.RegistrationClosesAt,
		HasTimeslots:         r.HasTimeslots,
		WaitlistEnabled:      r.WaitlistEnabled,
		MaxWaitlistSize:      r.MaxWaitlistSize,
		CategoryIDs:          r.CategoryIDs,
		JahrgangIDs:          r.JahrgangIDs,
	}
	for _, ts := range r.Timeslots {
		in.Timeslots = append(in.Timeslots, service.TimeslotInput{
			ID:              ts.ID,
			StartAt:         ts.StartTime,
			EndAt:           ts.EndTime,
			MaxParticipants: ts.MaxParticipants,
		})
	}
	if r.IsSeries || r.SeriesCount > 0 || r.SeriesInterval != "" {
		in.Series = &service.SeriesOptions{Count: r.SeriesCount, Interval: service.Interval(r.SeriesInterval)}
	}
	return in
}

// GetEvent handles GET /v1/events/:id.
func (h *EventHandler) GetEvent(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	view, err := h.Engine.GetEventWithComputedStatus(c.Request().Context(), id, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// ListTimeslots handles GET /v1/events/:id/timeslots.
func (h *EventHandler) ListTimeslots(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	slots, err := h.Engine.ListTimeslots(c.Request().Context(), id, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"timeslots": slots})
}

// Calendar handles GET /v1/events/:id/calendar.ics.
func (h *EventHandler) Calendar(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	body, err := h.Engine.ExportCalendar(c.Request().Context(), id, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// CreateEvent handles POST /v1/admin/events.  A body with series fields
// creates the whole series.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	var req eventRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	events, err := h.Engine.CreateEvent(c.Request().Context(), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	if len(events) == 1 {
		return c.JSON(http.StatusCreated, events[0])
	}
	return c.JSON(http.StatusCreated, echo.Map{"series_id": events[0].SeriesID, "events": events})
}

// CreateSeries handles POST /v1/admin/events/series.
func (h *EventHandler) CreateSeries(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	var req eventRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.SeriesCount == 0 || req.SeriesInterval == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "series_count and series_interval are required"})
	}
	in := req.input()
	in.Series = nil
	events, err := h.Engine.CreateSeries(c.Request().Context(), id, in, req.SeriesCount, service.Interval(req.SeriesInterval))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"series_id": events[0].SeriesID, "events": events})
}

// UpdateEvent handles PUT /v1/admin/events/:id.
func (h *EventHandler) UpdateEvent(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req eventRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	e, err := h.Engine.UpdateEvent(c.Request().Context(), id, eventID, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// DeleteEvent handles DELETE /v1/admin/events/:id.
func (h *EventHandler) DeleteEvent(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.DeleteEvent(c.Request().Context(), id, eventID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelEvent handles POST /v1/admin/events/:id/cancel.
func (h *EventHandler) CancelEvent(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	e, err := h.Engine.CancelEvent(c.Request().Context(), id, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}
