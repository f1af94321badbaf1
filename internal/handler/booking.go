package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/konfi-registration/internal/middleware"
	"github.com/iliyamo/konfi-registration/internal/model"
)

// BookingHandler lets konfis book and cancel, and organizers manage the
// participant list of an event.
type BookingHandler struct {
	Engine Engine
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(e Engine) *BookingHandler { return &BookingHandler{Engine: e} }

type bookRequest struct {
	TimeslotID *uint64 `json:"timeslot_id" validate:"omitempty,gt=0"`
}

// Book handles POST /v1/events/:id/booking.  The response status tells
// whether the seat was confirmed or the caller landed on the waitlist.
func (h *BookingHandler) Book(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req bookRequest
	if c.Request().ContentLength != 0 {
		if ok, err := bindValid(c, &req); !ok {
			return err
		}
	}
	res, err := h.Engine.Book(c.Request().Context(), id, eventID, req.TimeslotID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// CancelBooking handles DELETE /v1/events/:id/booking.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Engine.CancelBooking(c.Request().Context(), id, eventID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListParticipants handles GET /v1/admin/events/:id/participants.
func (h *BookingHandler) ListParticipants(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	bookings, err := h.Engine.ListBookings(c.Request().Context(), id, eventID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"participants": bookings})
}

type addParticipantRequest struct {
	UserID     uint64  `json:"user_id" validate:"required,gt=0"`
	TimeslotID *uint64 `json:"timeslot_id" validate:"omitempty,gt=0"`
	Status     string  `json:"status" validate:"omitempty,oneof=confirmed pending"`
}

// AddParticipant handles POST /v1/admin/events/:id/participants.
func (h *BookingHandler) AddParticipant(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req addParticipantRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.Engine.AdminAddParticipant(c.Request().Context(), id, eventID, req.UserID, req.TimeslotID, model.BookingStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// RemoveParticipant handles DELETE /v1/admin/events/:id/participants/:booking_id.
func (h *BookingHandler) RemoveParticipant(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok1 := parseID(c, "id")
	bookingID, ok2 := parseID(c, "booking_id")
	if !ok1 || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Engine.RemoveParticipant(c.Request().Context(), id, eventID, bookingID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed pending"`
}

// UpdateParticipantStatus handles PATCH /v1/admin/events/:id/participants/:booking_id.
func (h *BookingHandler) UpdateParticipantStatus(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok1 := parseID(c, "id")
	bookingID, ok2 := parseID(c, "booking_id")
	if !ok1 || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req statusRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	b, err := h.Engine.PromoteOrDemoteParticipant(c.Request().Context(), id, eventID, bookingID, model.BookingStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type attendanceRequest struct {
	Status string `json:"attendance_status" validate:"required,oneof=present absent"`
}

// MarkAttendance handles PUT /v1/admin/events/:id/participants/:booking_id/attendance.
func (h *BookingHandler) MarkAttendance(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	eventID, ok1 := parseID(c, "id")
	bookingID, ok2 := parseID(c, "booking_id")
	if !ok1 || !ok2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req attendanceRequest
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.Engine.MarkAttendance(c.Request().Context(), id, eventID, bookingID, model.AttendanceStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
