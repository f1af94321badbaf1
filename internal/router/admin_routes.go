package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/konfi-registration/internal/handler"
	"github.com/iliyamo/konfi-registration/internal/middleware"
	"github.com/iliyamo/konfi-registration/internal/model"
)

// RegisterAdmin registers organizer endpoints under /v1/admin.  All
// routes require a valid JWT with user_type admin.
func RegisterAdmin(e *echo.Echo, ev *handler.EventHandler, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireUserType(model.UserTypeAdmin),
	)

	// ---- Events ----
	g.POST("/events", ev.CreateEvent)
	g.POST("/events/series", ev.CreateSeries)
	g.PUT("/events/:id", ev.UpdateEvent)
	g.DELETE("/events/:id", ev.DeleteEvent)
	g.POST("/events/:id/cancel", ev.CancelEvent)

	// ---- Participants ----
	g.GET("/events/:id/participants", b.ListParticipants)
	g.POST("/events/:id/participants", b.AddParticipant)
	g.DELETE("/events/:id/participants/:booking_id", b.RemoveParticipant)
	g.PATCH("/events/:id/participants/:booking_id", b.UpdateParticipantStatus)
	g.PUT("/events/:id/participants/:booking_id/attendance", b.MarkAttendance)
}
