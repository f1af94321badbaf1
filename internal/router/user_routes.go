package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/konfi-registration/internal/handler"
	"github.com/iliyamo/konfi-registration/internal/middleware"
	"github.com/iliyamo/konfi-registration/internal/model"
)

// RegisterUser registers the /v1 endpoints open to every authenticated
// user.  Booking endpoints are konfi only and pass the rate limiter.
func RegisterUser(e *echo.Echo, ev *handler.EventHandler, b *handler.BookingHandler, l *handler.LiveHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	g.GET("/events/:id", ev.GetEvent)
	g.GET("/events/:id/timeslots", ev.ListTimeslots)
	g.GET("/events/:id/calendar.ics", ev.Calendar)
	g.GET("/live", l.Stream)

	konfi := middleware.RequireUserType(model.UserTypeKonfi)
	g.POST("/events/:id/booking", b.Book, konfi, limiter)
	g.DELETE("/events/:id/booking", b.CancelBooking, konfi, limiter)
}
