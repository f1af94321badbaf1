package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/konfi-registration/internal/service"
)

// respondError writes the JSON error response for an engine error.
// Unknown errors are logged and answered with a generic 500.
func respondError(c echo.Context, err error) error {
	var (
		regErr *service.RegistrationError
		delErr *service.DeletionBlockedError
	)
	switch {
	case errors.As(err, &regErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  err.Error(),
			"code":   "registration_not_open",
			"reason": regErr.Reason,
		})
	case errors.As(err, &delErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     err.Error(),
			"code":      "deletion_blocked",
			"confirmed": delErr.Confirmed,
			"pending":   delErr.Pending,
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrAlreadyBooked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already booked", "code": "already_booked"})
	case errors.Is(err, service.ErrDuplicateBooking):
		return c.JSON(http.StatusConflict, echo.Map{"error": "user already has a booking", "code": "duplicate_booking"})
	case errors.Is(err, service.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "capacity_exceeded"})
	case errors.Is(err, service.ErrWaitlistFull):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "waitlist_full"})
	case errors.Is(err, service.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "concurrent update, please retry",
			"code":      "concurrency_conflict",
			"retryable": true,
		})
	}
	logrus.WithError(err).
		WithField("path", c.Path()).
		WithField("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Error("unhandled engine error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
