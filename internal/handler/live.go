package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/konfi-registration/internal/live"
	"github.com/iliyamo/konfi-registration/internal/middleware"
	"github.com/iliyamo/konfi-registration/internal/service"
)

// Subscriber is the subscribe side of the live broadcaster.
type Subscriber interface {
	Subscribe(ctx context.Context, scope string) (<-chan live.Update, error)
}

// LiveHandler streams the organization's live updates as server-sent
// events.
type LiveHandler struct {
	Sub       Subscriber
	Heartbeat time.Duration
}

// NewLiveHandler constructs a LiveHandler.  sub may be nil when Redis is
// unavailable.
func NewLiveHandler(sub Subscriber) *LiveHandler {
	return &LiveHandler{Sub: sub, Heartbeat: 25 * time.Second}
}

// Stream handles GET /v1/live.
func (h *LiveHandler) Stream(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return unauthorized(c)
	}
	if h.Sub == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "live updates unavailable"})
	}
	ctx := c.Request().Context()
	updates, err := h.Sub.Subscribe(ctx, service.OrgScope(id.OrganizationID))
	if err != nil {
		return respondError(c, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ticker := time.NewTicker(h.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(u)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", u.Topic, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
