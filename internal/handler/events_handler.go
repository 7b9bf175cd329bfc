package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/notify"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
	"github.com/crestline-hq/crestline-api/pkg/response"
)

const heartbeatInterval = 30 * time.Second

// EventsHandler streams server-sent events to authenticated clients.
type EventsHandler struct {
	hub *notify.Hub
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(hub *notify.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream godoc
// @Summary Subscribe to live events
// @Description Server-sent event stream of pushes addressed to the caller
// @Tags Events
// @Produce text/event-stream
// @Param token query string false "Access token for EventSource clients"
// @Success 200 {string} string "event stream"
// @Failure 401 {object} response.Envelope
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	events, cancel := h.hub.Subscribe(claims.UserID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"user_id": claims.UserID})
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event.Payload)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
