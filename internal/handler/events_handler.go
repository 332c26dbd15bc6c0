package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pubdesk-api/internal/repository"
	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
	"github.com/noah-isme/pubdesk-api/pkg/response"
)

// EventsHandler streams change events to clients over server-sent events.
type EventsHandler struct {
	cache *repository.CacheRepository
}

// NewEventsHandler constructs EventsHandler.
func NewEventsHandler(cache *repository.CacheRepository) *EventsHandler {
	return &EventsHandler{cache: cache}
}

// Stream godoc
// @Summary Stream change events
// @Description Streams table change events as server-sent events until the client disconnects
// @Tags Events
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /events/stream [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	events, cancel, err := h.cache.SubscribeChanges(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "change feed unavailable"))
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("change", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
