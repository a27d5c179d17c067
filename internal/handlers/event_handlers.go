package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lunevo/bidwire/internal/events"
	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/utils"
)

// EventHandler serves the push channel over HTTP long-poll. A client joins its
// private room by polling with its userId; the since cursor makes delivery
// resumable across dropped connections.
type EventHandler struct {
	Hub    *events.Hub
	Logger *log.Logger
	// DefaultHold is used when a poll request carries no timeout parameter.
	DefaultHold time.Duration
}

// NewEventHandler creates a new instance of EventHandler.
func NewEventHandler(hub *events.Hub, logger *log.Logger, defaultHold time.Duration) *EventHandler {
	if defaultHold <= 0 {
		defaultHold = events.DefaultHoldTime
	}
	return &EventHandler{Hub: hub, Logger: logger, DefaultHold: defaultHold}
}

// Poll handles GET /api/events?userId=&since=&timeout=. A request without a
// since parameter returns the current cursor immediately so a freshly
// connected client sees only events after this call. timeout is the long-poll
// hold in milliseconds; zero returns immediately.
func (h *EventHandler) Poll(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("userId")
	if userId == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "userId is required")
		return
	}

	sinceStr := r.URL.Query().Get("since")
	if sinceStr == "" {
		utils.SendJSON(w, h.Logger, models.EventBatch{Events: []models.Event{}, NextSince: h.Hub.Cursor(userId)})
		return
	}
	since, err := strconv.Atoi(sinceStr)
	if err != nil || since < 0 {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid since parameter, must be a non-negative integer")
		return
	}

	hold := h.DefaultHold
	if timeoutStr := r.URL.Query().Get("timeout"); timeoutStr != "" {
		timeoutMs, err := strconv.Atoi(timeoutStr)
		if err != nil || timeoutMs < 0 {
			utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid timeout parameter, must be a non-negative integer")
			return
		}
		hold = time.Duration(timeoutMs) * time.Millisecond
		if hold == 0 {
			// An immediate poll still needs to drain pending events; the hub
			// returns right away when the room has events past the cursor.
			hold = time.Millisecond
		}
	}

	batch, next, err := h.Hub.Poll(r.Context(), userId, since, hold)
	if err != nil {
		// The client went away mid-poll; nothing to send.
		return
	}
	if batch == nil {
		batch = []models.Event{}
	}
	utils.SendJSON(w, h.Logger, models.EventBatch{Events: batch, NextSince: next})
}
