// Package events implements the push side of the dual-channel protocol: an
// in-process broker with one room per user id. Clients read their room over
// HTTP long-poll with a since cursor, so a dropped connection loses nothing —
// the next poll resumes from the cursor. Every logical change is published
// exactly once per target room; duplicate suppression is the client's job.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/lunevo/bidwire/internal/models"
)

// DefaultHoldTime is the long-poll hold used when a poll request does not
// specify one.
const DefaultHoldTime = 30 * time.Second

// MaxHoldTime caps the server-side long-poll hold.
const MaxHoldTime = 60 * time.Second

type room struct {
	events []models.Event
	wake   chan struct{}
}

// Hub delivers events to per-user rooms. The event log of a room is
// append-only and the cursor is its length, so polls are stateless: the since
// token travels as a query parameter, never as server-side session state.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

func (h *Hub) room(userId string) *room {
	rm, ok := h.rooms[userId]
	if !ok {
		rm = &room{wake: make(chan struct{})}
		h.rooms[userId] = rm
	}
	return rm
}

// Publish appends an event to each target user's room and wakes parked polls.
func (h *Hub) Publish(event models.Event, userIds ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, userId := range userIds {
		if userId == "" {
			continue
		}
		rm := h.room(userId)
		rm.events = append(rm.events, event)
		close(rm.wake)
		rm.wake = make(chan struct{})
	}
}

// Cursor returns the current end-of-log cursor for a user's room. A client
// that wants only events after connecting starts polling from this value.
func (h *Hub) Cursor(userId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.room(userId).events)
}

// Poll returns the events in a user's room after the since cursor, waiting up
// to hold for new events if there are none yet. It returns the events together
// with the next cursor. An expired hold returns an empty batch and the same
// cursor, which is not an error.
func (h *Hub) Poll(ctx context.Context, userId string, since int, hold time.Duration) ([]models.Event, int, error) {
	if hold <= 0 {
		hold = DefaultHoldTime
	}
	if hold > MaxHoldTime {
		hold = MaxHoldTime
	}
	deadline := time.NewTimer(hold)
	defer deadline.Stop()

	for {
		h.mu.Lock()
		rm := h.room(userId)
		if since < 0 || since > len(rm.events) {
			// A cursor from a previous server run. Restart at the head rather
			// than failing the poll; the client refetches on merge gaps.
			since = len(rm.events)
		}
		if len(rm.events) > since {
			batch := make([]models.Event, len(rm.events)-since)
			copy(batch, rm.events[since:])
			next := len(rm.events)
			h.mu.Unlock()
			return batch, next, nil
		}
		wake := rm.wake
		h.mu.Unlock()

		select {
		case <-wake:
		case <-deadline.C:
			return nil, since, nil
		case <-ctx.Done():
			return nil, since, ctx.Err()
		}
	}
}
