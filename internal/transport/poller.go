package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lunevo/bidwire/internal/models"
)

// longPollHold is the server-side hold requested on normal polls. The server
// returns immediately when events are waiting.
const longPollHold = 30 * time.Second

// retryHold is the short hold requested after a poll failure, so the HTTP
// round-trip itself paces the retries.
const retryHold = time.Second

// pollGrace is added to the client-side deadline on top of the requested hold.
const pollGrace = 5 * time.Second

// Run drives the push channel: it joins the session's room, then long-polls
// for events and fans each one out to the subscribed handlers. Poll failures
// are retried indefinitely with a short hold — the push channel may be down
// while the command path still works, and the since cursor means nothing
// published meanwhile is lost. Run returns when ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	since, err := a.join(ctx)
	if err != nil {
		return err
	}

	failing := false
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		hold := longPollHold
		if failing {
			hold = retryHold
		}
		batch, err := a.poll(ctx, since, hold)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !failing {
				a.logger.Printf("transport: push channel poll failed, retrying: %v", err)
			}
			failing = true
			continue
		}
		if failing {
			a.logger.Printf("transport: push channel recovered")
			failing = false
		}
		since = batch.NextSince
		for _, event := range batch.Events {
			a.dispatch(event)
		}
	}
}

// join announces the session's userId to obtain the current room cursor, so
// the loop only sees events published after the session connected. Retries
// until the server is reachable or ctx is cancelled.
func (a *Adapter) join(ctx context.Context) (int, error) {
	pause := time.NewTimer(retryHold)
	defer pause.Stop()

	for {
		batch, err := a.pollRequest(ctx, a.eventsURL(nil), a.sendTimeout)
		if err == nil {
			return batch.NextSince, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		a.logger.Printf("transport: failed to join notification room, retrying: %v", err)
		select {
		case <-pause.C:
			pause.Reset(retryHold)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (a *Adapter) poll(ctx context.Context, since int, hold time.Duration) (*models.EventBatch, error) {
	params := url.Values{}
	params.Set("since", strconv.Itoa(since))
	params.Set("timeout", strconv.FormatInt(hold.Milliseconds(), 10))
	return a.pollRequest(ctx, a.eventsURL(params), hold+pollGrace)
}

func (a *Adapter) eventsURL(params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("userId", a.userId)
	return a.baseURL + "/api/events?" + params.Encode()
}

func (a *Adapter) pollRequest(ctx context.Context, requestURL string, deadline time.Duration) (*models.EventBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event poll returned status %d", resp.StatusCode)
	}

	var batch models.EventBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode event batch: %w", err)
	}
	return &batch, nil
}
