package transport

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunevo/bidwire/internal/models"
)

func newTestAdapter(t *testing.T, serverURL string, sendTimeout time.Duration) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(Config{
		ServerURL:   serverURL,
		UserID:      "user-1",
		Logger:      log.New(io.Discard, "", 0),
		SendTimeout: sendTimeout,
	})
	require.NoError(t, err)
	return adapter
}

func TestNewAdapterValidation(t *testing.T) {
	_, err := NewAdapter(Config{UserID: "user-1"})
	assert.Error(t, err)

	_, err = NewAdapter(Config{ServerURL: "http://localhost:8080"})
	assert.Error(t, err)
}

func TestSendSuccess(t *testing.T) {
	var gotRequestId string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestId = r.Header.Get("X-Request-Id")
		var req models.BidRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "project-1", req.ProjectID)

		json.NewEncoder(w).Encode(models.CommandResult{
			Bid: &models.Bid{ID: "bid-1", ProjectID: req.ProjectID, Status: models.PendingBid},
		})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, 0)
	result, err := adapter.Send(context.Background(), Command{
		Method:    http.MethodPost,
		Path:      "/api/bids/new",
		Body:      models.BidRequest{ProjectID: "project-1"},
		RequestID: "req-1",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Bid)
	assert.Equal(t, "bid-1", result.Bid.ID)
	assert.Equal(t, "req-1", gotRequestId)
}

func TestSendMapsServerErrors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		wantKind models.ErrorKind
	}{
		{
			name:     "typed validation error",
			status:   http.StatusBadRequest,
			body:     `{"kind":"validation","reason":"bid amount must be greater than zero"}`,
			wantKind: models.KindValidation,
		},
		{
			name:     "typed conflict error",
			status:   http.StatusConflict,
			body:     `{"kind":"invalid_transition","reason":"project is no longer open"}`,
			wantKind: models.KindInvalidTransition,
		},
		{
			name:     "untyped not found maps by status",
			status:   http.StatusNotFound,
			body:     `page not found`,
			wantKind: models.KindNotFound,
		},
		{
			name:     "untyped server error maps to unknown",
			status:   http.StatusInternalServerError,
			body:     `boom`,
			wantKind: models.KindUnknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			adapter := newTestAdapter(t, server.URL, 0)
			_, err := adapter.Send(context.Background(), Command{Method: http.MethodPost, Path: "/api/bids/new"})
			require.Error(t, err)
			assert.True(t, models.IsKind(err, tc.wantKind), "expected %s, got %v", tc.wantKind, err)

			var typed *models.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tc.status, typed.StatusCode)
		})
	}
}

func TestSendTimeoutIsUnknownOutcome(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	adapter := newTestAdapter(t, server.URL, 50*time.Millisecond)
	_, err := adapter.Send(context.Background(), Command{Method: http.MethodPost, Path: "/api/bids/new"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindUnknown), "timeout must map to an unknown outcome, got %v", err)
}

func TestSendConnectionRefusedIsTransport(t *testing.T) {
	adapter := newTestAdapter(t, "http://127.0.0.1:1", 0)
	_, err := adapter.Send(context.Background(), Command{Method: http.MethodPost, Path: "/api/bids/new"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindTransport), "connection failure must map to transport, got %v", err)
}

func TestSubscribeFanOut(t *testing.T) {
	adapter := newTestAdapter(t, "http://localhost:8080", 0)

	var mu sync.Mutex
	var calls []string
	adapter.Subscribe(models.NewBidEvent, func(event models.Event) {
		mu.Lock()
		calls = append(calls, "first:"+event.BidID)
		mu.Unlock()
	})
	adapter.Subscribe(models.NewBidEvent, func(event models.Event) {
		mu.Lock()
		calls = append(calls, "second:"+event.BidID)
		mu.Unlock()
	})
	adapter.Subscribe(models.CounterOfferEvent, func(event models.Event) {
		mu.Lock()
		calls = append(calls, "counter:"+event.BidID)
		mu.Unlock()
	})

	adapter.dispatch(models.Event{Type: models.NewBidEvent, BidID: "bid-1"})
	adapter.dispatch(models.Event{Type: models.YourBidAcceptedEvent, BidID: "bid-9"})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"first:bid-1", "second:bid-1"}, calls)
}

func TestRunDeliversPolledEvents(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))

		mu.Lock()
		polls++
		n := polls
		mu.Unlock()

		batch := models.EventBatch{Events: []models.Event{}, NextSince: 0}
		switch {
		case r.URL.Query().Get("since") == "":
			// Join: return the current cursor with no events.
		case n == 2:
			batch = models.EventBatch{
				Events:    []models.Event{{Type: models.NewBidEvent, BidID: "bid-1"}},
				NextSince: 1,
			}
		default:
			time.Sleep(10 * time.Millisecond)
			batch.NextSince = 1
		}
		json.NewEncoder(w).Encode(batch)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Second)

	received := make(chan models.Event, 1)
	adapter.Subscribe(models.NewBidEvent, func(event models.Event) {
		received <- event
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- adapter.Run(ctx) }()

	select {
	case event := <-received:
		assert.Equal(t, "bid-1", event.BidID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunRetriesAfterPollFailure(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()

		if n == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		batch := models.EventBatch{Events: []models.Event{}, NextSince: 0}
		if n == 3 {
			batch = models.EventBatch{
				Events:    []models.Event{{Type: models.NewBidEvent, BidID: "bid-after-recovery"}},
				NextSince: 1,
			}
		}
		json.NewEncoder(w).Encode(batch)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Second)
	received := make(chan models.Event, 1)
	adapter.Subscribe(models.NewBidEvent, func(event models.Event) {
		received <- event
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go adapter.Run(ctx)

	select {
	case event := <-received:
		assert.Equal(t, "bid-after-recovery", event.BidID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered after poll recovery")
	}
}
