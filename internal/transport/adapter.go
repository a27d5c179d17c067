// Package transport wraps the two channels the negotiation client talks over:
// a synchronous request/response path for commands and queries, and an
// asynchronous long-poll push channel for server-initiated events. The adapter
// owns the connection; every other component goes through Send and Subscribe.
//
// The two paths fail independently. Send keeps working while the push channel
// is down — state-changing operations still succeed, and the missed broadcast
// notifications are tolerated because the reconciler treats push events as
// redundant hints, never as the sole source of truth.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lunevo/bidwire/internal/models"

	"github.com/google/uuid"
)

// DefaultSendTimeout bounds a single command round-trip.
const DefaultSendTimeout = 10 * time.Second

// Config holds configuration for creating an Adapter.
type Config struct {
	// ServerURL is the base URL of the marketplace server.
	ServerURL string
	// UserID identifies the private notification room to join.
	UserID string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for transport logging. If nil, the stdlib default is used.
	Logger *log.Logger
	// SendTimeout bounds command round-trips. Zero means DefaultSendTimeout.
	SendTimeout time.Duration
}

// Command is one request on the synchronous channel. RequestID correlates the
// command with its response and with the broadcast echo the server publishes.
type Command struct {
	Method    string
	Path      string
	Body      interface{}
	RequestID string
}

// Adapter is the single transport instance of a client session.
type Adapter struct {
	baseURL     string
	userId      string
	httpClient  *http.Client
	logger      *log.Logger
	sendTimeout time.Duration

	mu       sync.RWMutex
	handlers map[models.EventType][]func(models.Event)
}

// NewAdapter creates a transport adapter for one authenticated session.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("transport: ServerURL is required")
	}
	if _, err := url.Parse(cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("transport: invalid ServerURL %q: %w", cfg.ServerURL, err)
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("transport: UserID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout == 0 {
		sendTimeout = DefaultSendTimeout
	}

	return &Adapter{
		baseURL:     strings.TrimRight(cfg.ServerURL, "/"),
		userId:      cfg.UserID,
		httpClient:  httpClient,
		logger:      logger,
		sendTimeout: sendTimeout,
		handlers:    make(map[models.EventType][]func(models.Event)),
	}, nil
}

// UserID returns the session's user id.
func (a *Adapter) UserID() string {
	return a.userId
}

// NewRequestID generates a client-side request id for a mutating command.
func (a *Adapter) NewRequestID() string {
	return uuid.New().String()
}

// Send issues one command and waits for its response. A command that times out
// returns an unknown-outcome error: the server may or may not have applied it,
// so the caller must mark the affected entities dirty instead of rolling back.
// Mutating commands are never retried here.
func (a *Adapter) Send(ctx context.Context, cmd Command) (*models.CommandResult, error) {
	var result models.CommandResult
	if err := a.do(ctx, cmd.Method, cmd.Path, cmd.Body, cmd.RequestID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Subscribe registers a handler for a push event type. Multiple handlers per
// type are allowed and all are invoked; invocation order is unspecified.
// Handlers survive reconnects: after the push channel drops and recovers, the
// poll loop keeps delivering to everything registered here.
func (a *Adapter) Subscribe(eventType models.EventType, handler func(models.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[eventType] = append(a.handlers[eventType], handler)
}

func (a *Adapter) dispatch(event models.Event) {
	a.mu.RLock()
	handlers := make([]func(models.Event), len(a.handlers[event.Type]))
	copy(handlers, a.handlers[event.Type])
	a.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// CreateProject creates a project on the server. Project creation sits
// outside the negotiation lifecycle, so it does not go through the optimistic
// store path.
func (a *Adapter) CreateProject(ctx context.Context, req models.ProjectRequest) (*models.Project, error) {
	var project models.Project
	if err := a.do(ctx, http.MethodPost, "/api/projects/new", req, "", &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// FetchProjects retrieves the project list (read path, safe to retry).
func (a *Adapter) FetchProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := a.do(ctx, http.MethodGet, "/api/projects", nil, "", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// FetchProject retrieves one project.
func (a *Adapter) FetchProject(ctx context.Context, projectId string) (*models.Project, error) {
	var project models.Project
	if err := a.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectId), nil, "", &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// FetchProjectBids retrieves all bids on a project.
func (a *Adapter) FetchProjectBids(ctx context.Context, projectId string) ([]models.Bid, error) {
	var bids []models.Bid
	if err := a.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectId)+"/bids", nil, "", &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body interface{}, requestId string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("transport: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, a.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return models.NewTransportError(err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestId != "" {
		req.Header.Set("X-Request-Id", requestId)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return models.NewUnknownOutcomeError("command timed out, outcome unknown")
		}
		return models.NewTransportError(err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewTransportError(err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		var serverErr models.Error
		if err := json.Unmarshal(respBody, &serverErr); err == nil && serverErr.Kind != "" {
			serverErr.StatusCode = resp.StatusCode
			return &serverErr
		}
		return &models.Error{
			Kind:       models.KindFromStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return models.NewTransportError(fmt.Sprintf("failed to decode response: %v", err))
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
