// Package client is the negotiation client facade: it owns the entity store,
// drives the transport adapter and routes every mutation through the engine
// and the reconciler. Views read from the store and issue commands here; they
// never touch the transport or mutate entities directly.
package client

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/lunevo/bidwire/internal/engine"
	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/reconcile"
	"github.com/lunevo/bidwire/internal/store"
	"github.com/lunevo/bidwire/internal/transport"
)

// provisionalPrefix marks the id of an optimistic bid that has no server id
// yet. The provisional record is replaced by the server's bid on confirmation.
const provisionalPrefix = "pending-"

// refetchInterval paces the background pass over dirty projects.
const refetchInterval = 5 * time.Second

// NegotiationClient ties store, engine, reconciler and transport together for
// one user session.
type NegotiationClient struct {
	adapter  *transport.Adapter
	entities *store.EntityStore
	rec      *reconcile.Reconciler
	logger   *log.Logger
	userId   string

	mu        sync.Mutex
	proposals map[string]string // request id -> provisional bid id
	refetchCh chan struct{}
}

// New creates a negotiation client over the given transport adapter. All push
// event types are subscribed immediately; handlers survive reconnects.
func New(adapter *transport.Adapter, logger *log.Logger) *NegotiationClient {
	if logger == nil {
		logger = log.Default()
	}
	c := &NegotiationClient{
		adapter:   adapter,
		entities:  store.NewEntityStore(),
		logger:    logger,
		userId:    adapter.UserID(),
		proposals: make(map[string]string),
		refetchCh: make(chan struct{}, 1),
	}
	c.rec = reconcile.New(c.entities, c.requestRefetch, logger)

	for _, eventType := range []models.EventType{
		models.NewBidEvent,
		models.BidAcceptedEvent,
		models.YourBidAcceptedEvent,
		models.CounterOfferEvent,
		models.CounterOfferResponseEvent,
	} {
		adapter.Subscribe(eventType, c.handleEvent)
	}
	return c
}

// Store exposes the entity store for read-only projections and change
// subscriptions.
func (c *NegotiationClient) Store() *store.EntityStore {
	return c.entities
}

// OnNotification registers a callback for user-facing notifications that
// carry no entity state.
func (c *NegotiationClient) OnNotification(fn func(message string)) {
	c.rec.OnNotification(fn)
}

// Run drives the push channel and the background refetch of dirty projects
// until ctx is cancelled.
func (c *NegotiationClient) Run(ctx context.Context) error {
	go c.refetchLoop(ctx)
	return c.adapter.Run(ctx)
}

// CreateProject posts a new project as the session user and caches it.
func (c *NegotiationClient) CreateProject(ctx context.Context, req models.ProjectRequest) (*models.Project, error) {
	project, err := c.adapter.CreateProject(ctx, req)
	if err != nil {
		return nil, err
	}
	c.entities.UpsertProject(*project)
	return project, nil
}

// LoadProjects fetches the project list into the store.
func (c *NegotiationClient) LoadProjects(ctx context.Context) error {
	projects, err := c.adapter.FetchProjects(ctx)
	if err != nil {
		return err
	}
	for _, project := range projects {
		c.entities.UpsertProject(project)
	}
	return nil
}

// RefreshProject fetches a project and its bids, replacing the cached copies.
// This is the recovery path for unknown command outcomes and for events that
// referenced entities the store did not hold.
func (c *NegotiationClient) RefreshProject(ctx context.Context, projectId string) error {
	project, err := c.adapter.FetchProject(ctx, projectId)
	if err != nil {
		return err
	}
	bids, err := c.adapter.FetchProjectBids(ctx, projectId)
	if err != nil {
		return err
	}
	c.entities.UpsertProject(*project)
	for _, bid := range bids {
		c.entities.UpsertBid(bid)
	}
	c.entities.ClearDirty(projectId)
	return nil
}

// Propose creates a bid on a project. The optimistic record carries a
// provisional id until the server confirms and assigns the real one.
func (c *NegotiationClient) Propose(ctx context.Context, projectId string, amount float64, deliveryTimeDays int, proposalText string) (*models.Bid, error) {
	project, ok := c.entities.GetProject(projectId)
	if !ok {
		if err := c.RefreshProject(ctx, projectId); err != nil {
			return nil, err
		}
		project, _ = c.entities.GetProject(projectId)
	}

	requestId := c.adapter.NewRequestID()
	provisional, err := engine.NewBid(&project, provisionalPrefix+requestId, c.userId, amount, deliveryTimeDays, proposalText)
	if err != nil {
		// Local validation failed; the command never reaches the transport.
		return nil, err
	}

	c.mu.Lock()
	c.proposals[requestId] = provisional.ID
	c.mu.Unlock()
	c.entities.UpsertBid(*provisional)

	result, err := c.adapter.Send(ctx, transport.Command{
		Method: http.MethodPost,
		Path:   "/api/bids/new",
		Body: models.BidRequest{
			ProjectID:        projectId,
			FreelancerID:     c.userId,
			Amount:           amount,
			DeliveryTimeDays: deliveryTimeDays,
			ProposalText:     proposalText,
			RequestID:        requestId,
		},
		RequestID: requestId,
	})
	if err != nil {
		if models.IsKind(err, models.KindUnknown) {
			// Outcome unknown: keep the optimistic record, force a refetch.
			c.requestRefetch(projectId)
			return nil, err
		}
		c.discardProposal(requestId)
		return nil, err
	}

	c.discardProposal(requestId)
	c.rec.ApplyResult(result)
	return result.Bid, nil
}

// Accept accepts a bid on one of the session user's projects. The fan-out
// (project assignment plus sibling rejection) is applied optimistically as a
// single unit and confirmed or rolled back as a single unit.
func (c *NegotiationClient) Accept(ctx context.Context, projectId, bidId string) error {
	project, ok := c.entities.GetProject(projectId)
	if !ok {
		return models.NewNotFoundError("project not in local store, refresh first")
	}
	bids := c.entities.ProjectBids(projectId)

	updatedProject, updatedBids, err := engine.Accept(&project, bids, bidId, c.userId)
	if err != nil {
		return err
	}

	rollback := c.snapshot(project, bids)
	c.entities.UpsertProject(*updatedProject)
	for _, bid := range updatedBids {
		c.entities.UpsertBid(bid)
	}

	requestId := c.adapter.NewRequestID()
	result, err := c.adapter.Send(ctx, transport.Command{
		Method:    http.MethodPost,
		Path:      "/api/projects/" + projectId + "/bids/" + bidId + "/accept",
		Body:      models.DecisionRequest{ClientID: c.userId, RequestID: requestId},
		RequestID: requestId,
	})
	return c.settle(result, err, projectId, rollback)
}

// Reject rejects a bid on one of the session user's projects.
func (c *NegotiationClient) Reject(ctx context.Context, projectId, bidId string) error {
	project, bid, err := c.localProjectBid(projectId, bidId)
	if err != nil {
		return err
	}

	updated, err := engine.Reject(&project, &bid, c.userId)
	if err != nil {
		return err
	}

	rollback := c.snapshot(project, []models.Bid{bid})
	c.entities.UpsertBid(*updated)

	requestId := c.adapter.NewRequestID()
	result, err := c.adapter.Send(ctx, transport.Command{
		Method:    http.MethodPost,
		Path:      "/api/projects/" + projectId + "/bids/" + bidId + "/reject",
		Body:      models.DecisionRequest{ClientID: c.userId, RequestID: requestId},
		RequestID: requestId,
	})
	return c.settle(result, err, projectId, rollback)
}

// Counter sends a counter-offer against a pending bid.
func (c *NegotiationClient) Counter(ctx context.Context, projectId, bidId string, amount float64, deliveryTimeDays int, message string) error {
	project, bid, err := c.localProjectBid(projectId, bidId)
	if err != nil {
		return err
	}

	offer := models.CounterOffer{
		Amount:           amount,
		DeliveryTimeDays: deliveryTimeDays,
		Message:          message,
		ProposedAt:       time.Now().UTC(),
	}
	updated, err := engine.Counter(&project, &bid, c.userId, offer)
	if err != nil {
		return err
	}

	rollback := c.snapshot(project, []models.Bid{bid})
	c.entities.UpsertBid(*updated)

	requestId := c.adapter.NewRequestID()
	result, err := c.adapter.Send(ctx, transport.Command{
		Method: http.MethodPost,
		Path:   "/api/projects/" + projectId + "/bids/" + bidId + "/counter",
		Body: models.CounterRequest{
			ClientID:         c.userId,
			Amount:           amount,
			DeliveryTimeDays: deliveryTimeDays,
			Message:          message,
			RequestID:        requestId,
		},
		RequestID: requestId,
	})
	return c.settle(result, err, projectId, rollback)
}

// RespondToCounter answers a counter-offer on one of the session user's bids.
func (c *NegotiationClient) RespondToCounter(ctx context.Context, bidId string, accepted bool) error {
	bid, ok := c.entities.GetBid(bidId)
	if !ok {
		return models.NewNotFoundError("bid not in local store, refresh first")
	}

	updated, err := engine.RespondToCounter(&bid, c.userId, accepted)
	if err != nil {
		return err
	}

	project, _ := c.entities.GetProject(bid.ProjectID)
	rollback := c.snapshot(project, []models.Bid{bid})
	c.entities.UpsertBid(*updated)

	requestId := c.adapter.NewRequestID()
	result, err := c.adapter.Send(ctx, transport.Command{
		Method:    http.MethodPost,
		Path:      "/api/bids/" + bidId + "/respond",
		Body:      models.RespondRequest{FreelancerID: c.userId, Accepted: accepted, RequestID: requestId},
		RequestID: requestId,
	})
	return c.settle(result, err, bid.ProjectID, rollback)
}

// Withdraw withdraws one of the session user's open bids.
func (c *NegotiationClient) Withdraw(ctx context.Context, bidId string) error {
	bid, ok := c.entities.GetBid(bidId)
	if !ok {
		return models.NewNotFoundError("bid not in local store, refresh first")
	}

	updated, err := engine.Withdraw(&bid, c.userId)
	if err != nil {
		return err
	}

	project, _ := c.entities.GetProject(bid.ProjectID)
	rollback := c.snapshot(project, []models.Bid{bid})
	c.entities.UpsertBid(*updated)

	requestId := c.adapter.NewRequestID()
	result, err := c.adapter.Send(ctx, transport.Command{
		Method:    http.MethodPost,
		Path:      "/api/bids/" + bidId + "/withdraw",
		Body:      models.WithdrawRequest{FreelancerID: c.userId, RequestID: requestId},
		RequestID: requestId,
	})
	return c.settle(result, err, bid.ProjectID, rollback)
}

type rollbackState struct {
	project models.Project
	bids    []models.Bid
}

func (c *NegotiationClient) snapshot(project models.Project, bids []models.Bid) rollbackState {
	copied := make([]models.Bid, len(bids))
	copy(copied, bids)
	return rollbackState{project: project, bids: copied}
}

// settle resolves an optimistic write after the command round-trip: confirm
// with the server's entities, keep-and-refetch on an unknown outcome, or roll
// the store back to the pre-command snapshot on a definite failure.
func (c *NegotiationClient) settle(result *models.CommandResult, err error, projectId string, rollback rollbackState) error {
	if err == nil {
		c.rec.ApplyResult(result)
		return nil
	}
	if models.IsKind(err, models.KindUnknown) {
		c.requestRefetch(projectId)
		return err
	}
	if rollback.project.ID != "" {
		c.entities.UpsertProject(rollback.project)
	}
	for _, bid := range rollback.bids {
		c.entities.UpsertBid(bid)
	}
	if models.IsKind(err, models.KindInvalidTransition) || models.IsKind(err, models.KindNotFound) {
		// Local state was stale; refetch so the caller can re-issue.
		c.requestRefetch(projectId)
	}
	return err
}

func (c *NegotiationClient) localProjectBid(projectId, bidId string) (models.Project, models.Bid, error) {
	project, ok := c.entities.GetProject(projectId)
	if !ok {
		return models.Project{}, models.Bid{}, models.NewNotFoundError("project not in local store, refresh first")
	}
	bid, ok := c.entities.GetBid(bidId)
	if !ok || bid.ProjectID != projectId {
		return models.Project{}, models.Bid{}, models.NewNotFoundError("bid not in local store, refresh first")
	}
	return project, bid, nil
}

func (c *NegotiationClient) handleEvent(event models.Event) {
	if event.Type == models.NewBidEvent && event.OriginRequestID != "" {
		// The broadcast echo of this session's own propose: drop the
		// provisional record, the echo carries the server-assigned bid.
		c.mu.Lock()
		provisionalId, ok := c.proposals[event.OriginRequestID]
		if ok {
			delete(c.proposals, event.OriginRequestID)
		}
		c.mu.Unlock()
		if ok {
			c.entities.DeleteBid(provisionalId)
		}
	}
	c.rec.ApplyEvent(event)
}

func (c *NegotiationClient) discardProposal(requestId string) {
	c.mu.Lock()
	provisionalId, ok := c.proposals[requestId]
	if ok {
		delete(c.proposals, requestId)
	}
	c.mu.Unlock()
	if ok {
		c.entities.DeleteBid(provisionalId)
	}
}

// requestRefetch flags a project dirty and nudges the refetch loop. Called by
// the reconciler for unknown entities and by settle for unknown outcomes.
func (c *NegotiationClient) requestRefetch(projectId string) {
	if projectId != "" {
		c.entities.MarkDirty(projectId)
	}
	select {
	case c.refetchCh <- struct{}{}:
	default:
	}
}

func (c *NegotiationClient) refetchLoop(ctx context.Context) {
	ticker := time.NewTicker(refetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.refetchCh:
		case <-ticker.C:
		}
		for _, projectId := range c.entities.DirtyProjects() {
			if err := c.RefreshProject(ctx, projectId); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Printf("client: refetch of project %s failed: %v", projectId, err)
			}
		}
	}
}
