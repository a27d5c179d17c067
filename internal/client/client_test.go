package client

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunevo/bidwire/internal/events"
	"github.com/lunevo/bidwire/internal/handlers"
	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/repository"
	"github.com/lunevo/bidwire/internal/router"
	"github.com/lunevo/bidwire/internal/services"
	"github.com/lunevo/bidwire/internal/transport"
)

const testProposal = "I have shipped three marketplaces like this one and can start on Monday."

// newMarketplace starts a full server over the in-memory repository, so client
// sessions talk to the real handlers, services, engine and event hub.
func newMarketplace(t *testing.T) *httptest.Server {
	t.Helper()

	repo := repository.NewMemoryRepository()
	hub := events.NewHub()
	logger := log.New(io.Discard, "", 0)

	projectService := services.NewProjectService(repo)
	bidService := services.NewBidService(repo, repo, hub, logger)

	routes := router.InitRoutes(
		handlers.NewProjectHandler(projectService, logger, time.Second),
		handlers.NewBidHandler(bidService, logger, time.Second),
		handlers.NewEventHandler(hub, logger, 0),
	)
	server := httptest.NewServer(routes)
	t.Cleanup(server.Close)
	return server
}

// newIdleSession builds a client session without starting its push channel.
func newIdleSession(t *testing.T, serverURL, userId string) *NegotiationClient {
	t.Helper()

	adapter, err := transport.NewAdapter(transport.Config{
		ServerURL:   serverURL,
		UserID:      userId,
		Logger:      log.New(io.Discard, "", 0),
		SendTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return New(adapter, log.New(io.Discard, "", 0))
}

// newSession builds a client session and starts its push channel.
func newSession(t *testing.T, ctx context.Context, serverURL, userId string) *NegotiationClient {
	t.Helper()

	c := newIdleSession(t, serverURL, userId)
	go c.Run(ctx)
	// Give the session a moment to join its notification room.
	time.Sleep(50 * time.Millisecond)
	return c
}

func bidStatus(c *NegotiationClient, bidId string) models.BidStatus {
	bid, ok := c.Store().GetBid(bidId)
	if !ok {
		return ""
	}
	return bid.Status
}

func TestNegotiationConvergesAcrossSessions(t *testing.T) {
	server := newMarketplace(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := newSession(t, ctx, server.URL, "client-1")
	freelancer := newSession(t, ctx, server.URL, "freelancer-1")
	rival := newSession(t, ctx, server.URL, "freelancer-2")

	project, err := owner.CreateProject(ctx, models.ProjectRequest{
		Title:    "Landing page",
		Budget:   1000,
		ClientID: "client-1",
	})
	require.NoError(t, err)

	require.NoError(t, freelancer.LoadProjects(ctx))
	require.NoError(t, rival.LoadProjects(ctx))

	bid, err := freelancer.Propose(ctx, project.ID, 800, 14, testProposal)
	require.NoError(t, err)
	assert.Equal(t, models.PendingBid, bid.Status)

	rivalBid, err := rival.Propose(ctx, project.ID, 700, 20, testProposal)
	require.NoError(t, err)

	// The owner's session learns about both bids through push alone.
	require.Eventually(t, func() bool {
		return len(owner.Store().ProjectBids(project.ID)) == 2
	}, 3*time.Second, 20*time.Millisecond, "owner did not receive both newBid events")

	// Owner counters the first bid; the freelancer's session converges on
	// Countered with the offer attached.
	require.NoError(t, owner.Counter(ctx, project.ID, bid.ID, 600, 10, "Can you do it for 600 in 10 days?"))

	require.Eventually(t, func() bool {
		got, ok := freelancer.Store().GetBid(bid.ID)
		return ok && got.Status == models.CounteredBid && got.CounterOffer != nil
	}, 3*time.Second, 20*time.Millisecond, "freelancer did not receive the counter-offer")

	// Freelancer takes the counter: the bid returns to Pending on the new
	// terms everywhere, and the owner still has to accept it.
	require.NoError(t, freelancer.RespondToCounter(ctx, bid.ID, true))

	require.Eventually(t, func() bool {
		got, ok := owner.Store().GetBid(bid.ID)
		return ok && got.Status == models.PendingBid && got.Amount == 600 && got.CounterOfferAccepted
	}, 3*time.Second, 20*time.Millisecond, "owner did not see the accepted counter terms")

	var notified []string
	freelancer.OnNotification(func(message string) {
		notified = append(notified, message)
	})

	require.NoError(t, owner.Accept(ctx, project.ID, bid.ID))

	// Every session converges: winner accepted, rival rejected, project
	// assigned. The rival only ever saw its own bid, so it is checked on that.
	for name, c := range map[string]*NegotiationClient{"owner": owner, "freelancer": freelancer} {
		c := c
		require.Eventually(t, func() bool {
			gotProject, ok := c.Store().GetProject(project.ID)
			if !ok || gotProject.Status != models.InProgressProject {
				return false
			}
			return bidStatus(c, bid.ID) == models.AcceptedBid && bidStatus(c, rivalBid.ID) == models.RejectedBid
		}, 3*time.Second, 20*time.Millisecond, "session %s did not converge", name)
	}
	require.Eventually(t, func() bool {
		gotProject, ok := rival.Store().GetProject(project.ID)
		return ok && gotProject.Status == models.InProgressProject && bidStatus(rival, rivalBid.ID) == models.RejectedBid
	}, 3*time.Second, 20*time.Millisecond, "rival session did not converge")

	assert.Equal(t, []string{"your bid on Landing page was accepted"}, notified)

	counts := owner.Dashboard()
	assert.Equal(t, 1, counts.InProgressProjects)
	assert.Equal(t, 1, counts.AcceptedBids)
	assert.Equal(t, 1, counts.RejectedBids)
}

func TestProposeValidationFailsBeforeSending(t *testing.T) {
	server := newMarketplace(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := newSession(t, ctx, server.URL, "client-1")
	freelancer := newSession(t, ctx, server.URL, "freelancer-1")

	project, err := owner.CreateProject(ctx, models.ProjectRequest{
		Title:    "Landing page",
		Budget:   1000,
		ClientID: "client-1",
	})
	require.NoError(t, err)
	require.NoError(t, freelancer.LoadProjects(ctx))

	_, err = freelancer.Propose(ctx, project.ID, 2500, 14, testProposal)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindValidation))

	// The rejected proposal leaves no provisional record behind.
	assert.Empty(t, freelancer.Store().ProjectBids(project.ID))
}

func TestProposeConfirmationVisibleWithoutPush(t *testing.T) {
	server := newMarketplace(t)
	ctx := context.Background()

	// Neither session runs the push channel: the confirmed bid must land in
	// the store from the command response alone.
	owner := newIdleSession(t, server.URL, "client-1")
	freelancer := newIdleSession(t, server.URL, "freelancer-1")

	project, err := owner.CreateProject(ctx, models.ProjectRequest{
		Title:    "Landing page",
		Budget:   1000,
		ClientID: "client-1",
	})
	require.NoError(t, err)
	require.NoError(t, freelancer.LoadProjects(ctx))

	bid, err := freelancer.Propose(ctx, project.ID, 800, 14, testProposal)
	require.NoError(t, err)

	stored, ok := freelancer.Store().GetBid(bid.ID)
	require.True(t, ok, "confirmed bid missing from the store")
	assert.Equal(t, models.PendingBid, stored.Status)

	// The provisional record is gone and the response scheduled no refetch.
	require.Len(t, freelancer.Store().ProjectBids(project.ID), 1)
	assert.Empty(t, freelancer.Store().DirtyProjects())
}

func TestDefiniteFailureRollsBackOptimisticWrite(t *testing.T) {
	server := newMarketplace(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := newSession(t, ctx, server.URL, "client-1")
	freelancer := newSession(t, ctx, server.URL, "freelancer-1")

	project, err := owner.CreateProject(ctx, models.ProjectRequest{
		Title:    "Landing page",
		Budget:   1000,
		ClientID: "client-1",
	})
	require.NoError(t, err)
	require.NoError(t, freelancer.LoadProjects(ctx))

	bid, err := freelancer.Propose(ctx, project.ID, 800, 14, testProposal)
	require.NoError(t, err)

	// Wait for the push echo to replace the provisional record, so the
	// withdraw below targets the server-assigned bid.
	require.Eventually(t, func() bool {
		return bidStatus(freelancer, bid.ID) == models.PendingBid
	}, 3*time.Second, 20*time.Millisecond)

	// A second owner session accepts the bid behind this session's back.
	sneaky := newSession(t, ctx, server.URL, "client-1")
	require.NoError(t, sneaky.RefreshProject(ctx, project.ID))
	require.NoError(t, sneaky.Accept(ctx, project.ID, bid.ID))

	// The freelancer withdraws against a now-stale local Pending. The engine
	// allows it locally, the server refuses, and settle rolls the store back
	// before the push events land.
	err = freelancer.Withdraw(ctx, bid.ID)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidTransition))

	// The refetch triggered by the conflict converges the session on the
	// server's truth.
	require.Eventually(t, func() bool {
		return bidStatus(freelancer, bid.ID) == models.AcceptedBid
	}, 5*time.Second, 20*time.Millisecond, "freelancer did not converge after the conflict")
}

func TestBidTableProjection(t *testing.T) {
	server := newMarketplace(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := newSession(t, ctx, server.URL, "client-1")
	project, err := owner.CreateProject(ctx, models.ProjectRequest{
		Title:    "Landing page",
		Budget:   1000,
		ClientID: "client-1",
	})
	require.NoError(t, err)

	for i, amount := range []float64{900, 700, 800} {
		freelancer := newSession(t, ctx, server.URL, "freelancer-"+string(rune('a'+i)))
		require.NoError(t, freelancer.LoadProjects(ctx))
		_, err := freelancer.Propose(ctx, project.ID, amount, 10, testProposal)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return len(owner.Store().ProjectBids(project.ID)) == 3
	}, 3*time.Second, 20*time.Millisecond)

	byAmount := owner.BidTable(project.ID, SortByAmount)
	require.Len(t, byAmount, 3)
	assert.Equal(t, float64(700), byAmount[0].Amount)
	assert.Equal(t, float64(800), byAmount[1].Amount)
	assert.Equal(t, float64(900), byAmount[2].Amount)

	pendingOnly := owner.BidTable(project.ID, SortByCreated, models.PendingBid)
	assert.Len(t, pendingOnly, 3)
	assert.Empty(t, owner.BidTable(project.ID, SortByCreated, models.WithdrawnBid))
}
