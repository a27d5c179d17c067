package services

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunevo/bidwire/internal/events"
	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/repository"
)

const testProposal = "I have shipped three marketplaces like this one and can start on Monday."

func newBidService(t *testing.T) (*BidService, *repository.MemoryRepository, *events.Hub) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	hub := events.NewHub()
	return NewBidService(repo, repo, hub, log.New(io.Discard, "", 0)), repo, hub
}

func seedProject(t *testing.T, repo *repository.MemoryRepository, clientId string) string {
	t.Helper()
	err := repo.CreateProject(context.Background(), models.Project{
		ID:        "project-1",
		Title:     "Landing page",
		Status:    models.OpenProject,
		Budget:    1000,
		ClientID:  clientId,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return "project-1"
}

func createBid(t *testing.T, svc *BidService, projectId, freelancerId string) *models.Bid {
	t.Helper()
	result, err := svc.CreateBid(context.Background(), models.BidRequest{
		ProjectID:        projectId,
		FreelancerID:     freelancerId,
		Amount:           800,
		DeliveryTimeDays: 14,
		ProposalText:     testProposal,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Bid)
	return result.Bid
}

func TestCreateBid(t *testing.T) {
	svc, repo, hub := newBidService(t)
	projectId := seedProject(t, repo, "client-1")

	result, err := svc.CreateBid(context.Background(), models.BidRequest{
		ProjectID:        projectId,
		FreelancerID:     "freelancer-1",
		Amount:           800,
		DeliveryTimeDays: 14,
		ProposalText:     testProposal,
		RequestID:        "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PendingBid, result.Bid.Status)
	assert.NotEmpty(t, result.Bid.ID)

	// Both the client and the acting freelancer get the event, with the
	// request id echoed for provisional-record cleanup.
	for _, userId := range []string{"client-1", "freelancer-1"} {
		batch, _, err := hub.Poll(context.Background(), userId, 0, 10*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, batch, 1, "room %s", userId)
		assert.Equal(t, models.NewBidEvent, batch[0].Type)
		assert.Equal(t, "req-1", batch[0].OriginRequestID)
	}

	t.Run("validation failure creates nothing", func(t *testing.T) {
		_, err := svc.CreateBid(context.Background(), models.BidRequest{
			ProjectID:        projectId,
			FreelancerID:     "freelancer-2",
			Amount:           5000,
			DeliveryTimeDays: 14,
			ProposalText:     testProposal,
		})
		assert.True(t, models.IsKind(err, models.KindValidation))
		bids, err := svc.GetProjectBids(context.Background(), projectId)
		require.NoError(t, err)
		assert.Len(t, bids, 1)
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := svc.CreateBid(context.Background(), models.BidRequest{
			ProjectID:        "project-404",
			FreelancerID:     "freelancer-1",
			Amount:           800,
			DeliveryTimeDays: 14,
			ProposalText:     testProposal,
		})
		assert.True(t, models.IsKind(err, models.KindNotFound))
	})
}

func TestAcceptBidFansOutAtomically(t *testing.T) {
	svc, repo, hub := newBidService(t)
	projectId := seedProject(t, repo, "client-1")

	winner := createBid(t, svc, projectId, "freelancer-1")
	createBid(t, svc, projectId, "freelancer-2")

	withdrawnBid := createBid(t, svc, projectId, "freelancer-3")
	_, err := svc.WithdrawBid(context.Background(), withdrawnBid.ID, models.WithdrawRequest{FreelancerID: "freelancer-3"})
	require.NoError(t, err)

	clientCursor := hub.Cursor("client-1")
	winnerCursor := hub.Cursor("freelancer-1")

	result, err := svc.AcceptBid(context.Background(), projectId, winner.ID, models.DecisionRequest{ClientID: "client-1"})
	require.NoError(t, err)

	assert.Equal(t, models.InProgressProject, result.Project.Status)
	assert.Equal(t, "freelancer-1", result.Project.AssignedFreelancerID)

	statuses := make(map[string]models.BidStatus)
	for _, bid := range result.Bids {
		statuses[bid.FreelancerID] = bid.Status
	}
	assert.Equal(t, models.AcceptedBid, statuses["freelancer-1"])
	assert.Equal(t, models.RejectedBid, statuses["freelancer-2"])
	assert.Equal(t, models.WithdrawnBid, statuses["freelancer-3"])

	// Persisted, not just returned.
	stored, err := repo.GetProject(context.Background(), projectId)
	require.NoError(t, err)
	assert.Equal(t, models.InProgressProject, stored.Status)

	// One broadcast to the client's room, broadcast plus the targeted
	// notification to the winner's.
	batch, _, err := hub.Poll(context.Background(), "client-1", clientCursor, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.BidAcceptedEvent, batch[0].Type)
	assert.Equal(t, winner.ID, batch[0].BidID)
	assert.Equal(t, "freelancer-1", batch[0].FreelancerID)

	batch, _, err = hub.Poll(context.Background(), "freelancer-1", winnerCursor, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, models.BidAcceptedEvent, batch[0].Type)
	assert.Equal(t, models.YourBidAcceptedEvent, batch[1].Type)

	t.Run("second accept fails, project no longer open", func(t *testing.T) {
		_, err := svc.AcceptBid(context.Background(), projectId, winner.ID, models.DecisionRequest{ClientID: "client-1"})
		assert.True(t, models.IsKind(err, models.KindInvalidTransition))
	})
}

func TestRejectBid(t *testing.T) {
	svc, repo, _ := newBidService(t)
	projectId := seedProject(t, repo, "client-1")
	bid := createBid(t, svc, projectId, "freelancer-1")

	result, err := svc.RejectBid(context.Background(), projectId, bid.ID, models.DecisionRequest{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Equal(t, models.RejectedBid, result.Bid.Status)

	// Idempotent: rejecting again succeeds without a change.
	result, err = svc.RejectBid(context.Background(), projectId, bid.ID, models.DecisionRequest{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Equal(t, models.RejectedBid, result.Bid.Status)

	t.Run("bid on another project", func(t *testing.T) {
		require.NoError(t, repo.CreateProject(context.Background(), models.Project{
			ID: "project-2", Status: models.OpenProject, Budget: 1000, ClientID: "client-1",
		}))
		_, err := svc.RejectBid(context.Background(), "project-2", bid.ID, models.DecisionRequest{ClientID: "client-1"})
		assert.True(t, models.IsKind(err, models.KindNotFound))
	})
}

func TestCounterAndRespond(t *testing.T) {
	svc, repo, hub := newBidService(t)
	projectId := seedProject(t, repo, "client-1")
	bid := createBid(t, svc, projectId, "freelancer-1")
	freelancerCursor := hub.Cursor("freelancer-1")

	result, err := svc.CounterBid(context.Background(), projectId, bid.ID, models.CounterRequest{
		ClientID:         "client-1",
		Amount:           600,
		DeliveryTimeDays: 10,
		Message:          "Can you do it for 600 in 10 days?",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CounteredBid, result.Bid.Status)
	require.NotNil(t, result.Bid.CounterOffer)

	batch, next, err := hub.Poll(context.Background(), "freelancer-1", freelancerCursor, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.CounterOfferEvent, batch[0].Type)
	require.NotNil(t, batch[0].CounterOffer)
	assert.Equal(t, float64(600), batch[0].CounterOffer.Amount)

	result, err = svc.RespondToCounter(context.Background(), bid.ID, models.RespondRequest{
		FreelancerID: "freelancer-1",
		Accepted:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PendingBid, result.Bid.Status)
	assert.Equal(t, float64(600), result.Bid.Amount)
	assert.Equal(t, 10, result.Bid.DeliveryTimeDays)
	assert.True(t, result.Bid.CounterOfferAccepted)
	assert.Nil(t, result.Bid.CounterOffer)

	batch, _, err = hub.Poll(context.Background(), "freelancer-1", next, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.CounterOfferResponseEvent, batch[0].Type)
	require.NotNil(t, batch[0].Accepted)
	assert.True(t, *batch[0].Accepted)
	assert.Equal(t, float64(600), batch[0].Amount)

	// The accepted counter still needs the client's final accept.
	accepted, err := svc.AcceptBid(context.Background(), projectId, bid.ID, models.DecisionRequest{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Equal(t, models.InProgressProject, accepted.Project.Status)
}

func TestWithdrawBid(t *testing.T) {
	svc, repo, _ := newBidService(t)
	projectId := seedProject(t, repo, "client-1")
	bid := createBid(t, svc, projectId, "freelancer-1")

	result, err := svc.WithdrawBid(context.Background(), bid.ID, models.WithdrawRequest{FreelancerID: "freelancer-1"})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawnBid, result.Bid.Status)

	_, err = svc.WithdrawBid(context.Background(), bid.ID, models.WithdrawRequest{FreelancerID: "freelancer-1"})
	assert.True(t, models.IsKind(err, models.KindInvalidTransition))
}
