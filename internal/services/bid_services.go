package services

import (
	"context"
	"log"
	"time"

	"github.com/lunevo/bidwire/internal/engine"
	"github.com/lunevo/bidwire/internal/events"
	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/repository"

	"github.com/google/uuid"
)

// BidService handles the authoritative side of the negotiation: it applies the
// engine's transitions to persisted entities and publishes each logical change
// exactly once per target room. Targeted events go to the affected user,
// broadcast echoes go back to the acting user's own room so every view the
// actor has open converges without a refetch.
type BidService struct {
	Projects repository.ProjectRepository
	Bids     repository.BidRepository
	Hub      *events.Hub
	Logger   *log.Logger
}

// NewBidService creates a new instance of BidService.
func NewBidService(projects repository.ProjectRepository, bids repository.BidRepository, hub *events.Hub, logger *log.Logger) *BidService {
	return &BidService{Projects: projects, Bids: bids, Hub: hub, Logger: logger}
}

// CreateBid creates a new pending bid on an open project.
func (s *BidService) CreateBid(ctx context.Context, req models.BidRequest) (*models.CommandResult, error) {
	project, err := s.Projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	bid, err := engine.NewBid(project, uuid.New().String(), req.FreelancerID, req.Amount, req.DeliveryTimeDays, req.ProposalText)
	if err != nil {
		return nil, err
	}
	if err := s.Bids.CreateBid(ctx, *bid); err != nil {
		return nil, err
	}

	s.Hub.Publish(models.Event{
		Type:            models.NewBidEvent,
		ProjectID:       project.ID,
		BidID:           bid.ID,
		BidStatus:       bid.Status,
		FreelancerID:    bid.FreelancerID,
		Bid:             bid,
		OriginRequestID: req.RequestID,
	}, project.ClientID, bid.FreelancerID)

	return &models.CommandResult{Bid: bid}, nil
}

// AcceptBid accepts one bid: the project moves to InProgress and every sibling
// bid still open is rejected, persisted as one atomic unit.
func (s *BidService) AcceptBid(ctx context.Context, projectId, bidId string, req models.DecisionRequest) (*models.CommandResult, error) {
	project, err := s.Projects.GetProject(ctx, projectId)
	if err != nil {
		return nil, err
	}
	bids, err := s.Bids.GetProjectBids(ctx, projectId)
	if err != nil {
		return nil, err
	}

	updatedProject, updatedBids, err := engine.Accept(project, bids, bidId, req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.Bids.SaveAcceptOutcome(ctx, *updatedProject, updatedBids); err != nil {
		return nil, err
	}

	winner := updatedProject.AssignedFreelancerID
	s.Logger.Printf("project %s assigned to %s, %d bids resolved", updatedProject.ID, winner, len(updatedBids))
	rooms := []string{updatedProject.ClientID}
	for _, bid := range updatedBids {
		rooms = append(rooms, bid.FreelancerID)
	}
	s.Hub.Publish(models.Event{
		Type:            models.BidAcceptedEvent,
		ProjectID:       updatedProject.ID,
		BidID:           bidId,
		FreelancerID:    winner,
		Project:         updatedProject,
		OriginRequestID: req.RequestID,
	}, dedupe(rooms)...)
	s.Hub.Publish(models.Event{
		Type:            models.YourBidAcceptedEvent,
		ProjectID:       updatedProject.ID,
		BidID:           bidId,
		Message:         "your bid on " + updatedProject.Title + " was accepted",
		OriginRequestID: req.RequestID,
	}, winner)

	return &models.CommandResult{Project: updatedProject, Bids: updatedBids}, nil
}

// RejectBid rejects a bid. Rejecting an already rejected bid succeeds without
// a change.
func (s *BidService) RejectBid(ctx context.Context, projectId, bidId string, req models.DecisionRequest) (*models.CommandResult, error) {
	project, bid, err := s.loadProjectBid(ctx, projectId, bidId)
	if err != nil {
		return nil, err
	}

	updated, err := engine.Reject(project, bid, req.ClientID)
	if err != nil {
		return nil, err
	}
	if updated.Status != bid.Status {
		if err := s.Bids.UpdateBid(ctx, *updated); err != nil {
			return nil, err
		}
	}
	return &models.CommandResult{Bid: updated}, nil
}

// CounterBid attaches the client's counter-offer to a pending bid.
func (s *BidService) CounterBid(ctx context.Context, projectId, bidId string, req models.CounterRequest) (*models.CommandResult, error) {
	project, bid, err := s.loadProjectBid(ctx, projectId, bidId)
	if err != nil {
		return nil, err
	}

	offer := models.CounterOffer{
		Amount:           req.Amount,
		DeliveryTimeDays: req.DeliveryTimeDays,
		Message:          req.Message,
		ProposedAt:       time.Now().UTC(),
	}
	updated, err := engine.Counter(project, bid, req.ClientID, offer)
	if err != nil {
		return nil, err
	}
	if err := s.Bids.UpdateBid(ctx, *updated); err != nil {
		return nil, err
	}

	s.Hub.Publish(models.Event{
		Type:            models.CounterOfferEvent,
		ProjectID:       project.ID,
		BidID:           updated.ID,
		BidStatus:       updated.Status,
		FreelancerID:    updated.FreelancerID,
		ClientID:        project.ClientID,
		CounterOffer:    updated.CounterOffer,
		OriginRequestID: req.RequestID,
	}, updated.FreelancerID, project.ClientID)

	return &models.CommandResult{Bid: updated}, nil
}

// RespondToCounter applies the freelancer's answer to a counter-offer. The
// bid returns to Pending either way; on accept it carries the countered terms
// and the client must still accept it.
func (s *BidService) RespondToCounter(ctx context.Context, bidId string, req models.RespondRequest) (*models.CommandResult, error) {
	bid, err := s.Bids.GetBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	project, err := s.Projects.GetProject(ctx, bid.ProjectID)
	if err != nil {
		return nil, err
	}

	updated, err := engine.RespondToCounter(bid, req.FreelancerID, req.Accepted)
	if err != nil {
		return nil, err
	}
	if err := s.Bids.UpdateBid(ctx, *updated); err != nil {
		return nil, err
	}

	accepted := req.Accepted
	event := models.Event{
		Type:            models.CounterOfferResponseEvent,
		ProjectID:       project.ID,
		BidID:           updated.ID,
		BidStatus:       updated.Status,
		Accepted:        &accepted,
		FreelancerID:    updated.FreelancerID,
		OriginRequestID: req.RequestID,
	}
	if accepted {
		event.Amount = updated.Amount
		event.DeliveryTime = updated.DeliveryTimeDays
	}
	s.Hub.Publish(event, project.ClientID, updated.FreelancerID)

	return &models.CommandResult{Bid: updated}, nil
}

// WithdrawBid withdraws an open bid.
func (s *BidService) WithdrawBid(ctx context.Context, bidId string, req models.WithdrawRequest) (*models.CommandResult, error) {
	bid, err := s.Bids.GetBid(ctx, bidId)
	if err != nil {
		return nil, err
	}

	updated, err := engine.Withdraw(bid, req.FreelancerID)
	if err != nil {
		return nil, err
	}
	if err := s.Bids.UpdateBid(ctx, *updated); err != nil {
		return nil, err
	}
	return &models.CommandResult{Bid: updated}, nil
}

// GetProjectBids returns all bids on a project.
func (s *BidService) GetProjectBids(ctx context.Context, projectId string) ([]models.Bid, error) {
	if _, err := s.Projects.GetProject(ctx, projectId); err != nil {
		return nil, err
	}
	return s.Bids.GetProjectBids(ctx, projectId)
}

func (s *BidService) loadProjectBid(ctx context.Context, projectId, bidId string) (*models.Project, *models.Bid, error) {
	project, err := s.Projects.GetProject(ctx, projectId)
	if err != nil {
		return nil, nil, err
	}
	bid, err := s.Bids.GetBid(ctx, bidId)
	if err != nil {
		return nil, nil, err
	}
	if bid.ProjectID != project.ID {
		return nil, nil, models.NewNotFoundError("bid does not belong to this project")
	}
	return project, bid, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
