// Package engine holds the pure bid lifecycle state machine. It is shared by
// the client (optimistic validation before a round-trip) and the server
// (authoritative enforcement). All functions work on copies and perform no I/O;
// the server's confirmed outcome is always the system of record.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/lunevo/bidwire/internal/models"
)

const (
	minProposalTextLen   = 50
	minCounterMessageLen = 10
	maxCounterMessageLen = 500
	maxBudgetFactor      = 2.0 // a bid or counter may not exceed this multiple of the project budget
)

// allowedBidTransitions lists the reachable statuses from each bid status.
var allowedBidTransitions = map[models.BidStatus][]models.BidStatus{
	models.PendingBid:   {models.AcceptedBid, models.RejectedBid, models.CounteredBid, models.WithdrawnBid},
	models.CounteredBid: {models.PendingBid, models.RejectedBid, models.WithdrawnBid},
	models.AcceptedBid:  {},
	models.RejectedBid:  {},
	models.WithdrawnBid: {},
}

// CanTransition reports whether a bid may move from one status to another.
func CanTransition(from, to models.BidStatus) bool {
	for _, allowed := range allowedBidTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateProposal checks a bid proposal against the project before any
// round-trip. The server applies the same checks authoritatively.
func ValidateProposal(project *models.Project, amount float64, deliveryTimeDays int, proposalText string) error {
	if project.Status != models.OpenProject {
		return models.NewInvalidTransitionError("project is not open for bids")
	}
	if amount <= 0 {
		return models.NewValidationError("bid amount must be greater than zero")
	}
	if amount > project.Budget*maxBudgetFactor {
		return models.NewValidationError(fmt.Sprintf("bid amount exceeds %.0fx the project budget", maxBudgetFactor))
	}
	if deliveryTimeDays <= 0 {
		return models.NewValidationError("delivery time must be a positive number of days")
	}
	if len(strings.TrimSpace(proposalText)) < minProposalTextLen {
		return models.NewValidationError(fmt.Sprintf("proposal text must be at least %d characters", minProposalTextLen))
	}
	return nil
}

// NewBid validates a proposal and produces a new pending bid with the given id.
func NewBid(project *models.Project, id, freelancerId string, amount float64, deliveryTimeDays int, proposalText string) (*models.Bid, error) {
	if err := ValidateProposal(project, amount, deliveryTimeDays, proposalText); err != nil {
		return nil, err
	}
	if freelancerId == "" {
		return nil, models.NewValidationError("freelancerId is required")
	}
	return &models.Bid{
		ID:               id,
		ProjectID:        project.ID,
		FreelancerID:     freelancerId,
		Amount:           amount,
		DeliveryTimeDays: deliveryTimeDays,
		ProposalText:     proposalText,
		Status:           models.PendingBid,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// Accept applies the client's acceptance of one bid. It is the only transition
// with a multi-entity side effect: the project moves to InProgress with the
// winning freelancer assigned, and every sibling bid still open moves to
// Rejected. The updated copies are returned together so callers can persist
// them as one atomic unit.
func Accept(project *models.Project, bids []models.Bid, bidId, clientId string) (*models.Project, []models.Bid, error) {
	if project.ClientID != clientId {
		return nil, nil, models.NewValidationError("only the project's client can accept a bid")
	}
	if project.Status != models.OpenProject {
		return nil, nil, models.NewInvalidTransitionError("project is no longer open")
	}

	target := -1
	for i := range bids {
		if bids[i].ID == bidId {
			target = i
			break
		}
	}
	if target == -1 {
		return nil, nil, models.NewNotFoundError("bid not found on this project")
	}
	switch bids[target].Status {
	case models.PendingBid:
	case models.RejectedBid, models.WithdrawnBid:
		// A stale id from a lost race: the bid was resolved concurrently.
		return nil, nil, models.NewNotFoundError(fmt.Sprintf("bid was already %s", bids[target].Status))
	default:
		return nil, nil, models.NewInvalidTransitionError(fmt.Sprintf("bid is %s, only a pending bid can be accepted", bids[target].Status))
	}

	updatedProject := *project
	updatedProject.Status = models.InProgressProject
	updatedProject.AssignedFreelancerID = bids[target].FreelancerID

	updatedBids := make([]models.Bid, len(bids))
	copy(updatedBids, bids)
	for i := range updatedBids {
		if i == target {
			updatedBids[i].Status = models.AcceptedBid
			continue
		}
		// Withdrawn siblings stay withdrawn; everything still open is rejected.
		if updatedBids[i].Status == models.PendingBid || updatedBids[i].Status == models.CounteredBid {
			updatedBids[i].Status = models.RejectedBid
			updatedBids[i].CounterOffer = nil
		}
	}
	return &updatedProject, updatedBids, nil
}

// Reject applies the client's rejection of a bid. Rejecting an already
// rejected bid is a no-op, not an error.
func Reject(project *models.Project, bid *models.Bid, clientId string) (*models.Bid, error) {
	if project.ClientID != clientId {
		return nil, models.NewValidationError("only the project's client can reject a bid")
	}
	updated := *bid
	if bid.Status == models.RejectedBid {
		return &updated, nil
	}
	if bid.Status != models.PendingBid && bid.Status != models.CounteredBid {
		return nil, models.NewInvalidTransitionError(fmt.Sprintf("cannot reject a bid that is %s", bid.Status))
	}
	updated.Status = models.RejectedBid
	updated.CounterOffer = nil
	return &updated, nil
}

// Counter applies the client's counter-offer to a pending bid.
func Counter(project *models.Project, bid *models.Bid, clientId string, offer models.CounterOffer) (*models.Bid, error) {
	if project.ClientID != clientId {
		return nil, models.NewValidationError("only the project's client can counter a bid")
	}
	if bid.Status != models.PendingBid {
		return nil, models.NewInvalidTransitionError(fmt.Sprintf("cannot counter a bid that is %s", bid.Status))
	}
	if offer.Amount <= 0 {
		return nil, models.NewValidationError("counter-offer amount must be greater than zero")
	}
	if offer.Amount > project.Budget*maxBudgetFactor {
		return nil, models.NewValidationError(fmt.Sprintf("counter-offer amount exceeds %.0fx the project budget", maxBudgetFactor))
	}
	if offer.DeliveryTimeDays <= 0 {
		return nil, models.NewValidationError("counter-offer delivery time must be a positive number of days")
	}
	if msgLen := len(strings.TrimSpace(offer.Message)); msgLen < minCounterMessageLen || msgLen > maxCounterMessageLen {
		return nil, models.NewValidationError(fmt.Sprintf("counter-offer message must be %d-%d characters", minCounterMessageLen, maxCounterMessageLen))
	}

	updated := *bid
	updated.Status = models.CounteredBid
	updated.CounterOffer = &offer
	updated.CounterOfferAccepted = false
	updated.CounterOfferRejected = false
	return &updated, nil
}

// RespondToCounter applies the freelancer's answer to a counter-offer. Either
// way the bid returns to Pending and the counter-offer is consumed: on accept
// the bid takes the countered amount and delivery time, on decline the
// original terms stand. The client must still accept the bid afterwards.
func RespondToCounter(bid *models.Bid, freelancerId string, accepted bool) (*models.Bid, error) {
	if bid.FreelancerID != freelancerId {
		return nil, models.NewValidationError("only the bid's freelancer can respond to a counter-offer")
	}
	if bid.Status != models.CounteredBid || bid.CounterOffer == nil {
		return nil, models.NewInvalidTransitionError("bid has no counter-offer awaiting a response")
	}

	updated := *bid
	updated.Status = models.PendingBid
	if accepted {
		updated.Amount = bid.CounterOffer.Amount
		updated.DeliveryTimeDays = bid.CounterOffer.DeliveryTimeDays
		updated.CounterOfferAccepted = true
	} else {
		updated.CounterOfferRejected = true
	}
	updated.CounterOffer = nil
	return &updated, nil
}

// Withdraw applies the freelancer's withdrawal of an open bid.
func Withdraw(bid *models.Bid, freelancerId string) (*models.Bid, error) {
	if bid.FreelancerID != freelancerId {
		return nil, models.NewValidationError("only the bid's freelancer can withdraw it")
	}
	if bid.Status != models.PendingBid && bid.Status != models.CounteredBid {
		return nil, models.NewInvalidTransitionError(fmt.Sprintf("cannot withdraw a bid that is %s", bid.Status))
	}
	updated := *bid
	updated.Status = models.WithdrawnBid
	updated.CounterOffer = nil
	return &updated, nil
}
