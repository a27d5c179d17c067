package models

import "time"

type BidStatus string // Status of a bid

const (
	PendingBid   BidStatus = "Pending"   // Bid is awaiting a client decision
	CounteredBid BidStatus = "Countered" // Client made a counter-offer, awaiting freelancer response
	AcceptedBid  BidStatus = "Accepted"  // Client accepted the bid
	RejectedBid  BidStatus = "Rejected"  // Client rejected the bid
	WithdrawnBid BidStatus = "Withdrawn" // Freelancer withdrew the bid
)

// CounterOffer is a client-proposed amendment to a pending bid. It is embedded
// in the bid and present iff the bid status is Countered. One round only: a
// counter-offer is consumed by the freelancer's response, never nested.
type CounterOffer struct {
	Amount           float64   `json:"amount"`
	DeliveryTimeDays int       `json:"deliveryTimeDays"`
	Message          string    `json:"message"`
	ProposedAt       time.Time `json:"proposedAt"`
}

// Bid represents a freelancer's proposal against an open project.
type Bid struct {
	ID                   string        `json:"id"`
	ProjectID            string        `json:"projectId"`
	FreelancerID         string        `json:"freelancerId"`
	Amount               float64       `json:"amount"`
	DeliveryTimeDays     int           `json:"deliveryTimeDays"`
	ProposalText         string        `json:"proposalText"`
	Status               BidStatus     `json:"status"`
	CounterOffer         *CounterOffer `json:"counterOffer,omitempty"`
	CounterOfferAccepted bool          `json:"counterOfferAccepted,omitempty"`
	CounterOfferRejected bool          `json:"counterOfferRejected,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
}

// BidRequest represents the request body for creating a bid.
type BidRequest struct {
	ProjectID        string  `json:"projectId"`
	FreelancerID     string  `json:"freelancerId"`
	Amount           float64 `json:"amount"`
	DeliveryTimeDays int     `json:"deliveryTimeDays"`
	ProposalText     string  `json:"proposalText"`
	RequestID        string  `json:"requestId"`
}

// DecisionRequest represents the request body for accepting or rejecting a bid.
type DecisionRequest struct {
	ClientID  string `json:"clientId"`
	RequestID string `json:"requestId"`
}

// CounterRequest represents the request body for countering a bid.
type CounterRequest struct {
	ClientID         string  `json:"clientId"`
	Amount           float64 `json:"amount"`
	DeliveryTimeDays int     `json:"deliveryTimeDays"`
	Message          string  `json:"message"`
	RequestID        string  `json:"requestId"`
}

// RespondRequest represents the request body for answering a counter-offer.
type RespondRequest struct {
	FreelancerID string `json:"freelancerId"`
	Accepted     bool   `json:"accepted"`
	RequestID    string `json:"requestId"`
}

// WithdrawRequest represents the request body for withdrawing a bid.
type WithdrawRequest struct {
	FreelancerID string `json:"freelancerId"`
	RequestID    string `json:"requestId"`
}

// CommandResult is the uniform response body of every mutating command.
// Only the entities touched by the command are populated.
type CommandResult struct {
	Bid     *Bid     `json:"bid,omitempty"`
	Project *Project `json:"project,omitempty"`
	Bids    []Bid    `json:"bids,omitempty"`
}
