package models

type EventType string // Type of a push event

const (
	NewBidEvent               EventType = "newBid"
	BidAcceptedEvent          EventType = "bidAccepted"
	YourBidAcceptedEvent      EventType = "yourBidAccepted"
	CounterOfferEvent         EventType = "counterOffer"
	CounterOfferResponseEvent EventType = "counterOfferResponseReceived"
)

// Event is the push-channel envelope. Events are idempotent snapshots: each
// carries the resulting entity state, never a delta, so applying the same
// event twice is a no-op. OriginRequestID echoes the request id of the
// command that caused the change, letting a client recognize the broadcast
// echo of its own action.
type Event struct {
	Type            EventType     `json:"type"`
	ProjectID       string        `json:"projectId,omitempty"`
	BidID           string        `json:"bidId,omitempty"`
	BidStatus       BidStatus     `json:"bidStatus,omitempty"`
	FreelancerID    string        `json:"freelancerId,omitempty"`
	ClientID        string        `json:"clientId,omitempty"`
	Bid             *Bid          `json:"bid,omitempty"`
	Project         *Project      `json:"project,omitempty"`
	CounterOffer    *CounterOffer `json:"counterOffer,omitempty"`
	Accepted        *bool         `json:"accepted,omitempty"`
	Amount          float64       `json:"amount,omitempty"`
	DeliveryTime    int           `json:"deliveryTimeDays,omitempty"`
	Message         string        `json:"message,omitempty"`
	OriginRequestID string        `json:"originRequestId,omitempty"`
}

// EventBatch is the response body of the event long-poll endpoint. NextSince
// is the cursor to pass on the next poll; it advances monotonically per room.
type EventBatch struct {
	Events    []Event `json:"events"`
	NextSince int     `json:"nextSince"`
}
