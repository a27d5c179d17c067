package models

import "time"

type ProjectStatus string // Status of a project

const (
	OpenProject       ProjectStatus = "Open"       // Project is accepting bids
	InProgressProject ProjectStatus = "InProgress" // Project has an assigned freelancer
	CompletedProject  ProjectStatus = "Completed"  // Project work is finished
	CancelledProject  ProjectStatus = "Cancelled"  // Project was cancelled by the client
)

// Project represents a client's project that freelancers bid on.
// AssignedFreelancerID is set iff the status is InProgress or Completed.
type Project struct {
	ID                   string        `json:"id"`
	Title                string        `json:"title"`
	Status               ProjectStatus `json:"status"`
	Budget               float64       `json:"budget"`
	Deadline             time.Time     `json:"deadline"`
	ClientID             string        `json:"clientId"`
	AssignedFreelancerID string        `json:"assignedFreelancerId,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
}

// ProjectRequest represents the request body for creating a project.
type ProjectRequest struct {
	Title    string    `json:"title"`
	Budget   float64   `json:"budget"`
	Deadline time.Time `json:"deadline"`
	ClientID string    `json:"clientId"`
}
