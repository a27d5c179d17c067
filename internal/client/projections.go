package client

import (
	"sort"

	"github.com/lunevo/bidwire/internal/models"
)

// DashboardCounts is the derived summary a dashboard view renders. It is a
// disposable snapshot computed from the store, never a second copy of state.
type DashboardCounts struct {
	OpenProjects       int
	InProgressProjects int
	PendingBids        int
	CounteredBids      int
	AcceptedBids       int
	RejectedBids       int
	WithdrawnBids      int
}

// Dashboard computes the dashboard counts over all cached entities.
func (c *NegotiationClient) Dashboard() DashboardCounts {
	var counts DashboardCounts
	for _, project := range c.entities.Projects() {
		switch project.Status {
		case models.OpenProject:
			counts.OpenProjects++
		case models.InProgressProject:
			counts.InProgressProjects++
		}
		for _, bid := range c.entities.ProjectBids(project.ID) {
			switch bid.Status {
			case models.PendingBid:
				counts.PendingBids++
			case models.CounteredBid:
				counts.CounteredBids++
			case models.AcceptedBid:
				counts.AcceptedBids++
			case models.RejectedBid:
				counts.RejectedBids++
			case models.WithdrawnBid:
				counts.WithdrawnBids++
			}
		}
	}
	return counts
}

// BidSort selects the ordering of a bid table.
type BidSort string

const (
	SortByCreated BidSort = "created" // oldest first
	SortByAmount  BidSort = "amount"  // cheapest first
)

// BidTable returns a snapshot of a project's bids for rendering, optionally
// filtered by status. The returned slice is disposable; mutating it never
// touches the store.
func (c *NegotiationClient) BidTable(projectId string, sortBy BidSort, statuses ...models.BidStatus) []models.Bid {
	bids := c.entities.ProjectBids(projectId)
	if len(statuses) > 0 {
		wanted := make(map[models.BidStatus]struct{}, len(statuses))
		for _, status := range statuses {
			wanted[status] = struct{}{}
		}
		filtered := bids[:0:0]
		for _, bid := range bids {
			if _, ok := wanted[bid.Status]; ok {
				filtered = append(filtered, bid)
			}
		}
		bids = filtered
	}
	if sortBy == SortByAmount {
		sort.SliceStable(bids, func(i, j int) bool {
			return bids[i].Amount < bids[j].Amount
		})
	}
	return bids
}

// OpenProjects returns a snapshot of the cached projects still open for bids.
func (c *NegotiationClient) OpenProjects() []models.Project {
	var open []models.Project
	for _, project := range c.entities.Projects() {
		if project.Status == models.OpenProject {
			open = append(open, project)
		}
	}
	return open
}

// MyBids returns a snapshot of the session user's bids across all cached
// projects.
func (c *NegotiationClient) MyBids() []models.Bid {
	var mine []models.Bid
	for _, project := range c.entities.Projects() {
		for _, bid := range c.entities.ProjectBids(project.ID) {
			if bid.FreelancerID == c.userId {
				mine = append(mine, bid)
			}
		}
	}
	return mine
}
