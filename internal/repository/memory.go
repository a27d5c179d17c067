package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/lunevo/bidwire/internal/models"
)

// MemoryRepository is an in-memory implementation of ProjectRepository and
// BidRepository, used by tests and by the server's demo mode. Writes are
// guarded by one mutex, so SaveAcceptOutcome is atomic by construction.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[string]models.Project
	bids     map[string]models.Bid
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]models.Project),
		bids:     make(map[string]models.Bid),
	}
}

// CreateProject inserts a new project.
func (r *MemoryRepository) CreateProject(_ context.Context, project models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = project
	return nil
}

// GetProject returns a project by id.
func (r *MemoryRepository) GetProject(_ context.Context, projectId string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	project, ok := r.projects[projectId]
	if !ok {
		return nil, models.NewNotFoundError("project not found")
	}
	copied := project
	return &copied, nil
}

// GetProjects returns projects ordered by creation time.
func (r *MemoryRepository) GetProjects(_ context.Context, limit, offset int) ([]models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make([]models.Project, 0, len(r.projects))
	for _, project := range r.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	if offset >= len(projects) {
		return nil, nil
	}
	projects = projects[offset:]
	if limit > 0 && limit < len(projects) {
		projects = projects[:limit]
	}
	return projects, nil
}

// CreateBid inserts a new bid.
func (r *MemoryRepository) CreateBid(_ context.Context, bid models.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids[bid.ID] = cloneBid(bid)
	return nil
}

// GetBid returns a bid by id.
func (r *MemoryRepository) GetBid(_ context.Context, bidId string) (*models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bid, ok := r.bids[bidId]
	if !ok {
		return nil, models.NewNotFoundError("bid not found")
	}
	copied := cloneBid(bid)
	return &copied, nil
}

// GetProjectBids returns all bids for a project ordered by creation time.
func (r *MemoryRepository) GetProjectBids(_ context.Context, projectId string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var bids []models.Bid
	for _, bid := range r.bids {
		if bid.ProjectID == projectId {
			bids = append(bids, cloneBid(bid))
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].ID < bids[j].ID
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return bids, nil
}

// UpdateBid overwrites a bid.
func (r *MemoryRepository) UpdateBid(_ context.Context, bid models.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bids[bid.ID]; !ok {
		return models.NewNotFoundError("bid not found")
	}
	r.bids[bid.ID] = cloneBid(bid)
	return nil
}

// SaveAcceptOutcome persists the accept fan-out under one lock.
func (r *MemoryRepository) SaveAcceptOutcome(_ context.Context, project models.Project, bids []models.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[project.ID] = project
	for _, bid := range bids {
		r.bids[bid.ID] = cloneBid(bid)
	}
	return nil
}

func cloneBid(bid models.Bid) models.Bid {
	if bid.CounterOffer != nil {
		offer := *bid.CounterOffer
		bid.CounterOffer = &offer
	}
	return bid
}
