// Package store holds the client-side entity cache: the canonical in-memory
// copy of projects and bids for the current session. It is a dumb keyed cache
// with observable mutation; no business rules live here. All mutation flows
// through the negotiation client, never through view code.
package store

import (
	"sort"
	"sync"

	"github.com/lunevo/bidwire/internal/models"
)

// Change describes a store mutation delivered to subscribers. BidID is empty
// for project-only changes.
type Change struct {
	ProjectID string
	BidID     string
}

// EntityStore caches projects and bids keyed by id, tracks the last applied
// resulting status per bid for duplicate detection, and keeps a dirty set of
// project ids whose entities need a refetch (unknown command outcomes).
type EntityStore struct {
	mu          sync.RWMutex
	projects    map[string]models.Project
	bids        map[string]models.Bid
	lastApplied map[string]models.BidStatus
	dirty       map[string]struct{}
	subscribers []func(Change)
}

// NewEntityStore creates an empty entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		projects:    make(map[string]models.Project),
		bids:        make(map[string]models.Bid),
		lastApplied: make(map[string]models.BidStatus),
		dirty:       make(map[string]struct{}),
	}
}

// GetProject returns a copy of the cached project.
func (s *EntityStore) GetProject(id string) (models.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[id]
	return project, ok
}

// GetBid returns a copy of the cached bid.
func (s *EntityStore) GetBid(id string) (models.Bid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bid, ok := s.bids[id]
	return bid, ok
}

// UpsertProject stores a project and notifies subscribers.
func (s *EntityStore) UpsertProject(project models.Project) {
	s.mu.Lock()
	s.projects[project.ID] = project
	subs := s.subscribers
	s.mu.Unlock()

	notify(subs, Change{ProjectID: project.ID})
}

// UpsertBid stores a bid, records its status as the last applied tuple for
// duplicate detection, and notifies subscribers.
func (s *EntityStore) UpsertBid(bid models.Bid) {
	s.mu.Lock()
	s.bids[bid.ID] = bid
	s.lastApplied[bid.ID] = bid.Status
	subs := s.subscribers
	s.mu.Unlock()

	notify(subs, Change{ProjectID: bid.ProjectID, BidID: bid.ID})
}

// DeleteBid removes a bid (used to discard a provisional optimistic bid).
func (s *EntityStore) DeleteBid(id string) {
	s.mu.Lock()
	bid, ok := s.bids[id]
	delete(s.bids, id)
	delete(s.lastApplied, id)
	subs := s.subscribers
	s.mu.Unlock()

	if ok {
		notify(subs, Change{ProjectID: bid.ProjectID, BidID: id})
	}
}

// LastApplied returns the resulting status of the last write applied to a bid.
func (s *EntityStore) LastApplied(bidId string) (models.BidStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.lastApplied[bidId]
	return status, ok
}

// MarkDirty flags a project's entities as needing a refetch.
func (s *EntityStore) MarkDirty(projectId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[projectId] = struct{}{}
}

// ClearDirty removes a project from the dirty set.
func (s *EntityStore) ClearDirty(projectId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, projectId)
}

// DirtyProjects returns the project ids currently flagged for refetch.
func (s *EntityStore) DirtyProjects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubscribeToChanges registers a callback invoked after every mutation.
// Callbacks run outside the store lock; registration order is not a delivery
// guarantee.
func (s *EntityStore) SubscribeToChanges(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Projects returns copies of all cached projects sorted by creation time.
func (s *EntityStore) Projects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := make([]models.Project, 0, len(s.projects))
	for _, project := range s.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects
}

// ProjectBids returns copies of all cached bids for a project sorted by
// creation time.
func (s *EntityStore) ProjectBids(projectId string) []models.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bids []models.Bid
	for _, bid := range s.bids {
		if bid.ProjectID == projectId {
			bids = append(bids, bid)
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].ID < bids[j].ID
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return bids
}

func notify(subs []func(Change), change Change) {
	for _, fn := range subs {
		fn(change)
	}
}
