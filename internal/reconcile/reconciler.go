// Package reconcile merges inbound push events and command results into the
// entity store without regressing state or double-applying a transition. The
// same logical change can arrive several times: as a local optimistic write,
// as the command response, as a targeted push event and as a broadcast echo.
// The merge rules here make those arrivals commutative and idempotent, so
// arrival order does not affect the final state.
package reconcile

import (
	"log"

	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/store"
)

// bidStatusPriority orders bid statuses for the merge rule: an event may never
// overwrite a higher-priority status with a lower one, except for the single
// sanctioned downgrade Countered -> Pending when a counter-offer is resolved.
var bidStatusPriority = map[models.BidStatus]int{
	models.PendingBid:   1,
	models.CounteredBid: 2,
	models.RejectedBid:  3,
	models.AcceptedBid:  4,
	models.WithdrawnBid: 5,
}

// projectStatusPriority orders project statuses the same way.
var projectStatusPriority = map[models.ProjectStatus]int{
	models.OpenProject:       1,
	models.InProgressProject: 2,
	models.CompletedProject:  3,
	models.CancelledProject:  3,
}

// Reconciler applies events and command results to the entity store. Unknown
// entities referenced by an event trigger a background refetch through the
// injected callback rather than a fabricated partial record.
type Reconciler struct {
	entities *store.EntityStore
	refetch  func(projectId string)
	logger   *log.Logger
	notify   func(message string)
}

// New creates a reconciler over the given store. refetch is invoked with a
// project id whenever an event references entities the store does not hold.
func New(entities *store.EntityStore, refetch func(projectId string), logger *log.Logger) *Reconciler {
	if refetch == nil {
		refetch = func(string) {}
	}
	return &Reconciler{entities: entities, refetch: refetch, logger: logger}
}

// OnNotification registers a callback for user-facing notification events
// that carry no entity state (yourBidAccepted).
func (r *Reconciler) OnNotification(fn func(message string)) {
	r.notify = fn
}

// ApplyEvent merges one push event into the store. Events are idempotent
// snapshots; applying the same event twice is a no-op.
func (r *Reconciler) ApplyEvent(event models.Event) {
	switch event.Type {
	case models.NewBidEvent:
		r.applyNewBid(event)
	case models.BidAcceptedEvent:
		r.applyBidAccepted(event)
	case models.YourBidAcceptedEvent:
		if r.notify != nil {
			r.notify(event.Message)
		}
	case models.CounterOfferEvent:
		r.applyCounterOffer(event)
	case models.CounterOfferResponseEvent:
		r.applyCounterResponse(event)
	default:
		r.logger.Printf("reconciler: ignoring event of unknown type %q", event.Type)
	}
}

// ApplyResult merges a command response into the store. Responses are
// authoritative snapshots of the entities the command touched, and go through
// the same merge rules as push events so a slow response cannot regress a
// newer pushed state.
func (r *Reconciler) ApplyResult(result *models.CommandResult) {
	if result == nil {
		return
	}
	if result.Project != nil {
		r.mergeProject(*result.Project)
	}
	if result.Bid != nil {
		r.confirmBid(*result.Bid)
	}
	for _, bid := range result.Bids {
		r.confirmBid(bid)
	}
}

func (r *Reconciler) applyNewBid(event models.Event) {
	if event.Bid == nil {
		r.logger.Printf("reconciler: newBid event without a bid snapshot, project %s", event.ProjectID)
		return
	}
	if _, ok := r.entities.GetProject(event.ProjectID); !ok {
		r.refetch(event.ProjectID)
		return
	}
	if _, ok := r.entities.GetBid(event.Bid.ID); !ok {
		r.entities.UpsertBid(*event.Bid)
		return
	}
	r.mergeBid(*event.Bid, false)
}

func (r *Reconciler) applyBidAccepted(event models.Event) {
	if event.Project != nil {
		r.mergeProject(*event.Project)
	}
	if _, ok := r.entities.GetProject(event.ProjectID); !ok {
		r.refetch(event.ProjectID)
		return
	}
	// The event names the winning bid; the fan-out over cached sibling bids is
	// derived locally and merged bid by bid, so a sibling rejection arriving
	// separately is a duplicate no-op. Older events carry only the freelancer
	// id, which is ambiguous when a freelancer holds several bids on the
	// project, so the bid id wins when present.
	for _, bid := range r.entities.ProjectBids(event.ProjectID) {
		snapshot := bid
		if r.isAcceptedWinner(bid, event) {
			snapshot.Status = models.AcceptedBid
		} else {
			if bid.Status == models.WithdrawnBid {
				continue
			}
			snapshot.Status = models.RejectedBid
		}
		snapshot.CounterOffer = nil
		r.mergeBid(snapshot, false)
	}
}

func (r *Reconciler) isAcceptedWinner(bid models.Bid, event models.Event) bool {
	if event.BidID != "" {
		return bid.ID == event.BidID
	}
	return bid.FreelancerID == event.FreelancerID
}

func (r *Reconciler) applyCounterOffer(event models.Event) {
	current, ok := r.entities.GetBid(event.BidID)
	if !ok {
		r.refetch(event.ProjectID)
		return
	}
	snapshot := current
	snapshot.Status = models.CounteredBid
	snapshot.CounterOffer = event.CounterOffer
	snapshot.CounterOfferAccepted = false
	snapshot.CounterOfferRejected = false
	r.mergeBid(snapshot, false)
}

func (r *Reconciler) applyCounterResponse(event models.Event) {
	current, ok := r.entities.GetBid(event.BidID)
	if !ok {
		r.refetch(event.ProjectID)
		return
	}
	snapshot := current
	snapshot.Status = models.PendingBid
	snapshot.CounterOffer = nil
	if event.Accepted != nil && *event.Accepted {
		if event.Amount > 0 {
			snapshot.Amount = event.Amount
		}
		if event.DeliveryTime > 0 {
			snapshot.DeliveryTimeDays = event.DeliveryTime
		}
		snapshot.CounterOfferAccepted = true
	} else {
		snapshot.CounterOfferRejected = true
	}
	r.mergeBid(snapshot, true)
}

// confirmBid applies a bid snapshot from a command response. A response is a
// complete authoritative snapshot, so an unknown bid is stored as-is (the
// confirmation of a freshly proposed bid) instead of scheduling a refetch.
func (r *Reconciler) confirmBid(snapshot models.Bid) {
	if _, ok := r.entities.GetBid(snapshot.ID); !ok {
		r.entities.UpsertBid(snapshot)
		return
	}
	r.mergeBid(snapshot, true)
}

// mergeBid applies a bid snapshot if it does not regress the stored status.
// counterResolution permits the one legitimate downgrade, Countered -> Pending.
// Push events may reference entities the store never held; those trigger a
// refetch rather than a fabricated partial record.
func (r *Reconciler) mergeBid(snapshot models.Bid, counterResolution bool) {
	current, ok := r.entities.GetBid(snapshot.ID)
	if !ok {
		r.refetch(snapshot.ProjectID)
		return
	}
	if last, applied := r.entities.LastApplied(snapshot.ID); applied && last == snapshot.Status {
		// Same (entityId, resultingStatus) tuple as the last applied write:
		// a duplicate delivery, e.g. a direct push plus a broadcast echo.
		return
	}
	if bidStatusPriority[snapshot.Status] < bidStatusPriority[current.Status] {
		if !(counterResolution && current.Status == models.CounteredBid && snapshot.Status == models.PendingBid) {
			r.logger.Printf("reconciler: dropping stale %s for bid %s already %s", snapshot.Status, snapshot.ID, current.Status)
			return
		}
	}
	r.entities.UpsertBid(snapshot)
}

// mergeProject applies a project snapshot if it does not regress the stored
// status. Unknown projects are stored as-is: project events carry a full
// snapshot, not a partial record.
func (r *Reconciler) mergeProject(snapshot models.Project) {
	current, ok := r.entities.GetProject(snapshot.ID)
	if !ok {
		r.entities.UpsertProject(snapshot)
		return
	}
	if projectStatusPriority[snapshot.Status] < projectStatusPriority[current.Status] {
		r.logger.Printf("reconciler: dropping stale %s for project %s already %s", snapshot.Status, snapshot.ID, current.Status)
		return
	}
	r.entities.UpsertProject(snapshot)
}
