package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lunevo/bidwire/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository is the persistence interface for bids.
type BidRepository interface {
	CreateBid(ctx context.Context, bid models.Bid) error
	GetBid(ctx context.Context, bidId string) (*models.Bid, error)
	GetProjectBids(ctx context.Context, projectId string) ([]models.Bid, error)
	UpdateBid(ctx context.Context, bid models.Bid) error
	// SaveAcceptOutcome persists the accept fan-out (project + all bids of the
	// project) as a single transaction: either every entity updates or none do.
	SaveAcceptOutcome(ctx context.Context, project models.Project, bids []models.Bid) error
}

// PostgresBidRepository is the BidRepository implementation backed by Postgres.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository creates a new instance of PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

const bidColumns = `id, project_id, freelancer_id, amount, delivery_time_days, proposal_text, status,
	counter_amount, counter_delivery_days, counter_message, counter_proposed_at,
	counter_accepted, counter_rejected, created_at`

// execer covers both a pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// CreateBid inserts a new bid.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, bid models.Bid) error {
	insertQuery := `INSERT INTO bid (` + bidColumns + `)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.DB.Exec(ctx, insertQuery, bidArgs(bid)...)
	return err
}

// GetBid returns a bid by id.
func (r *PostgresBidRepository) GetBid(ctx context.Context, bidId string) (*models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE id = $1`
	bid, err := scanBid(r.DB.QueryRow(ctx, query, bidId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewNotFoundError("bid not found")
	}
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// GetProjectBids returns all bids for a project ordered by creation time.
func (r *PostgresBidRepository) GetProjectBids(ctx context.Context, projectId string) ([]models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE project_id = $1 ORDER BY created_at`
	rows, err := r.DB.Query(ctx, query, projectId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}
	return bids, rows.Err()
}

// UpdateBid overwrites a bid's mutable fields.
func (r *PostgresBidRepository) UpdateBid(ctx context.Context, bid models.Bid) error {
	return updateBid(ctx, r.DB, bid)
}

// SaveAcceptOutcome persists the accept fan-out in one transaction.
func (r *PostgresBidRepository) SaveAcceptOutcome(ctx context.Context, project models.Project, bids []models.Bid) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	updateProjectQuery := `UPDATE project SET status = $1, assigned_freelancer_id = NULLIF($2, '') WHERE id = $3`
	if _, err := tx.Exec(ctx, updateProjectQuery, project.Status, project.AssignedFreelancerID, project.ID); err != nil {
		return err
	}
	for _, bid := range bids {
		if err := updateBid(ctx, tx, bid); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func updateBid(ctx context.Context, db execer, bid models.Bid) error {
	updateQuery := `UPDATE bid SET amount = $2, delivery_time_days = $3, status = $4,
	                counter_amount = $5, counter_delivery_days = $6, counter_message = $7, counter_proposed_at = $8,
	                counter_accepted = $9, counter_rejected = $10
	                WHERE id = $1`
	args := []interface{}{bid.ID, bid.Amount, bid.DeliveryTimeDays, bid.Status}
	args = append(args, counterArgs(bid)...)
	_, err := db.Exec(ctx, updateQuery, args...)
	return err
}

func bidArgs(bid models.Bid) []interface{} {
	args := []interface{}{
		bid.ID,
		bid.ProjectID,
		bid.FreelancerID,
		bid.Amount,
		bid.DeliveryTimeDays,
		bid.ProposalText,
		bid.Status,
	}
	args = append(args, counterArgs(bid)...)
	args = append(args, bid.CreatedAt)
	return args
}

func counterArgs(bid models.Bid) []interface{} {
	var (
		counterAmount     *float64
		counterDays       *int
		counterMessage    *string
		counterProposedAt *time.Time
	)
	if offer := bid.CounterOffer; offer != nil {
		counterAmount = &offer.Amount
		counterDays = &offer.DeliveryTimeDays
		counterMessage = &offer.Message
		counterProposedAt = &offer.ProposedAt
	}
	return []interface{}{counterAmount, counterDays, counterMessage, counterProposedAt, bid.CounterOfferAccepted, bid.CounterOfferRejected}
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var (
		bid               models.Bid
		counterAmount     *float64
		counterDays       *int
		counterMessage    *string
		counterProposedAt *time.Time
	)
	err := row.Scan(
		&bid.ID,
		&bid.ProjectID,
		&bid.FreelancerID,
		&bid.Amount,
		&bid.DeliveryTimeDays,
		&bid.ProposalText,
		&bid.Status,
		&counterAmount,
		&counterDays,
		&counterMessage,
		&counterProposedAt,
		&bid.CounterOfferAccepted,
		&bid.CounterOfferRejected,
		&bid.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if counterAmount != nil && counterDays != nil && counterMessage != nil && counterProposedAt != nil {
		bid.CounterOffer = &models.CounterOffer{
			Amount:           *counterAmount,
			DeliveryTimeDays: *counterDays,
			Message:          *counterMessage,
			ProposedAt:       *counterProposedAt,
		}
	}
	return &bid, nil
}
