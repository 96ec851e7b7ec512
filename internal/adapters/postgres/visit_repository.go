package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

type visitRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.VisitRepository = (*visitRepository)(nil)

func NewVisitRepository(db *DB, baseLogger *zerolog.Logger) ports.VisitRepository {
	return &visitRepository{db: db, log: baseLogger.With().Str("component", "visit_repo").Logger()}
}

func (r *visitRepository) Create(ctx context.Context, v *domain.Visit) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO visits (id, property_id, user_id, scheduled_at, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.PropertyID, v.UserID, v.ScheduledAt, v.Notes, v.Status, v.CreatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", v.UserID.String()).Msg("Failed to insert visit")
	}
	return err
}

func (r *visitRepository) ActivateAwaiting(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE visits SET status = $2 WHERE user_id = $1 AND status = $3`,
		userID, domain.VisitRequested, domain.VisitAwaitingVerification,
	)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to activate visits")
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *visitRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Visit, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, property_id, user_id, scheduled_at, notes, status, created_at
		FROM visits WHERE user_id = $1 ORDER BY scheduled_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Visit
	for rows.Next() {
		var v domain.Visit
		if err := rows.Scan(&v.ID, &v.PropertyID, &v.UserID, &v.ScheduledAt, &v.Notes, &v.Status, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

type proposalRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.ProposalRepository = (*proposalRepository)(nil)

func NewProposalRepository(db *DB, baseLogger *zerolog.Logger) ports.ProposalRepository {
	return &proposalRepository{db: db, log: baseLogger.With().Str("component", "proposal_repo").Logger()}
}

// Amounts cross the driver as text so no precision is lost to floats.
func (r *proposalRepository) Create(ctx context.Context, p *domain.Proposal) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO proposals (id, property_id, user_id, amount, message, status, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)`,
		p.ID, p.PropertyID, p.UserID, p.Amount.StringFixed(2), p.Message, p.Status, p.CreatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to insert proposal")
	}
	return err
}

func (r *proposalRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Proposal, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, property_id, user_id, amount::text, message, status, created_at
		FROM proposals WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Proposal
	for rows.Next() {
		var p domain.Proposal
		var amount string
		if err := rows.Scan(&p.ID, &p.PropertyID, &p.UserID, &amount, &p.Message, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
