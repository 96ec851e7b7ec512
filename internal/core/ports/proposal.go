package ports

import (
	"context"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
)

// VisitRepository persists visit requests.
type VisitRepository interface {
	Create(ctx context.Context, visit *domain.Visit) error

	// ActivateAwaiting moves the user's visits awaiting verification to requested.
	ActivateAwaiting(ctx context.Context, userID uuid.UUID) (int, error)

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Visit, error)
}

// ProposalRepository persists bids.
type ProposalRepository interface {
	Create(ctx context.Context, p *domain.Proposal) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Proposal, error)
}
