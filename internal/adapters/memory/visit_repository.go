package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

type VisitRepository struct {
	mu     sync.Mutex
	visits []*domain.Visit
}

var _ ports.VisitRepository = (*VisitRepository)(nil)

func NewVisitRepository() *VisitRepository {
	return &VisitRepository{}
}

func (r *VisitRepository) Create(ctx context.Context, visit *domain.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := *visit
	r.visits = append(r.visits, &v)
	return nil
}

func (r *VisitRepository) ActivateAwaiting(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.visits {
		if v.UserID == userID && v.Status == domain.VisitAwaitingVerification {
			v.Status = domain.VisitRequested
			n++
		}
	}
	return n, nil
}

func (r *VisitRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Visit
	for _, v := range r.visits {
		if v.UserID == userID {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

type ProposalRepository struct {
	mu        sync.Mutex
	proposals []domain.Proposal
}

var _ ports.ProposalRepository = (*ProposalRepository)(nil)

func NewProposalRepository() *ProposalRepository {
	return &ProposalRepository{}
}

func (r *ProposalRepository) Create(ctx context.Context, p *domain.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proposals = append(r.proposals, *p)
	return nil
}

func (r *ProposalRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Proposal
	for i := range r.proposals {
		if r.proposals[i].UserID == userID {
			p := r.proposals[i]
			out = append(out, &p)
		}
	}
	return out, nil
}
