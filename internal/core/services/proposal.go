package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

// ProposalRequest is a bid on a property.
type ProposalRequest struct {
	PropertyID uuid.UUID
	Amount     decimal.Decimal
	Message    *string
}

// ProposalService accepts bids from users the gate lets through.
type ProposalService struct {
	log       zerolog.Logger
	proposals ports.ProposalRepository
	gate      *GateService
	authz     ports.Authorizer
	now       func() time.Time
}

func NewProposalService(
	proposals ports.ProposalRepository,
	gate *GateService,
	authz ports.Authorizer,
	baseLogger *zerolog.Logger,
) *ProposalService {
	return &ProposalService{
		log:       baseLogger.With().Str("component", "proposal_service").Logger(),
		proposals: proposals,
		gate:      gate,
		authz:     authz,
		now:       time.Now,
	}
}

// Submit stores a proposal. Callers the gate does not let through get a
// *domain.GateError naming where to go instead.
func (s *ProposalService) Submit(ctx context.Context, principal *domain.Principal, req ProposalRequest) (*domain.Proposal, error) {
	if err := s.authz.Authorize(principal, domain.ActionSubmitProposal); err != nil {
		return nil, err
	}

	verr := domain.NewValidationError()
	if req.PropertyID == uuid.Nil {
		verr.Add("property_id", "is required")
	}
	if !req.Amount.IsPositive() {
		verr.Add("amount", "must be greater than 0")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	route, err := s.gate.Check(ctx, principal, domain.GateSubmitProposal)
	if err != nil {
		return nil, err
	}
	if route != domain.RouteProceed {
		return nil, &domain.GateError{Route: route}
	}

	if req.Message != nil {
		msg := strings.TrimSpace(*req.Message)
		req.Message = &msg
	}
	p := &domain.Proposal{
		ID:         uuid.New(),
		PropertyID: req.PropertyID,
		UserID:     principal.UserID,
		Amount:     req.Amount.Round(2),
		Message:    req.Message,
		Status:     domain.ProposalSubmitted,
		CreatedAt:  s.now(),
	}
	if err := s.proposals.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	s.log.Info().
		Str("user_id", principal.UserID.String()).
		Str("proposal_id", p.ID.String()).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("Proposal submitted")
	return p, nil
}
