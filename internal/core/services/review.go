package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/validation"
)

// ReviewService implements the reviewer actions on records in manual review.
type ReviewService struct {
	log           zerolog.Logger
	verifications ports.VerificationRepository
	aggregator    *Aggregator
	authz         ports.Authorizer
	security      ports.SecurityPort
	now           func() time.Time
}

func NewReviewService(
	verifications ports.VerificationRepository,
	aggregator *Aggregator,
	authz ports.Authorizer,
	security ports.SecurityPort,
	baseLogger *zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		log:           baseLogger.With().Str("component", "review_service").Logger(),
		verifications: verifications,
		aggregator:    aggregator,
		authz:         authz,
		security:      security,
		now:           time.Now,
	}
}

// Approve finalizes a record in manual review. Approving anything else,
// including an already approved record, is an invalid transition.
func (s *ReviewService) Approve(ctx context.Context, reviewer *domain.Principal, id uuid.UUID, notes *string) (*domain.VerificationRecord, error) {
	if err := s.authz.Authorize(reviewer, domain.ActionReviewVerifications); err != nil {
		return nil, err
	}
	return s.decide(ctx, reviewer, id, domain.StatusApproved, nil, notes)
}

// Reject finalizes a record in manual review. The reason is shown to the
// applicant and is required.
func (s *ReviewService) Reject(ctx context.Context, reviewer *domain.Principal, id uuid.UUID, reason string, notes *string) (*domain.VerificationRecord, error) {
	if err := s.authz.Authorize(reviewer, domain.ActionReviewVerifications); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		verr := domain.NewValidationError()
		verr.Add("reason", "is required")
		return nil, verr
	}
	return s.decide(ctx, reviewer, id, domain.StatusRejected, &reason, notes)
}

func (s *ReviewService) decide(
	ctx context.Context,
	reviewer *domain.Principal,
	id uuid.UUID,
	to domain.VerificationStatus,
	reason, notes *string,
) (*domain.VerificationRecord, error) {
	log := s.log.With().
		Str("verification_id", id.String()).
		Str("reviewer_id", reviewer.UserID.String()).
		Str("decision", string(to)).
		Logger()

	rec, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load verification: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	if rec.Status != domain.StatusManualReview {
		log.Warn().Str("status", string(rec.Status)).Msg("Reviewer action on record not in manual review")
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, rec.Status, to)
	}

	if notes != nil {
		trimmed := strings.TrimSpace(*notes)
		if trimmed == "" {
			notes = nil
		} else {
			notes = &trimmed
		}
	}
	now := s.now()
	reviewerID := reviewer.UserID

	updated, err := s.aggregator.Transition(ctx, rec, domain.ReviewDecision{
		Status:          to,
		RejectionReason: reason,
		AdminNotes:      notes,
		ReviewedBy:      &reviewerID,
		ReviewedAt:      &now,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Reviewer decision not applied")
		return nil, err
	}
	log.Info().Msg("Reviewer decision applied")
	return updated, nil
}

// List returns records for the reviewer queue.
func (s *ReviewService) List(ctx context.Context, reviewer *domain.Principal, filter domain.VerificationFilter) ([]*domain.VerificationRecord, error) {
	if err := s.authz.Authorize(reviewer, domain.ActionReviewVerifications); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		verr := domain.NewValidationError()
		verr.Add("status", "unknown status")
		return nil, verr
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	filter.Search = strings.TrimSpace(filter.Search)
	if cpf := validation.NormalizeCPF(filter.Search); len(cpf) == 11 {
		filter.CPFHash = s.security.Hash(cpf)
		filter.Search = ""
	}
	return s.verifications.List(ctx, filter)
}

// Get returns one record for a reviewer.
func (s *ReviewService) Get(ctx context.Context, reviewer *domain.Principal, id uuid.UUID) (*domain.VerificationRecord, error) {
	if err := s.authz.Authorize(reviewer, domain.ActionReviewVerifications); err != nil {
		return nil, err
	}
	rec, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}
