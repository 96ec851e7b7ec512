package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/shared/metrics"
)

// StatusService answers status reads. Every read goes to the repository;
// nothing is cached.
type StatusService struct {
	log           zerolog.Logger
	verifications ports.VerificationRepository
	feed          ports.StatusFeed
	authz         ports.Authorizer
	maxWait       time.Duration
}

func NewStatusService(
	verifications ports.VerificationRepository,
	feed ports.StatusFeed,
	authz ports.Authorizer,
	maxWait time.Duration,
	baseLogger *zerolog.Logger,
) *StatusService {
	return &StatusService{
		log:           baseLogger.With().Str("component", "status_service").Logger(),
		verifications: verifications,
		feed:          feed,
		authz:         authz,
		maxWait:       maxWait,
	}
}

// Get returns a record its owner or a reviewer may read.
func (s *StatusService) Get(ctx context.Context, principal *domain.Principal, id uuid.UUID) (*domain.VerificationRecord, error) {
	if err := s.authz.Authorize(principal, domain.ActionReadVerification); err != nil {
		return nil, err
	}
	rec, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load verification: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	if rec.UserID != principal.UserID && s.authz.Authorize(principal, domain.ActionReviewVerifications) != nil {
		return nil, domain.ErrForbidden
	}
	return rec, nil
}

// Latest returns the caller's most recent record.
func (s *StatusService) Latest(ctx context.Context, principal *domain.Principal) (*domain.VerificationRecord, error) {
	if err := s.authz.Authorize(principal, domain.ActionReadVerification); err != nil {
		return nil, err
	}
	rec, err := s.verifications.GetLatestByUserID(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("load latest verification: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// Wait is a long poll. It returns as soon as the record's version is newer
// than sinceVersion or the record is finalized, and otherwise blocks until a
// status change is published or wait elapses (capped at the configured
// maximum). A zero wait is a plain read.
func (s *StatusService) Wait(ctx context.Context, principal *domain.Principal, id uuid.UUID, sinceVersion int64, wait time.Duration) (*domain.VerificationRecord, error) {
	rec, err := s.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if settledSince(rec, sinceVersion) || wait <= 0 {
		return rec, nil
	}
	if wait > s.maxWait {
		wait = s.maxWait
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	changes, unsubscribe, err := s.feed.Subscribe(waitCtx, id)
	if err != nil {
		s.log.Error().Err(err).Str("verification_id", id.String()).Msg("Status feed unavailable, answering without waiting")
		return rec, nil
	}
	defer unsubscribe()

	metrics.StatusWaiters.Inc()
	defer metrics.StatusWaiters.Dec()

	// A change may have landed between the first read and the subscription.
	if rec, err = s.reload(ctx, id); err != nil || settledSince(rec, sinceVersion) {
		return rec, err
	}

	select {
	case <-changes:
	case <-waitCtx.Done():
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return s.reload(ctx, id)
}

// WaitLatest long-polls the caller's most recent record.
func (s *StatusService) WaitLatest(ctx context.Context, principal *domain.Principal, sinceVersion int64, wait time.Duration) (*domain.VerificationRecord, error) {
	rec, err := s.Latest(ctx, principal)
	if err != nil {
		return nil, err
	}
	return s.Wait(ctx, principal, rec.ID, sinceVersion, wait)
}

func (s *StatusService) reload(ctx context.Context, id uuid.UUID) (*domain.VerificationRecord, error) {
	rec, err := s.verifications.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload verification: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func settledSince(rec *domain.VerificationRecord, sinceVersion int64) bool {
	return rec.Version > sinceVersion || rec.Status.IsTerminal()
}
