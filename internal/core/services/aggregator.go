package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/shared/metrics"
)

// maxSettleAttempts bounds the re-read loop after a version conflict.
const maxSettleAttempts = 5

// Aggregator owns every status transition of a VerificationRecord.
type Aggregator struct {
	log           zerolog.Logger
	verifications ports.VerificationRepository
	profiles      ports.ProfileRepository
	visits        ports.VisitRepository
	feed          ports.StatusFeed
	bus           ports.EventBus
	policy        domain.DecisionPolicy
	now           func() time.Time
}

func NewAggregator(
	verifications ports.VerificationRepository,
	profiles ports.ProfileRepository,
	visits ports.VisitRepository,
	feed ports.StatusFeed,
	bus ports.EventBus,
	policy domain.DecisionPolicy,
	baseLogger *zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		log:           baseLogger.With().Str("component", "aggregator").Logger(),
		verifications: verifications,
		profiles:      profiles,
		visits:        visits,
		feed:          feed,
		bus:           bus,
		policy:        policy,
		now:           time.Now,
	}
}

// RecordCheck stores one check result and settles the record if both
// results are now present or the result is an error. Results arriving after the record was finalized
// are dropped.
func (a *Aggregator) RecordCheck(ctx context.Context, id uuid.UUID, kind domain.CheckKind, result string) error {
	log := a.log.With().Str("verification_id", id.String()).Str("kind", string(kind)).Logger()

	rec, err := a.verifications.SetCheckResult(ctx, id, kind, result)
	if errors.Is(err, domain.ErrTerminalRecord) {
		log.Info().Msg("Late check result ignored, record already finalized")
		return nil
	}
	if err != nil {
		return fmt.Errorf("set %s result: %w", kind, err)
	}
	if rec == nil {
		return domain.ErrNotFound
	}

	metrics.CheckResults.WithLabelValues(string(kind), string(domain.ClassifyOutcome(result))).Inc()
	log.Info().Str("result", result).Int64("version", rec.Version).Msg("Check result recorded")

	return a.settle(ctx, rec)
}

// settle fails the record as soon as any check errored, and otherwise
// applies the decision policy once both checks reported. Whoever writes the
// second result is guaranteed to see both fields, so a record never stays in
// checking after both results exist.
func (a *Aggregator) settle(ctx context.Context, rec *domain.VerificationRecord) error {
	for attempt := 0; attempt < maxSettleAttempts; attempt++ {
		if rec.Status != domain.StatusChecking {
			return nil
		}

		var decision domain.ReviewDecision
		switch {
		case rec.CheckErrored():
			decision.Status = domain.StatusFailed
		case rec.ChecksComplete():
			decision.Status = a.policy.Decide(*rec.TaxIDCheck, *rec.CriminalCheck)
		default:
			return nil
		}
		if decision.Status == domain.StatusRejected {
			reason := domain.AutoRejectionReason
			decision.RejectionReason = &reason
		}

		_, err := a.Transition(ctx, rec, decision)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}

		rec, err = a.verifications.GetByID(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("reload after conflict: %w", err)
		}
		if rec == nil {
			return domain.ErrNotFound
		}
	}
	return domain.ErrVersionConflict
}

// Transition moves rec to decision.Status if the state machine allows it and
// nobody wrote the record since rec was read.
func (a *Aggregator) Transition(ctx context.Context, rec *domain.VerificationRecord, decision domain.ReviewDecision) (*domain.VerificationRecord, error) {
	if !domain.CanTransition(rec.Status, decision.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, rec.Status, decision.Status)
	}
	if decision.Status == domain.StatusRejected && (decision.RejectionReason == nil || *decision.RejectionReason == "") {
		verr := domain.NewValidationError()
		verr.Add("reason", "is required")
		return nil, verr
	}

	updated, err := a.verifications.Transition(ctx, rec.ID, rec.Version, decision)
	if err != nil {
		return nil, err
	}

	a.afterTransition(ctx, rec.Status, updated)
	return updated, nil
}

// afterTransition fans the change out. Failures here are logged; the
// transition itself is already durable.
func (a *Aggregator) afterTransition(ctx context.Context, from domain.VerificationStatus, rec *domain.VerificationRecord) {
	log := a.log.With().
		Str("verification_id", rec.ID.String()).
		Str("from", string(from)).
		Str("to", string(rec.Status)).
		Logger()
	log.Info().Int64("version", rec.Version).Msg("Verification status changed")
	metrics.VerificationTransitions.WithLabelValues(string(from), string(rec.Status)).Inc()

	if rec.Status == domain.StatusApproved {
		if err := a.profiles.MarkVerified(ctx, rec.UserID, a.now()); err != nil {
			log.Error().Err(err).Msg("Failed to mark profile verified")
		}
		if n, err := a.visits.ActivateAwaiting(ctx, rec.UserID); err != nil {
			log.Error().Err(err).Msg("Failed to activate awaiting visits")
		} else if n > 0 {
			log.Info().Int("visits", n).Msg("Activated visits awaiting verification")
		}
	}

	change := ports.StatusChange{
		VerificationID: rec.ID,
		UserID:         rec.UserID,
		Status:         rec.Status,
		Version:        rec.Version,
	}
	if err := a.feed.Publish(ctx, change); err != nil {
		log.Error().Err(err).Msg("Failed to publish status change")
	}

	if topic := topicFor(rec.Status); topic != "" {
		if err := a.bus.Publish(ctx, topic, ports.VerificationEvent{Record: rec, From: from}); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to publish verification event")
		}
	}
}

func topicFor(status domain.VerificationStatus) string {
	switch status {
	case domain.StatusManualReview:
		return ports.TopicVerificationReview
	case domain.StatusApproved:
		return ports.TopicVerificationApprove
	case domain.StatusRejected:
		return ports.TopicVerificationReject
	case domain.StatusFailed:
		return ports.TopicVerificationFailed
	}
	return ""
}
