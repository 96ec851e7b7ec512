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
	"CasaBid/internal/core/validation"
	"CasaBid/internal/shared/metrics"
)

// CheckRunner triggers the external background checks. A trigger returns as
// soon as the check is queued on the event bus; the provider call runs on the
// bus's background context and is not tied to the triggering request.
type CheckRunner struct {
	log           zerolog.Logger
	verifications ports.VerificationRepository
	provider      ports.CheckProvider
	aggregator    *Aggregator
	bus           ports.EventBus
	timeout       time.Duration
}

func NewCheckRunner(
	verifications ports.VerificationRepository,
	provider ports.CheckProvider,
	aggregator *Aggregator,
	bus ports.EventBus,
	timeout time.Duration,
	baseLogger *zerolog.Logger,
) *CheckRunner {
	r := &CheckRunner{
		log:           baseLogger.With().Str("component", "check_runner").Logger(),
		verifications: verifications,
		provider:      provider,
		aggregator:    aggregator,
		bus:           bus,
		timeout:       timeout,
	}
	bus.Subscribe(ports.TopicCheckRequested, r.handleCheckRequested)
	return r
}

// Dispatch queues one check for the caller's open verification.
func (r *CheckRunner) Dispatch(ctx context.Context, userID uuid.UUID, kind domain.CheckKind) (*domain.VerificationRecord, error) {
	rec, err := r.verifications.GetOpenByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load open verification: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNoOpenVerification
	}
	return r.DispatchRecord(ctx, rec, kind)
}

// DispatchAll queues both checks.
func (r *CheckRunner) DispatchAll(ctx context.Context, rec *domain.VerificationRecord) (*domain.VerificationRecord, error) {
	var err error
	for _, kind := range []domain.CheckKind{domain.CheckTaxID, domain.CheckCriminal} {
		if rec, err = r.DispatchRecord(ctx, rec, kind); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// DispatchRecord moves a pending record to checking and queues the check.
// A pending record must have its documents uploaded first. Finalized
// records, records already in manual review and checks that have already
// reported are left alone.
func (r *CheckRunner) DispatchRecord(ctx context.Context, rec *domain.VerificationRecord, kind domain.CheckKind) (*domain.VerificationRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown check kind %q", kind)
	}
	if rec.Status == domain.StatusPending && !rec.HasDocuments() {
		return nil, domain.ErrDocumentsMissing
	}
	log := r.log.With().Str("verification_id", rec.ID.String()).Str("kind", string(kind)).Logger()

	for attempt := 0; rec.Status == domain.StatusPending; attempt++ {
		if attempt == maxSettleAttempts {
			return nil, domain.ErrVersionConflict
		}
		updated, err := r.aggregator.Transition(ctx, rec, domain.ReviewDecision{Status: domain.StatusChecking})
		if err == nil {
			rec = updated
			break
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		if rec, err = r.verifications.GetByID(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("reload after conflict: %w", err)
		}
		if rec == nil {
			return nil, domain.ErrNotFound
		}
	}

	if rec.Status != domain.StatusChecking {
		log.Info().Str("status", string(rec.Status)).Msg("Check not dispatched, record is past checking")
		return rec, nil
	}
	if rec.CheckResult(kind) != nil {
		log.Info().Msg("Check already reported, not dispatching again")
		return rec, nil
	}

	if err := r.bus.Publish(ctx, ports.TopicCheckRequested, ports.CheckRequestedEvent{VerificationID: rec.ID, Kind: kind}); err != nil {
		return nil, fmt.Errorf("queue %s check: %w", kind, err)
	}
	log.Info().Msg("Check dispatched")
	return rec, nil
}

func (r *CheckRunner) handleCheckRequested(ctx context.Context, event ports.Event) error {
	evt, ok := event.Data.(ports.CheckRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", event.Data, event.Topic)
	}
	return r.Run(ctx, evt.VerificationID, evt.Kind)
}

// Run calls the provider once and records the outcome. A provider error is
// recorded as an errored result, which fails the record. There is no
// automatic retry.
func (r *CheckRunner) Run(ctx context.Context, id uuid.UUID, kind domain.CheckKind) error {
	log := r.log.With().Str("verification_id", id.String()).Str("kind", string(kind)).Logger()

	rec, err := r.verifications.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load verification: %w", err)
	}
	if rec == nil {
		return domain.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		log.Info().Msg("Record finalized before the check ran, skipping")
		return nil
	}

	subject := ports.CheckSubject{
		VerificationID: rec.ID,
		FullName:       rec.FullName,
		CPF:            rec.CPF,
		DateOfBirth:    rec.DateOfBirth.Format(validation.DateLayout),
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := r.provider.Run(callCtx, kind, subject)
	metrics.CheckDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Msg("Check provider call failed")
		result = domain.CheckErrorResult
	}

	return r.aggregator.RecordCheck(ctx, id, kind, result)
}
