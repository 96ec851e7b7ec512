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

// ScheduleRequest is a request to visit a property, optionally carrying the
// identity data of a guest or of a member who is not verified yet.
type ScheduleRequest struct {
	IsGuest     bool
	PropertyID  uuid.UUID
	ScheduledAt time.Time
	Notes       *string
	Email       string
	Personal    domain.PersonalInfo
	// Documents, when present, are attached to the pending verification so
	// the checks can be dispatched immediately.
	Documents *domain.DocumentUpload
}

// ScheduleResult is one of: a created visit (Code empty), or PENDING_REVIEW
// with the verification that must finish first.
type ScheduleResult struct {
	Code           string
	Visit          *domain.Visit
	VerificationID *uuid.UUID
	// AccessToken is issued to newly provisioned guests so they can upload
	// documents and follow their verification.
	AccessToken string
	// DocumentsRequired is set when the verification is pending without
	// documents. Checks start after the upload.
	DocumentsRequired bool
}

type guestIdentity struct {
	Email string `json:"email" validate:"required,email,max=254"`
	domain.PersonalInfo
}

// ScheduleService implements the visit-scheduling flow for members and guests.
type ScheduleService struct {
	log           zerolog.Logger
	users         ports.UserRepository
	profiles      ports.ProfileRepository
	verifications ports.VerificationRepository
	visits        ports.VisitRepository
	intake        *IntakeService
	checks        *CheckRunner
	tokens        ports.TokenService
	security      ports.SecurityPort
	authz         ports.Authorizer
	validator     *validation.Validator
	cooldown      time.Duration
	now           func() time.Time
}

func NewScheduleService(
	users ports.UserRepository,
	profiles ports.ProfileRepository,
	verifications ports.VerificationRepository,
	visits ports.VisitRepository,
	intake *IntakeService,
	checks *CheckRunner,
	tokens ports.TokenService,
	security ports.SecurityPort,
	authz ports.Authorizer,
	validator *validation.Validator,
	cooldown time.Duration,
	baseLogger *zerolog.Logger,
) *ScheduleService {
	return &ScheduleService{
		log:           baseLogger.With().Str("component", "schedule_service").Logger(),
		users:         users,
		profiles:      profiles,
		verifications: verifications,
		visits:        visits,
		intake:        intake,
		checks:        checks,
		tokens:        tokens,
		security:      security,
		authz:         authz,
		validator:     validator,
		cooldown:      cooldown,
		now:           time.Now,
	}
}

// Schedule books a visit for a verified member, or starts (or follows) the
// identity verification that must complete first.
func (s *ScheduleService) Schedule(ctx context.Context, principal *domain.Principal, req ScheduleRequest) (*ScheduleResult, error) {
	if err := s.validateVisit(req); err != nil {
		return nil, err
	}
	if req.Documents != nil {
		if err := s.validator.Documents(*req.Documents); err != nil {
			return nil, err
		}
	}
	if principal == nil {
		if !req.IsGuest {
			return nil, domain.ErrUnauthenticated
		}
		return s.scheduleGuest(ctx, req)
	}
	if err := s.authz.Authorize(principal, domain.ActionScheduleVisit); err != nil {
		return nil, err
	}
	return s.scheduleMember(ctx, principal, req)
}

func (s *ScheduleService) validateVisit(req ScheduleRequest) error {
	verr := domain.NewValidationError()
	if req.PropertyID == uuid.Nil {
		verr.Add("property_id", "is required")
	}
	if req.ScheduledAt.IsZero() {
		verr.Add("scheduled_at", "is required")
	} else if !req.ScheduledAt.After(s.now()) {
		verr.Add("scheduled_at", "must be in the future")
	}
	return verr.OrNil()
}

func (s *ScheduleService) scheduleMember(ctx context.Context, principal *domain.Principal, req ScheduleRequest) (*ScheduleResult, error) {
	log := s.log.With().Str("user_id", principal.UserID.String()).Logger()

	profile, err := s.profiles.Get(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile != nil && profile.Verified {
		visit, err := s.createVisit(ctx, principal.UserID, req, domain.VisitRequested)
		if err != nil {
			return nil, err
		}
		log.Info().Str("visit_id", visit.ID.String()).Msg("Visit scheduled")
		return &ScheduleResult{Visit: visit}, nil
	}

	open, err := s.verifications.GetOpenByUserID(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("load open verification: %w", err)
	}
	if open == nil || (open.Status == domain.StatusPending && req.Personal.CPF != "") {
		// Start (or refresh) the verification from the identity in the request.
		if open, err = s.intake.Start(ctx, principal.UserID, req.Personal); err != nil {
			return nil, err
		}
	}
	if req.Documents != nil {
		if open.Status != domain.StatusPending {
			return nil, domain.ErrVerificationInProgress
		}
		if open, err = s.intake.uploadDocuments(ctx, principal.UserID, *req.Documents); err != nil {
			return nil, err
		}
	}
	return s.pendingReview(ctx, principal.UserID, open, req, "")
}

func (s *ScheduleService) scheduleGuest(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	identity := guestIdentity{Email: strings.TrimSpace(strings.ToLower(req.Email)), PersonalInfo: req.Personal}
	if err := s.validator.Struct(identity); err != nil {
		return nil, err
	}

	cpf := validation.NormalizeCPF(req.Personal.CPF)
	log := s.log.With().Str("cpf", validation.MaskCPF(cpf)).Logger()

	if err := s.checkGuestCPF(ctx, s.security.Hash(cpf)); err != nil {
		log.Info().Err(err).Msg("Guest scheduling refused")
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		log.Info().Msg("Guest email already registered")
		return nil, domain.ErrCPFExists
	}

	now := s.now()
	fullName := strings.TrimSpace(req.Personal.FullName)
	user := &domain.User{
		ID:        uuid.New(),
		Email:     identity.Email,
		FullName:  &fullName,
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("provision guest: %w", err)
	}
	if err := s.profiles.Upsert(ctx, &domain.UserProfile{UserID: user.ID, UpdatedAt: now}); err != nil {
		return nil, fmt.Errorf("create guest profile: %w", err)
	}
	log = log.With().Str("user_id", user.ID.String()).Logger()
	log.Info().Msg("Guest provisioned")

	rec, err := s.intake.start(ctx, user.ID, req.Personal)
	if err != nil {
		return nil, err
	}
	if req.Documents != nil {
		if rec, err = s.intake.uploadDocuments(ctx, user.ID, *req.Documents); err != nil {
			return nil, err
		}
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue guest token: %w", err)
	}
	return s.pendingReview(ctx, user.ID, rec, req, token)
}

// checkGuestCPF refuses CPFs that already belong to an account, and CPFs
// rejected within the cooldown window. The rejection reason is not exposed.
func (s *ScheduleService) checkGuestCPF(ctx context.Context, cpfHash string) error {
	approved, err := s.verifications.GetApprovedByCPFHash(ctx, cpfHash)
	if err != nil {
		return fmt.Errorf("lookup approved cpf: %w", err)
	}
	if approved != nil {
		return domain.ErrCPFExists
	}

	latest, err := s.verifications.GetLatestByCPFHash(ctx, cpfHash)
	if err != nil {
		return fmt.Errorf("lookup cpf: %w", err)
	}
	if latest == nil {
		return nil
	}
	if latest.Status.IsOpen() {
		return domain.ErrCPFExists
	}
	if latest.Status == domain.StatusRejected {
		decidedAt := latest.UpdatedAt
		if latest.ReviewedAt != nil {
			decidedAt = *latest.ReviewedAt
		}
		if s.now().Sub(decidedAt) < s.cooldown {
			return domain.ErrRegistrationDenied
		}
	}
	return nil
}

func (s *ScheduleService) pendingReview(ctx context.Context, userID uuid.UUID, rec *domain.VerificationRecord, req ScheduleRequest, token string) (*ScheduleResult, error) {
	visit, err := s.createVisit(ctx, userID, req, domain.VisitAwaitingVerification)
	if err != nil {
		return nil, err
	}

	documentsRequired := rec.Status == domain.StatusPending && !rec.HasDocuments()
	if rec.Status == domain.StatusPending && !documentsRequired {
		if _, err := s.checks.DispatchAll(ctx, rec); err != nil {
			return nil, fmt.Errorf("dispatch checks: %w", err)
		}
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("visit_id", visit.ID.String()).
		Str("verification_id", rec.ID.String()).
		Msg("Visit held until verification completes")

	id := rec.ID
	return &ScheduleResult{
		Code:              domain.CodePendingReview,
		Visit:             visit,
		VerificationID:    &id,
		AccessToken:       token,
		DocumentsRequired: documentsRequired,
	}, nil
}

func (s *ScheduleService) createVisit(ctx context.Context, userID uuid.UUID, req ScheduleRequest, status domain.VisitStatus) (*domain.Visit, error) {
	visit := &domain.Visit{
		ID:          uuid.New(),
		PropertyID:  req.PropertyID,
		UserID:      userID,
		ScheduledAt: req.ScheduledAt.UTC(),
		Notes:       req.Notes,
		Status:      status,
		CreatedAt:   s.now(),
	}
	if err := s.visits.Create(ctx, visit); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}
	return visit, nil
}
