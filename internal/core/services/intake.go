package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/validation"
)

// IntakeService collects personal data and documents for a verification.
type IntakeService struct {
	log           zerolog.Logger
	verifications ports.VerificationRepository
	profiles      ports.ProfileRepository
	store         ports.DocumentStore
	security      ports.SecurityPort
	validator     *validation.Validator
	now           func() time.Time
}

func NewIntakeService(
	verifications ports.VerificationRepository,
	profiles ports.ProfileRepository,
	store ports.DocumentStore,
	security ports.SecurityPort,
	validator *validation.Validator,
	baseLogger *zerolog.Logger,
) *IntakeService {
	return &IntakeService{
		log:           baseLogger.With().Str("component", "intake_service").Logger(),
		verifications: verifications,
		profiles:      profiles,
		store:         store,
		security:      security,
		validator:     validator,
		now:           time.Now,
	}
}

// Start creates the user's pending verification, or rewrites the personal
// fields of the one that is still pending.
func (s *IntakeService) Start(ctx context.Context, userID uuid.UUID, info domain.PersonalInfo) (*domain.VerificationRecord, error) {
	if err := s.validator.PersonalInfo(info); err != nil {
		return nil, err
	}
	return s.start(ctx, userID, info)
}

func (s *IntakeService) start(ctx context.Context, userID uuid.UUID, info domain.PersonalInfo) (*domain.VerificationRecord, error) {
	log := s.log.With().Str("user_id", userID.String()).Logger()

	cpf := validation.NormalizeCPF(info.CPF)
	cpfHash := s.security.Hash(cpf)
	dob, err := validation.ParseDate(info.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("parse date of birth: %w", err)
	}

	if err := s.checkCPFOwner(ctx, cpfHash, userID); err != nil {
		log.Warn().Err(err).Str("cpf", validation.MaskCPF(cpf)).Msg("CPF rejected at intake")
		return nil, err
	}

	latest, err := s.verifications.GetLatestByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load latest verification: %w", err)
	}
	if latest != nil && latest.Status == domain.StatusApproved {
		return nil, domain.ErrAlreadyVerified
	}

	var rec *domain.VerificationRecord
	if latest != nil && latest.Status.IsOpen() {
		if latest.Status != domain.StatusPending {
			return nil, domain.ErrVerificationInProgress
		}
		latest.FullName = strings.TrimSpace(info.FullName)
		latest.CPF = cpf
		latest.CPFHash = cpfHash
		latest.DateOfBirth = dob
		latest.PhoneNumber = strings.TrimSpace(info.PhoneNumber)
		if rec, err = s.verifications.UpdatePersonalInfo(ctx, latest); err != nil {
			return nil, fmt.Errorf("update personal info: %w", err)
		}
		log.Info().Str("verification_id", rec.ID.String()).Msg("Pending verification updated")
	} else {
		now := s.now()
		rec = &domain.VerificationRecord{
			ID:          uuid.New(),
			UserID:      userID,
			FullName:    strings.TrimSpace(info.FullName),
			CPF:         cpf,
			CPFHash:     cpfHash,
			DateOfBirth: dob,
			PhoneNumber: strings.TrimSpace(info.PhoneNumber),
			Status:      domain.StatusPending,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.verifications.Create(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrOpenVerificationExists) {
				return nil, domain.ErrVerificationInProgress
			}
			return nil, fmt.Errorf("create verification: %w", err)
		}
		log.Info().Str("verification_id", rec.ID.String()).Msg("Verification started")
	}

	if err := s.profiles.MarkProfileCompleted(ctx, userID); err != nil {
		return nil, fmt.Errorf("mark profile completed: %w", err)
	}
	return rec, nil
}

// checkCPFOwner fails with ErrCPFExists when the CPF is approved for, or
// under verification by, a different user.
func (s *IntakeService) checkCPFOwner(ctx context.Context, cpfHash string, userID uuid.UUID) error {
	approved, err := s.verifications.GetApprovedByCPFHash(ctx, cpfHash)
	if err != nil {
		return fmt.Errorf("lookup approved cpf: %w", err)
	}
	if approved != nil && approved.UserID != userID {
		return domain.ErrCPFExists
	}
	latest, err := s.verifications.GetLatestByCPFHash(ctx, cpfHash)
	if err != nil {
		return fmt.Errorf("lookup cpf: %w", err)
	}
	if latest != nil && latest.UserID != userID && latest.Status.IsOpen() {
		return domain.ErrCPFExists
	}
	return nil
}

// UploadDocuments validates and stores the document images and attaches
// them to the user's pending verification. The status does not change.
func (s *IntakeService) UploadDocuments(ctx context.Context, userID uuid.UUID, up domain.DocumentUpload) (*domain.VerificationRecord, error) {
	if err := s.validator.Documents(up); err != nil {
		return nil, err
	}
	return s.uploadDocuments(ctx, userID, up)
}

func (s *IntakeService) uploadDocuments(ctx context.Context, userID uuid.UUID, up domain.DocumentUpload) (*domain.VerificationRecord, error) {
	log := s.log.With().Str("user_id", userID.String()).Logger()

	rec, err := s.verifications.GetOpenByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load open verification: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNoOpenVerification
	}
	if rec.Status != domain.StatusPending {
		return nil, domain.ErrVerificationInProgress
	}

	front, err := s.store.Save(ctx, userID, "front", up.Front.ContentType, up.Front.Data)
	if err != nil {
		return nil, fmt.Errorf("store front image: %w", err)
	}
	selfie, err := s.store.Save(ctx, userID, "selfie", up.Selfie.ContentType, up.Selfie.Data)
	if err != nil {
		return nil, fmt.Errorf("store selfie: %w", err)
	}
	var back *string
	if up.Back != nil {
		ref, err := s.store.Save(ctx, userID, "back", up.Back.ContentType, up.Back.Data)
		if err != nil {
			return nil, fmt.Errorf("store back image: %w", err)
		}
		back = &ref
	}

	docType := up.DocumentType
	number := strings.TrimSpace(up.DocumentNumber)
	rec.DocumentType = &docType
	rec.DocumentNumber = &number
	rec.FrontImageRef = &front
	rec.BackImageRef = back
	rec.SelfieImageRef = &selfie

	updated, err := s.verifications.UpdateDocuments(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("update documents: %w", err)
	}
	log.Info().
		Str("verification_id", updated.ID.String()).
		Str("document_type", string(docType)).
		Msg("Documents uploaded")
	return updated, nil
}

// Submit runs both intake steps. All input is validated before anything is
// written.
func (s *IntakeService) Submit(ctx context.Context, userID uuid.UUID, info domain.PersonalInfo, up domain.DocumentUpload) (*domain.VerificationRecord, error) {
	verr := domain.NewValidationError()
	for _, err := range []error{s.validator.PersonalInfo(info), s.validator.Documents(up)} {
		if err := verr.Merge(err); err != nil {
			return nil, err
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if _, err := s.start(ctx, userID, info); err != nil {
		return nil, err
	}
	return s.uploadDocuments(ctx, userID, up)
}
