package rest

import (
	"time"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/validation"
)

// verificationView is what the applicant's client sees. The CPF is masked.
type verificationView struct {
	ID              uuid.UUID                 `json:"id"`
	Status          domain.VerificationStatus `json:"status"`
	Version         int64                     `json:"version"`
	FullName        string                    `json:"full_name"`
	CPF             string                    `json:"cpf"`
	DocumentType    *domain.DocumentType      `json:"document_type,omitempty"`
	HasDocuments    bool                      `json:"has_documents"`
	TaxIDCheck      *string                   `json:"tax_id_check,omitempty"`
	CriminalCheck   *string                   `json:"criminal_check,omitempty"`
	RejectionReason *string                   `json:"rejection_reason,omitempty"`
	Panel           domain.StatusPanel        `json:"panel"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

func newVerificationView(rec *domain.VerificationRecord) verificationView {
	return verificationView{
		ID:              rec.ID,
		Status:          rec.Status,
		Version:         rec.Version,
		FullName:        rec.FullName,
		CPF:             validation.MaskCPF(rec.CPF),
		DocumentType:    rec.DocumentType,
		HasDocuments:    rec.HasDocuments(),
		TaxIDCheck:      rec.TaxIDCheck,
		CriminalCheck:   rec.CriminalCheck,
		RejectionReason: rec.RejectionReason,
		Panel:           domain.PanelFor(rec.Status, rec.RejectionReason),
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

// reviewView is the reviewer's view, with the full record.
type reviewView struct {
	verificationView
	UserID         uuid.UUID  `json:"user_id"`
	CPF            string     `json:"cpf"`
	DateOfBirth    string     `json:"date_of_birth"`
	PhoneNumber    string     `json:"phone_number"`
	DocumentNumber *string    `json:"document_number,omitempty"`
	FrontImageRef  *string    `json:"front_image_ref,omitempty"`
	BackImageRef   *string    `json:"back_image_ref,omitempty"`
	SelfieImageRef *string    `json:"selfie_image_ref,omitempty"`
	AdminNotes     *string    `json:"admin_notes,omitempty"`
	ReviewedBy     *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
}

func newReviewView(rec *domain.VerificationRecord) reviewView {
	return reviewView{
		verificationView: newVerificationView(rec),
		UserID:           rec.UserID,
		CPF:              validation.FormatCPF(rec.CPF),
		DateOfBirth:      rec.DateOfBirth.Format(validation.DateLayout),
		PhoneNumber:      rec.PhoneNumber,
		DocumentNumber:   rec.DocumentNumber,
		FrontImageRef:    rec.FrontImageRef,
		BackImageRef:     rec.BackImageRef,
		SelfieImageRef:   rec.SelfieImageRef,
		AdminNotes:       rec.AdminNotes,
		ReviewedBy:       rec.ReviewedBy,
		ReviewedAt:       rec.ReviewedAt,
	}
}

type visitView struct {
	ID          uuid.UUID          `json:"id"`
	PropertyID  uuid.UUID          `json:"property_id"`
	ScheduledAt time.Time          `json:"scheduled_at"`
	Notes       *string            `json:"notes,omitempty"`
	Status      domain.VisitStatus `json:"status"`
}

func newVisitView(v *domain.Visit) *visitView {
	if v == nil {
		return nil
	}
	return &visitView{ID: v.ID, PropertyID: v.PropertyID, ScheduledAt: v.ScheduledAt, Notes: v.Notes, Status: v.Status}
}
