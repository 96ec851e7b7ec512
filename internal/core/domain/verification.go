package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the lifecycle state of a VerificationRecord.
type VerificationStatus string

const (
	StatusPending      VerificationStatus = "pending"
	StatusChecking     VerificationStatus = "checking"
	StatusManualReview VerificationStatus = "manual_review"
	StatusApproved     VerificationStatus = "approved"
	StatusRejected     VerificationStatus = "rejected"
	StatusFailed       VerificationStatus = "failed"
)

// OpenStatuses are the non-terminal states. A user holds at most one record
// in any of them.
var OpenStatuses = []VerificationStatus{StatusPending, StatusChecking, StatusManualReview}

func (s VerificationStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusFailed:
		return true
	}
	return false
}

func (s VerificationStatus) IsOpen() bool {
	switch s {
	case StatusPending, StatusChecking, StatusManualReview:
		return true
	}
	return false
}

func (s VerificationStatus) Valid() bool {
	return s.IsOpen() || s.IsTerminal()
}

var transitions = map[VerificationStatus][]VerificationStatus{
	StatusPending:      {StatusChecking},
	StatusChecking:     {StatusManualReview, StatusApproved, StatusRejected, StatusFailed},
	StatusManualReview: {StatusApproved, StatusRejected},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to VerificationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DocumentType is the kind of identity document the applicant uploaded.
type DocumentType string

const (
	DocumentNationalID    DocumentType = "national_id"
	DocumentDriverLicense DocumentType = "driver_license"
	DocumentPassport      DocumentType = "passport"
	DocumentTaxIDPhoto    DocumentType = "tax_id_photo"
)

func (d DocumentType) Valid() bool {
	switch d {
	case DocumentNationalID, DocumentDriverLicense, DocumentPassport, DocumentTaxIDPhoto:
		return true
	}
	return false
}

// RequiresBackImage is true for documents printed on both sides.
func (d DocumentType) RequiresBackImage() bool {
	return d == DocumentNationalID
}

// CheckKind names one of the two automated background checks.
type CheckKind string

const (
	CheckTaxID    CheckKind = "tax_id"
	CheckCriminal CheckKind = "criminal"
)

func (k CheckKind) Valid() bool {
	return k == CheckTaxID || k == CheckCriminal
}

// VerificationRecord is one identity-verification attempt of a user.
type VerificationRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	FullName    string
	CPF         string // Encrypted at rest
	CPFHash     string // Blind index for duplicate lookups
	DateOfBirth time.Time
	PhoneNumber string // Encrypted at rest

	DocumentType   *DocumentType
	DocumentNumber *string // Encrypted at rest
	FrontImageRef  *string
	BackImageRef   *string
	SelfieImageRef *string

	// Raw provider results; nil until the check reports.
	TaxIDCheck    *string
	CriminalCheck *string

	Status          VerificationStatus
	RejectionReason *string
	AdminNotes      *string
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time

	// Version is bumped on every write and guards status transitions.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckResult returns the stored result for kind, or nil if it has not reported.
func (r *VerificationRecord) CheckResult(kind CheckKind) *string {
	if kind == CheckTaxID {
		return r.TaxIDCheck
	}
	return r.CriminalCheck
}

// ChecksComplete reports whether both checks have written a result.
func (r *VerificationRecord) ChecksComplete() bool {
	return r.TaxIDCheck != nil && r.CriminalCheck != nil
}

// CheckErrored reports whether any check that has reported came back as an
// error. One errored check is enough to fail the record.
func (r *VerificationRecord) CheckErrored() bool {
	for _, res := range []*string{r.TaxIDCheck, r.CriminalCheck} {
		if res != nil && ClassifyOutcome(*res) == OutcomeError {
			return true
		}
	}
	return false
}

// HasDocuments reports whether the upload step has been completed.
func (r *VerificationRecord) HasDocuments() bool {
	return r.DocumentType != nil && r.FrontImageRef != nil && r.SelfieImageRef != nil
}

// ReviewDecision carries the fields written alongside a status transition.
type ReviewDecision struct {
	Status          VerificationStatus
	RejectionReason *string
	AdminNotes      *string
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time
}

// PersonalInfo is the first intake step.
type PersonalInfo struct {
	FullName    string `json:"full_name" validate:"required,notblank,max=200"`
	CPF         string `json:"cpf" validate:"required,cpf"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02,adult"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

// DocumentImage is an uploaded image held in memory until stored.
type DocumentImage struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DocumentUpload is the second intake step.
type DocumentUpload struct {
	DocumentType   DocumentType   `json:"document_type" validate:"doctype"`
	DocumentNumber string         `json:"document_number" validate:"required,notblank,max=50"`
	Front          *DocumentImage `json:"-"`
	Back           *DocumentImage `json:"-"`
	Selfie         *DocumentImage `json:"-"`
}

// VerificationFilter narrows the reviewer listing.
type VerificationFilter struct {
	Status *VerificationStatus
	// Search matches the applicant's name (case-insensitive substring).
	Search string
	// CPFHash matches the CPF blind index exactly.
	CPFHash string
	Limit   int
}
