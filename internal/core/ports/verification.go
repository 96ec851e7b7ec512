package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
)

// VerificationRepository persists VerificationRecords.
//
// Every write bumps Version. Status only changes through Transition, which is
// a compare-and-set on the version the caller read.
type VerificationRepository interface {
	// Create inserts a new record. It returns domain.ErrOpenVerificationExists
	// if the user already has a non-terminal record.
	Create(ctx context.Context, rec *domain.VerificationRecord) error

	// GetByID returns nil, nil when the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VerificationRecord, error)

	// GetOpenByUserID returns the user's non-terminal record, or nil, nil.
	GetOpenByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationRecord, error)

	// GetLatestByUserID returns the user's most recently created record, or nil, nil.
	GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationRecord, error)

	// GetApprovedByCPFHash returns an approved record for the CPF, or nil, nil.
	GetApprovedByCPFHash(ctx context.Context, cpfHash string) (*domain.VerificationRecord, error)

	// GetLatestByCPFHash returns the most recent record for the CPF, or nil, nil.
	GetLatestByCPFHash(ctx context.Context, cpfHash string) (*domain.VerificationRecord, error)

	// UpdatePersonalInfo rewrites the personal fields of a pending record.
	// It returns domain.ErrVersionConflict if the record changed or left pending.
	UpdatePersonalInfo(ctx context.Context, rec *domain.VerificationRecord) (*domain.VerificationRecord, error)

	// UpdateDocuments writes only the document fields of a pending record.
	UpdateDocuments(ctx context.Context, rec *domain.VerificationRecord) (*domain.VerificationRecord, error)

	// SetCheckResult writes only the field owned by kind. It returns
	// domain.ErrTerminalRecord when the record is already finalized.
	SetCheckResult(ctx context.Context, id uuid.UUID, kind domain.CheckKind, result string) (*domain.VerificationRecord, error)

	// Transition moves the record to decision.Status if its version still
	// equals expectedVersion, otherwise it returns domain.ErrVersionConflict.
	Transition(ctx context.Context, id uuid.UUID, expectedVersion int64, decision domain.ReviewDecision) (*domain.VerificationRecord, error)

	// List returns records for reviewers, newest first.
	List(ctx context.Context, filter domain.VerificationFilter) ([]*domain.VerificationRecord, error)
}

// CheckProvider runs one external background check and returns the
// provider's raw result string.
type CheckProvider interface {
	Run(ctx context.Context, kind domain.CheckKind, subject CheckSubject) (string, error)
}

// CheckSubject is the data sent to a check provider.
type CheckSubject struct {
	VerificationID uuid.UUID
	FullName       string
	CPF            string
	DateOfBirth    string
}

// DocumentStore keeps uploaded document images.
type DocumentStore interface {
	// Save stores data under a generated key and returns its reference.
	Save(ctx context.Context, owner uuid.UUID, name string, contentType string, data []byte) (ref string, err error)

	// Open returns the stored image. The caller closes the reader.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// StatusChange is broadcast whenever a verification changes status.
type StatusChange struct {
	VerificationID uuid.UUID                 `json:"verification_id"`
	UserID         uuid.UUID                 `json:"user_id"`
	Status         domain.VerificationStatus `json:"status"`
	Version        int64                     `json:"version"`
}

// StatusFeed fans status changes out to long-poll waiters, possibly across
// processes.
type StatusFeed interface {
	Publish(ctx context.Context, change StatusChange) error

	// Subscribe delivers changes for one verification until ctx is done or
	// the returned cancel func is called.
	Subscribe(ctx context.Context, verificationID uuid.UUID) (<-chan StatusChange, func(), error)
}
