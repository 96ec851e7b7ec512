package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a custom type for our role ENUM
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account holder in the system.
type User struct {
	ID         uuid.UUID
	Email      string
	FullName   *string // Nullable
	Role       Role
	TelegramID *int64 // Nullable, set for moderators using the review bot
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Principal builds the caller identity used for capability checks.
func (u *User) Principal() *Principal {
	return &Principal{UserID: u.ID, Role: u.Role}
}

// UserProfile holds the flags the authorization gate reads.
type UserProfile struct {
	UserID            uuid.UUID
	ProfileCompleted  bool
	Verified          bool
	VerifiedAt        *time.Time
	CanScheduleVisits bool
	CanPlaceBids      bool
	UpdatedAt         time.Time
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// Action is a capability a principal may be granted.
type Action string

const (
	ActionSubmitVerification  Action = "verification:submit"
	ActionReadVerification    Action = "verification:read"
	ActionReviewVerifications Action = "verification:review"
	ActionScheduleVisit       Action = "visit:schedule"
	ActionSubmitProposal      Action = "proposal:submit"
)
