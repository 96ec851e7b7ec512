package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
)

// UserRepository defines the persistence operations for Users.
type UserRepository interface {
	// Create saves a new user to the database.
	Create(ctx context.Context, user *domain.User) error

	// GetByID finds a user by their internal UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail finds a user by their (case-insensitive) email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByTelegramID finds the user linked to a Telegram account.
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)

	Update(ctx context.Context, user *domain.User) error
}

// ProfileRepository persists the gate flags of a user.
type ProfileRepository interface {
	// Get returns nil, nil when the user has no profile yet.
	Get(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)

	// Upsert creates or replaces the whole profile.
	Upsert(ctx context.Context, profile *domain.UserProfile) error

	// MarkProfileCompleted sets profile_completed, creating the row if needed.
	MarkProfileCompleted(ctx context.Context, userID uuid.UUID) error

	// MarkVerified sets verified, verified_at and can_schedule_visits.
	MarkVerified(ctx context.Context, userID uuid.UUID, at time.Time) error
}
