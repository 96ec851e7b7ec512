package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

type userRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.UserRepository = (*userRepository)(nil)

// NewUserRepository creates a new repository for user operations.
func NewUserRepository(db *DB, baseLogger *zerolog.Logger) ports.UserRepository {
	return &userRepository{
		db:  db,
		log: baseLogger.With().Str("component", "user_repo").Logger(),
	}
}

const userQueryCols = `id, email, full_name, role, telegram_id, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, full_name, role, telegram_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.FullName, user.Role, user.TelegramID,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to insert new user")
	}
	return err
}

func (r *userRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.TelegramID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Err(err).Msg("Failed to scan user row")
		}
		return nil, err
	}
	return &user, nil
}

// get returns nil, nil for "not found".
func (r *userRepository) get(ctx context.Context, where string, arg any) (*domain.User, error) {
	user, err := r.scanUser(r.db.pool.QueryRow(ctx, `SELECT `+userQueryCols+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, "lower(email) = lower($1)", email)
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return r.get(ctx, "telegram_id = $1", telegramID)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users SET email = $2, full_name = $3, role = $4, telegram_id = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.pool.QueryRow(ctx, query, user.ID, user.Email, user.FullName, user.Role, user.TelegramID).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		r.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to update user")
	}
	return err
}

type profileRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.ProfileRepository = (*profileRepository)(nil)

func NewProfileRepository(db *DB, baseLogger *zerolog.Logger) ports.ProfileRepository {
	return &profileRepository{
		db:  db,
		log: baseLogger.With().Str("component", "profile_repo").Logger(),
	}
}

func (r *profileRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, profile_completed, verified, verified_at, can_schedule_visits, can_place_bids, updated_at
		FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.ProfileCompleted, &p.Verified, &p.VerifiedAt, &p.CanScheduleVisits, &p.CanPlaceBids, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to load profile")
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) Upsert(ctx context.Context, p *domain.UserProfile) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, profile_completed, verified, verified_at, can_schedule_visits, can_place_bids, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			profile_completed = EXCLUDED.profile_completed,
			verified = EXCLUDED.verified,
			verified_at = EXCLUDED.verified_at,
			can_schedule_visits = EXCLUDED.can_schedule_visits,
			can_place_bids = EXCLUDED.can_place_bids,
			updated_at = now()`,
		p.UserID, p.ProfileCompleted, p.Verified, p.VerifiedAt, p.CanScheduleVisits, p.CanPlaceBids,
	)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to upsert profile")
	}
	return err
}

func (r *profileRepository) MarkProfileCompleted(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, profile_completed) VALUES ($1, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET profile_completed = TRUE, updated_at = now()`, userID)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to mark profile completed")
	}
	return err
}

func (r *profileRepository) MarkVerified(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, verified, verified_at, can_schedule_visits) VALUES ($1, TRUE, $2, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			verified = TRUE, verified_at = $2, can_schedule_visits = TRUE, updated_at = now()`, userID, at)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to mark profile verified")
	}
	return err
}
