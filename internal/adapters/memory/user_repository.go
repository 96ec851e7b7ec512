package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

var errDuplicateEmail = errors.New("email already registered")

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]domain.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errDuplicateEmail
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) find(match func(domain.User) bool) *domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found
		}
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id }), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.TelegramID != nil && *u.TelegramID == telegramID }), nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	r.users[user.ID] = *user
	return nil
}

type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]domain.UserProfile
	now      func() time.Time
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[uuid.UUID]domain.UserProfile), now: time.Now}
}

func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = *profile
	return nil
}

func (r *ProfileRepository) MarkProfileCompleted(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[userID]
	p.UserID = userID
	p.ProfileCompleted = true
	p.UpdatedAt = r.now()
	r.profiles[userID] = p
	return nil
}

func (r *ProfileRepository) MarkVerified(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[userID]
	p.UserID = userID
	p.Verified = true
	p.VerifiedAt = &at
	p.CanScheduleVisits = true
	p.UpdatedAt = r.now()
	r.profiles[userID] = p
	return nil
}
