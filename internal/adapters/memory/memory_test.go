package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

func newPending(userID uuid.UUID) *domain.VerificationRecord {
	return &domain.VerificationRecord{
		ID:       uuid.New(),
		UserID:   userID,
		FullName: "Maria Silva",
		CPFHash:  "hash-1",
		Status:   domain.StatusPending,
	}
}

func TestVerificationRepository_OneOpenPerUser(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepository()
	userID := uuid.New()

	require.NoError(t, repo.Create(ctx, newPending(userID)))
	assert.ErrorIs(t, repo.Create(ctx, newPending(userID)), domain.ErrOpenVerificationExists)
	assert.NoError(t, repo.Create(ctx, newPending(uuid.New())))
}

func TestVerificationRepository_TransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepository()
	rec := newPending(uuid.New())
	require.NoError(t, repo.Create(ctx, rec))

	// 1. First writer wins
	updated, err := repo.Transition(ctx, rec.ID, 1, domain.ReviewDecision{Status: domain.StatusChecking})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// 2. Stale writer loses
	_, err = repo.Transition(ctx, rec.ID, 1, domain.ReviewDecision{Status: domain.StatusChecking})
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	// 3. Check writes bump the version too
	withTax, err := repo.SetCheckResult(ctx, rec.ID, domain.CheckTaxID, "regular")
	require.NoError(t, err)
	assert.Equal(t, int64(3), withTax.Version)
	assert.Nil(t, withTax.CriminalCheck)
}

func TestVerificationRepository_TerminalRecordIgnoresChecks(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepository()
	rec := newPending(uuid.New())
	require.NoError(t, repo.Create(ctx, rec))

	_, err := repo.Transition(ctx, rec.ID, 1, domain.ReviewDecision{Status: domain.StatusChecking})
	require.NoError(t, err)
	_, err = repo.Transition(ctx, rec.ID, 2, domain.ReviewDecision{Status: domain.StatusFailed})
	require.NoError(t, err)

	_, err = repo.SetCheckResult(ctx, rec.ID, domain.CheckCriminal, "nada_consta")
	assert.ErrorIs(t, err, domain.ErrTerminalRecord)

	stored, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CriminalCheck)
	assert.Equal(t, int64(3), stored.Version)
}

func TestVerificationRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepository()
	rec := newPending(uuid.New())
	require.NoError(t, repo.Create(ctx, rec))

	got, _ := repo.GetByID(ctx, rec.ID)
	got.Status = domain.StatusApproved

	again, _ := repo.GetByID(ctx, rec.ID)
	assert.Equal(t, domain.StatusPending, again.Status)
}

func TestVerificationRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationRepository()

	a := newPending(uuid.New())
	b := newPending(uuid.New())
	b.FullName = "João Souza"
	b.CPFHash = "hash-2"
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	all, err := repo.List(ctx, domain.VerificationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	byName, _ := repo.List(ctx, domain.VerificationFilter{Search: "maria"})
	require.Len(t, byName, 1)
	assert.Equal(t, a.ID, byName[0].ID)

	byCPF, _ := repo.List(ctx, domain.VerificationFilter{CPFHash: "hash-2"})
	require.Len(t, byCPF, 1)
	assert.Equal(t, b.ID, byCPF[0].ID)

	review := domain.StatusManualReview
	none, _ := repo.List(ctx, domain.VerificationFilter{Status: &review})
	assert.Empty(t, none)
}

func TestStatusFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewStatusFeed()
	id := uuid.New()

	ch, unsubscribe, err := feed.Subscribe(ctx, id)
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, ports.StatusChange{VerificationID: uuid.New(), Status: domain.StatusApproved}))
	require.NoError(t, feed.Publish(ctx, ports.StatusChange{VerificationID: id, Status: domain.StatusRejected, Version: 4}))

	select {
	case change := <-ch:
		assert.Equal(t, domain.StatusRejected, change.Status)
		assert.Equal(t, int64(4), change.Version)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	unsubscribe()
	require.NoError(t, feed.Publish(ctx, ports.StatusChange{VerificationID: id}))
	select {
	case <-ch:
		t.Fatal("delivered after unsubscribe")
	default:
	}
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, _ := l.Allow(ctx, "ip")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _, _ = l.Allow(ctx, "other")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _, _ = l.Allow(ctx, "ip")
	assert.True(t, ok)
}

func TestRateLimiter_DropsExpiredWindows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		ok, _, err := l.Allow(ctx, ip)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Len(t, l.windows, 3)

	// Within the window nothing is swept.
	now = now.Add(30 * time.Second)
	_, _, _ = l.Allow(ctx, "10.0.0.1")
	assert.Len(t, l.windows, 3)

	// Once the window has passed only the active key remains.
	now = now.Add(time.Minute)
	_, _, _ = l.Allow(ctx, "10.0.0.4")
	assert.Len(t, l.windows, 1)
	assert.Contains(t, l.windows, "10.0.0.4")
}
