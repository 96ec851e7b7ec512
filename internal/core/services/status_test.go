package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CasaBid/internal/core/domain"
)

func TestStatusService_Get_Ownership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, domain.DefaultPolicy())
	owner := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
	rec, err := h.intake.Start(ctx, owner.UserID, mariaInfo())
	require.NoError(t, err)

	got, err := h.status.Get(ctx, owner, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = h.status.Get(ctx, adminPrincipal(), rec.ID)
	assert.NoError(t, err)

	_, err = h.status.Get(ctx, userPrincipal(), rec.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.status.Get(ctx, nil, rec.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = h.status.Get(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatusService_Wait(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsAtOnceWhenNewer", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		owner := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
		rec := h.startChecking(t, owner.UserID)

		start := time.Now()
		got, err := h.status.Wait(ctx, owner, rec.ID, rec.Version-1, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusChecking, got.Status)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("ReturnsAtOnceWhenFinalized", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		owner := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
		rec := h.inManualReview(t, owner.UserID)
		rec, err := h.review.Approve(ctx, adminPrincipal(), rec.ID, nil)
		require.NoError(t, err)

		got, err := h.status.Wait(ctx, owner, rec.ID, rec.Version+10, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, got.Status)
	})

	t.Run("WakesOnTransition", func(t *testing.T) {
		// 1. Setup
		h := newHarness(t, domain.DefaultPolicy())
		owner := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
		rec := h.startChecking(t, owner.UserID)

		// 2. Run: results land while the waiter is blocked
		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = h.aggregator.RecordCheck(ctx, rec.ID, domain.CheckTaxID, "regular")
			_ = h.aggregator.RecordCheck(ctx, rec.ID, domain.CheckCriminal, "nada_consta")
		}()
		got, err := h.status.Wait(ctx, owner, rec.ID, rec.Version, time.Minute)

		// 3. Assert
		require.NoError(t, err)
		assert.Greater(t, got.Version, rec.Version)
	})

	t.Run("TimesOutWithUnchangedRecord", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		owner := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
		rec := h.startChecking(t, owner.UserID)

		start := time.Now()
		got, err := h.status.Wait(ctx, owner, rec.ID, rec.Version, 150*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, rec.Version, got.Version)
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("CallerCancellation", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		owner := &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
		rec := h.startChecking(t, owner.UserID)

		cctx, cancel := context.WithCancel(ctx)
		time.AfterFunc(50*time.Millisecond, cancel)

		_, err := h.status.Wait(cctx, owner, rec.ID, rec.Version, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStatusService_WaitLatest_NoRecord(t *testing.T) {
	h := newHarness(t, domain.DefaultPolicy())
	_, err := h.status.WaitLatest(context.Background(), userPrincipal(), 0, time.Second)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
