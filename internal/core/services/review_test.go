package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CasaBid/internal/core/domain"
)

func TestReviewService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("FinalizesAndVerifiesProfile", func(t *testing.T) {
		// 1. Setup
		h := newHarness(t, domain.DefaultPolicy())
		userID := uuid.New()
		rec := h.inManualReview(t, userID)
		reviewer := adminPrincipal()
		notes := "  documento conferido  "

		// 2. Run
		got, err := h.review.Approve(ctx, reviewer, rec.ID, &notes)
		require.NoError(t, err)

		// 3. Assert
		assert.Equal(t, domain.StatusApproved, got.Status)
		assert.Equal(t, reviewer.UserID, *got.ReviewedBy)
		assert.Equal(t, testNow, *got.ReviewedAt)
		assert.Equal(t, "documento conferido", *got.AdminNotes)
		assert.Nil(t, got.RejectionReason)

		profile, _ := h.profiles.Get(ctx, userID)
		assert.True(t, profile.Verified)
		assert.Equal(t, testNow, *profile.VerifiedAt)
		assert.Contains(t, h.bus.Topics(), "verification:approved")
	})

	t.Run("SecondApprovalIsInvalidTransition", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		rec := h.inManualReview(t, uuid.New())
		first, err := h.review.Approve(ctx, adminPrincipal(), rec.ID, nil)
		require.NoError(t, err)

		_, err = h.review.Approve(ctx, adminPrincipal(), rec.ID, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, _ := h.verifications.GetByID(ctx, rec.ID)
		assert.Equal(t, first.Version, stored.Version)
		assert.Equal(t, first.ReviewedBy, stored.ReviewedBy)
	})

	t.Run("NotYetInManualReview", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		rec := h.startChecking(t, uuid.New())

		_, err := h.review.Approve(ctx, adminPrincipal(), rec.ID, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("RegularUserForbidden", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		rec := h.inManualReview(t, uuid.New())

		_, err := h.review.Approve(ctx, userPrincipal(), rec.ID, nil)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		_, err = h.review.Approve(ctx, nil, rec.ID, nil)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)

		stored, _ := h.verifications.GetByID(ctx, rec.ID)
		assert.Equal(t, domain.StatusManualReview, stored.Status)
	})

	t.Run("UnknownRecord", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		_, err := h.review.Approve(ctx, adminPrincipal(), uuid.New(), nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestReviewService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyReasonChangesNothing", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		rec := h.inManualReview(t, uuid.New())

		_, err := h.review.Reject(ctx, adminPrincipal(), rec.ID, "   ", nil)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "reason")
		stored, _ := h.verifications.GetByID(ctx, rec.ID)
		assert.Equal(t, rec.Version, stored.Version)
		assert.Equal(t, domain.StatusManualReview, stored.Status)
	})

	t.Run("RecordsReason", func(t *testing.T) {
		h := newHarness(t, domain.DefaultPolicy())
		userID := uuid.New()
		rec := h.inManualReview(t, userID)

		got, err := h.review.Reject(ctx, adminPrincipal(), rec.ID, "Selfie não confere", nil)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusRejected, got.Status)
		assert.Equal(t, "Selfie não confere", *got.RejectionReason)
		profile, _ := h.profiles.Get(ctx, userID)
		assert.False(t, profile.Verified)
	})
}

func TestReviewService_List(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, domain.DefaultPolicy())
	inReview := h.inManualReview(t, uuid.New())
	_, err := h.intake.Start(ctx, uuid.New(), domain.PersonalInfo{
		FullName:    "João Souza",
		CPF:         "529.982.247-25",
		DateOfBirth: "1985-03-02",
		PhoneNumber: "11 98888-7777",
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter domain.VerificationFilter
		want   int
	}{
		{"All", domain.VerificationFilter{}, 2},
		{"ByStatus", domain.VerificationFilter{Status: statusPtr(domain.StatusManualReview)}, 1},
		{"ByFormattedCPF", domain.VerificationFilter{Search: "123.456.789-09"}, 1},
		{"ByName", domain.VerificationFilter{Search: "souza"}, 1},
		{"NoMatch", domain.VerificationFilter{Search: "111.444.777-35"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := h.review.List(ctx, adminPrincipal(), tc.filter)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}

	t.Run("ByCPFFindsTheRecord", func(t *testing.T) {
		got, err := h.review.List(ctx, adminPrincipal(), domain.VerificationFilter{Search: "12345678909"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, inReview.ID, got[0].ID)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		_, err := h.review.List(ctx, adminPrincipal(), domain.VerificationFilter{Status: statusPtr("done")})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("Forbidden", func(t *testing.T) {
		_, err := h.review.List(ctx, userPrincipal(), domain.VerificationFilter{})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func statusPtr(s domain.VerificationStatus) *domain.VerificationStatus { return &s }
