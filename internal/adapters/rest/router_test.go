package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CasaBid/internal/adapters/checks"
	"CasaBid/internal/adapters/eventbus"
	"CasaBid/internal/adapters/memory"
	"CasaBid/internal/adapters/security"
	"CasaBid/internal/adapters/storage"
	"CasaBid/internal/client"
	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/services"
	"CasaBid/internal/core/validation"
)

type testAPI struct {
	handler       http.Handler
	tokens        ports.TokenService
	users         *memory.UserRepository
	profiles      *memory.ProfileRepository
	verifications *memory.VerificationRepository
	bus           *eventbus.InMemoryEventBus
}

func newTestAPI(t *testing.T, opts RouterOptions) *testAPI {
	t.Helper()
	return newTestAPIWithPolicy(t, opts, domain.DefaultPolicy())
}

func newTestAPIWithPolicy(t *testing.T, opts RouterOptions, policy domain.DecisionPolicy) *testAPI {
	t.Helper()
	nopLogger := zerolog.Nop()

	sec, err := security.NewAESService([]byte("0123456789abcdef0123456789abcdef"), &nopLogger)
	require.NoError(t, err)
	tokens, err := security.NewJWTService("test-secret-test-secret-test-secret!", "casabid", time.Hour, &nopLogger)
	require.NoError(t, err)
	store, err := storage.NewLocalStore(t.TempDir(), &nopLogger)
	require.NoError(t, err)

	api := &testAPI{
		tokens:        tokens,
		users:         memory.NewUserRepository(),
		profiles:      memory.NewProfileRepository(),
		verifications: memory.NewVerificationRepository(),
		bus:           eventbus.NewInMemoryEventBus(&nopLogger),
	}
	t.Cleanup(func() { api.bus.Drain(time.Second) })

	visits := memory.NewVisitRepository()
	feed := memory.NewStatusFeed()
	authz := services.NewRoleAuthorizer()
	v := validation.New(time.Now)

	aggregator := services.NewAggregator(api.verifications, api.profiles, visits, feed, api.bus, policy, &nopLogger)
	runner := services.NewCheckRunner(api.verifications, checks.NewSandboxProvider(0, &nopLogger), aggregator, api.bus, time.Second, &nopLogger)
	intake := services.NewIntakeService(api.verifications, api.profiles, store, sec, v, &nopLogger)
	gate := services.NewGateService(api.profiles, &nopLogger)

	svc := Services{
		Intake:    intake,
		Checks:    runner,
		Status:    services.NewStatusService(api.verifications, feed, authz, time.Second, &nopLogger),
		Review:    services.NewReviewService(api.verifications, aggregator, authz, sec, &nopLogger),
		Schedule:  services.NewScheduleService(api.users, api.profiles, api.verifications, visits, intake, runner, tokens, sec, authz, v, 24*time.Hour, &nopLogger),
		Gate:      gate,
		Proposals: services.NewProposalService(memory.NewProposalRepository(), gate, authz, &nopLogger),
		Authz:     authz,
		Tokens:    tokens,
		Users:     api.users,
	}
	api.handler = NewRouter(svc, opts, &nopLogger)
	return api
}

// login creates a user with role and returns a bearer token for it.
func (a *testAPI) login(t *testing.T, role domain.Role) (uuid.UUID, string) {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, a.users.Create(context.Background(), u))
	token, err := a.tokens.Issue(u.ID, role)
	require.NoError(t, err)
	return u.ID, token
}

// seedManualReview stores a record for userID already waiting on a reviewer.
func (a *testAPI) seedManualReview(t *testing.T, userID uuid.UUID) *domain.VerificationRecord {
	t.Helper()
	ctx := context.Background()
	rec := &domain.VerificationRecord{
		ID:          uuid.New(),
		UserID:      userID,
		FullName:    "Maria Silva",
		CPF:         "11144477735",
		CPFHash:     "hash",
		DateOfBirth: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		PhoneNumber: "+5561999999999",
		Status:      domain.StatusPending,
	}
	require.NoError(t, a.verifications.Create(ctx, rec))
	rec, err := a.verifications.Transition(ctx, rec.ID, rec.Version, domain.ReviewDecision{Status: domain.StatusChecking})
	require.NoError(t, err)
	rec, err = a.verifications.Transition(ctx, rec.ID, rec.Version, domain.ReviewDecision{Status: domain.StatusManualReview})
	require.NoError(t, err)
	return rec
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func mariaBody() map[string]string {
	return map[string]string{
		"full_name":     "Maria Silva",
		"cpf":           "111.444.777-35",
		"date_of_birth": "2000-01-01",
		"phone_number":  "+5561999999999",
	}
}

func TestVerificationStart(t *testing.T) {
	t.Run("CreatesPendingRecordWithMaskedCPF", func(t *testing.T) {
		// 1. Setup
		api := newTestAPI(t, RouterOptions{})
		_, token := api.login(t, domain.RoleUser)

		// 2. Execute
		rr := api.do(t, http.MethodPost, "/api/verification/start", token, mariaBody())

		// 3. Assert
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		body := decodeBody(t, rr)
		v := body["verification"].(map[string]any)
		assert.Equal(t, "pending", v["status"])
		assert.NotContains(t, v["cpf"], "111.444")
		assert.Equal(t, "Maria Silva", v["full_name"])
	})

	t.Run("WithoutSession", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		rr := api.do(t, http.MethodPost, "/api/verification/start", "", mariaBody())
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("InvalidTokenIsRejected", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		rr := api.do(t, http.MethodPost, "/api/verification/start", "not-a-token", mariaBody())
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("ValidationErrorsListFields", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, token := api.login(t, domain.RoleUser)
		body := mariaBody()
		body["cpf"] = "111.111.111-11"

		rr := api.do(t, http.MethodPost, "/api/verification/start", token, body)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		fields := decodeBody(t, rr)["fields"].(map[string]any)
		assert.Contains(t, fields, "cpf")
	})
}

func TestUploadDocuments_NationalIDWithoutBack(t *testing.T) {
	// 1. Setup
	api := newTestAPI(t, RouterOptions{})
	_, token := api.login(t, domain.RoleUser)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/verification/start", token, mariaBody()).Code)

	req := uploadRequest(t, token, domain.DocumentNationalID, "document_front", "selfie")
	rr := httptest.NewRecorder()

	// 2. Execute
	api.handler.ServeHTTP(rr, req)

	// 3. Assert
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	fields := decodeBody(t, rr)["fields"].(map[string]any)
	assert.Contains(t, fields, "document_back")
}

var tinyPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// uploadRequest builds a multipart upload carrying a PNG for each image field.
func uploadRequest(t *testing.T, token string, docType domain.DocumentType, imageFields ...string) *http.Request {
	t.Helper()
	fields := map[string]string{"document_type": string(docType), "document_number": "123456789"}
	return multipartRequest(t, "/api/verification/upload-documents", token, fields, imageFields...)
}

func multipartRequest(t *testing.T, path, token string, fields map[string]string, imageFields ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for _, field := range imageFields {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+field+`.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(tinyPNG)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminDecisions(t *testing.T) {
	t.Run("RejectWithoutReasonChangesNothing", func(t *testing.T) {
		// 1. Setup
		api := newTestAPI(t, RouterOptions{})
		_, adminToken := api.login(t, domain.RoleAdmin)
		rec := api.seedManualReview(t, uuid.New())

		// 2. Execute
		rr := api.do(t, http.MethodPost, "/api/admin/verifications/"+rec.ID.String()+"/reject", adminToken,
			map[string]string{"reason": "  "})

		// 3. Assert
		require.Equal(t, http.StatusBadRequest, rr.Code)
		stored, err := api.verifications.GetByID(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusManualReview, stored.Status)
		assert.Equal(t, rec.Version, stored.Version)
	})

	t.Run("ApproveTwiceIsConflict", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, adminToken := api.login(t, domain.RoleAdmin)
		rec := api.seedManualReview(t, uuid.New())
		path := "/api/admin/verifications/" + rec.ID.String() + "/approve"

		first := api.do(t, http.MethodPost, path, adminToken, map[string]string{"notes": "documents match"})
		require.Equal(t, http.StatusOK, first.Code, first.Body.String())
		v := decodeBody(t, first)["verification"].(map[string]any)
		assert.Equal(t, "approved", v["status"])
		assert.Equal(t, "documents match", v["admin_notes"])

		second := api.do(t, http.MethodPost, path, adminToken, nil)
		assert.Equal(t, http.StatusConflict, second.Code)
	})

	t.Run("RejectShowsReasonOnPanel", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, adminToken := api.login(t, domain.RoleAdmin)
		ownerID, ownerToken := api.login(t, domain.RoleUser)
		rec := api.seedManualReview(t, ownerID)

		rr := api.do(t, http.MethodPost, "/api/admin/verifications/"+rec.ID.String()+"/reject", adminToken,
			map[string]string{"reason": "document photo is unreadable"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		status := api.do(t, http.MethodGet, "/api/verification-status?id="+rec.ID.String(), ownerToken, nil)
		require.Equal(t, http.StatusOK, status.Code)
		body := decodeBody(t, status)
		assert.Equal(t, "rejected", body["status"])
		panel := body["panel"].(map[string]any)
		assert.Contains(t, panel["message"], "document photo is unreadable")
	})

	t.Run("RegularUserIsForbidden", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, token := api.login(t, domain.RoleUser)
		rr := api.do(t, http.MethodGet, "/api/admin/verifications?status=manual_review", token, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("ListByStatus", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, adminToken := api.login(t, domain.RoleAdmin)
		rec := api.seedManualReview(t, uuid.New())

		rr := api.do(t, http.MethodGet, "/api/admin/verifications?status=manual_review&search=maria", adminToken, nil)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		list := decodeBody(t, rr)["verifications"].([]any)
		require.Len(t, list, 1)
		item := list[0].(map[string]any)
		assert.Equal(t, rec.ID.String(), item["id"])
		assert.Equal(t, "111.444.777-35", item["cpf"])
	})

	t.Run("UnknownRecord", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, adminToken := api.login(t, domain.RoleAdmin)
		rr := api.do(t, http.MethodGet, "/api/admin/verifications/"+uuid.NewString(), adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestStatusLongPoll(t *testing.T) {
	t.Run("ReturnsUnchangedRecordWhenWaitExpires", func(t *testing.T) {
		// 1. Setup
		api := newTestAPI(t, RouterOptions{})
		userID, token := api.login(t, domain.RoleUser)
		rec := api.seedManualReview(t, userID)

		// 2. Execute
		start := time.Now()
		rr := api.do(t, http.MethodGet, "/api/verification/status?wait=100ms&version="+
			jsonNumber(rec.Version), token, nil)

		// 3. Assert
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
		assert.Equal(t, "manual_review", decodeBody(t, rr)["status"])
	})

	t.Run("OtherUsersRecordIsForbidden", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, token := api.login(t, domain.RoleUser)
		rec := api.seedManualReview(t, uuid.New())

		rr := api.do(t, http.MethodGet, "/api/verification-status?id="+rec.ID.String(), token, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("BadParameters", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})
		_, token := api.login(t, domain.RoleUser)

		assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/verification/status?wait=soon", token, nil).Code)
		assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/verification-status?id=nope", token, nil).Code)
	})
}

func jsonNumber(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func TestAuthorizationGate(t *testing.T) {
	api := newTestAPI(t, RouterOptions{})
	ctx := context.Background()

	_, noProfileToken := api.login(t, domain.RoleUser)
	verifiedID, verifiedToken := api.login(t, domain.RoleUser)
	require.NoError(t, api.profiles.Upsert(ctx, &domain.UserProfile{UserID: verifiedID, ProfileCompleted: true, Verified: true}))
	bidderID, bidderToken := api.login(t, domain.RoleUser)
	require.NoError(t, api.profiles.Upsert(ctx, &domain.UserProfile{UserID: bidderID, ProfileCompleted: true, Verified: true, CanPlaceBids: true}))

	tests := []struct {
		name   string
		token  string
		action string
		route  string
	}{
		{"Anonymous", "", "submit_proposal", "login"},
		{"NoProfile", noProfileToken, "schedule_visit", "complete_profile"},
		{"VerifiedWithoutBids", verifiedToken, "submit_proposal", "schedule_visit"},
		{"VerifiedSchedules", verifiedToken, "schedule_visit", "proceed"},
		{"Bidder", bidderToken, "submit_proposal", "proceed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodGet, "/api/authorization?action="+tt.action, tt.token, nil)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Equal(t, tt.route, decodeBody(t, rr)["route"])
		})
	}

	t.Run("UnknownAction", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/authorization?action=fly", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestProposals(t *testing.T) {
	api := newTestAPI(t, RouterOptions{})
	ctx := context.Background()
	body := map[string]any{"property_id": uuid.NewString(), "amount": "450000.00"}

	t.Run("GateSendsUnverifiedUserToScheduleVisit", func(t *testing.T) {
		userID, token := api.login(t, domain.RoleUser)
		require.NoError(t, api.profiles.Upsert(ctx, &domain.UserProfile{UserID: userID, ProfileCompleted: true, Verified: true}))

		rr := api.do(t, http.MethodPost, "/api/proposals", token, body)

		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "schedule_visit", decodeBody(t, rr)["route"])
	})

	t.Run("Accepted", func(t *testing.T) {
		userID, token := api.login(t, domain.RoleUser)
		require.NoError(t, api.profiles.Upsert(ctx, &domain.UserProfile{UserID: userID, ProfileCompleted: true, Verified: true, CanPlaceBids: true}))

		rr := api.do(t, http.MethodPost, "/api/proposals", token, body)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		p := decodeBody(t, rr)["proposal"].(map[string]any)
		assert.Equal(t, "450000.00", p["amount"])
	})
}

func guestVisitBody() map[string]any {
	return map[string]any{
		"is_guest":      true,
		"email":         "maria@example.com",
		"property_id":   uuid.NewString(),
		"scheduled_at":  time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"full_name":     "Maria Silva",
		"cpf":           "529.982.247-25",
		"date_of_birth": "2000-01-01",
		"phone_number":  "+5561999999999",
	}
}

func TestScheduleVisit_GuestGetsPendingReview(t *testing.T) {
	// 1. Setup
	api := newTestAPI(t, RouterOptions{})
	body := guestVisitBody()

	// 2. Execute
	rr := api.do(t, http.MethodPost, "/api/schedule-visit", "", body)

	// 3. Assert
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	out := decodeBody(t, rr)
	assert.Equal(t, domain.CodePendingReview, out["code"])
	assert.NotEmpty(t, out["verification_id"])
	assert.NotEmpty(t, out["access_token"])
	assert.Equal(t, true, out["documents_required"])

	// The same CPF cannot be used by another guest while it is open.
	body["email"] = "other@example.com"
	again := api.do(t, http.MethodPost, "/api/schedule-visit", "", body)
	require.Equal(t, http.StatusConflict, again.Code, again.Body.String())
	assert.Equal(t, domain.CodeCPFExists, decodeBody(t, again)["code"])
}

func TestScheduleVisit_GuestUploadsWithAccessToken(t *testing.T) {
	// 1. Setup: a guest schedules without documents
	api := newTestAPI(t, RouterOptions{})
	rr := api.do(t, http.MethodPost, "/api/schedule-visit", "", guestVisitBody())
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	out := decodeBody(t, rr)
	token := out["access_token"].(string)
	id := uuid.MustParse(out["verification_id"].(string))

	rec, err := api.verifications.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, rec.Status)

	// 2. Execute: upload with the guest token, then trigger the checks
	up := httptest.NewRecorder()
	api.handler.ServeHTTP(up, uploadRequest(t, token, domain.DocumentPassport, "document_front", "selfie"))
	require.Equal(t, http.StatusOK, up.Code, up.Body.String())
	assert.Equal(t, true, decodeBody(t, up)["verification"].(map[string]any)["has_documents"])

	for _, path := range []string{"/api/verification/check-cpf", "/api/verification/check-criminal"} {
		res := api.do(t, http.MethodPost, path, token, nil)
		require.Equal(t, http.StatusAccepted, res.Code, res.Body.String())
	}

	// 3. Assert
	waitForStatus(t, api, id, domain.StatusManualReview)
}

func TestScheduleVisit_MultipartWithDocuments(t *testing.T) {
	// 1. Setup
	api := newTestAPI(t, RouterOptions{})
	fields := map[string]string{"document_type": "passport", "document_number": "FA123456"}
	for k, v := range guestVisitBody() {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	fields["is_guest"] = "true"

	// 2. Execute
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, multipartRequest(t, "/api/schedule-visit", "", fields, "document_front", "selfie"))

	// 3. Assert
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	out := decodeBody(t, rr)
	assert.NotContains(t, out, "documents_required")
	assert.NotEmpty(t, out["access_token"])
	waitForStatus(t, api, uuid.MustParse(out["verification_id"].(string)), domain.StatusManualReview)
}

func TestChecksRequireDocuments(t *testing.T) {
	// 1. Setup
	api := newTestAPI(t, RouterOptions{})
	_, token := api.login(t, domain.RoleUser)
	start := api.do(t, http.MethodPost, "/api/verification/start", token, mariaBody())
	require.Equal(t, http.StatusOK, start.Code, start.Body.String())
	id := uuid.MustParse(decodeBody(t, start)["verification"].(map[string]any)["id"].(string))

	// 2. Execute
	rr := api.do(t, http.MethodPost, "/api/verification/check-cpf", token, nil)

	// 3. Assert
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	assert.Contains(t, decodeBody(t, rr)["error"], "documents")
	rec, err := api.verifications.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, rec.Status)
}

func TestRateLimit(t *testing.T) {
	// 1. Setup
	api := newTestAPI(t, RouterOptions{Limiter: memory.NewRateLimiter(1, time.Minute)})

	// 2. Execute
	first := api.do(t, http.MethodGet, "/api/authorization?action=schedule_visit", "", nil)
	second := api.do(t, http.MethodGet, "/api/authorization?action=schedule_visit", "", nil)

	// 3. Assert
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name string
		ping Pinger
		code int
	}{
		{"Up", func(context.Context) error { return nil }, http.StatusOK},
		{"Down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, RouterOptions{Health: map[string]Pinger{"postgres": tt.ping}})
			rr := api.do(t, http.MethodGet, "/healthz", "", nil)
			assert.Equal(t, tt.code, rr.Code)
			assert.True(t, strings.Contains(rr.Body.String(), "postgres"))
		})
	}
}

// submitMaria runs start, upload and both check triggers for a fresh user and
// returns the record id with the owner's token.
func submitMaria(t *testing.T, api *testAPI) (uuid.UUID, string) {
	t.Helper()
	_, token := api.login(t, domain.RoleUser)

	start := api.do(t, http.MethodPost, "/api/verification/start", token, mariaBody())
	require.Equal(t, http.StatusOK, start.Code, start.Body.String())
	v := decodeBody(t, start)["verification"].(map[string]any)
	require.Equal(t, "pending", v["status"])
	id := uuid.MustParse(v["id"].(string))

	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, uploadRequest(t, token, domain.DocumentPassport, "document_front", "selfie"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	uploaded := decodeBody(t, rr)["verification"].(map[string]any)
	assert.Equal(t, "pending", uploaded["status"])
	assert.Equal(t, true, uploaded["has_documents"])

	for _, path := range []string{"/api/verification/check-cpf", "/api/verification/check-criminal"} {
		res := api.do(t, http.MethodPost, path, token, nil)
		require.Equal(t, http.StatusAccepted, res.Code, res.Body.String())
	}
	return id, token
}

func waitForStatus(t *testing.T, api *testAPI, id uuid.UUID, want domain.VerificationStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := api.verifications.GetByID(context.Background(), id)
		return err == nil && rec != nil && rec.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEndToEnd_DualPass(t *testing.T) {
	t.Run("DefaultPolicyGoesToManualReview", func(t *testing.T) {
		api := newTestAPI(t, RouterOptions{})

		id, _ := submitMaria(t, api)

		waitForStatus(t, api, id, domain.StatusManualReview)
	})

	t.Run("AutoApprovalPolicy", func(t *testing.T) {
		policy, err := domain.ParsePolicy("pass+pass=approved")
		require.NoError(t, err)
		api := newTestAPIWithPolicy(t, RouterOptions{}, policy)

		id, _ := submitMaria(t, api)

		waitForStatus(t, api, id, domain.StatusApproved)
		rec, err := api.verifications.GetByID(context.Background(), id)
		require.NoError(t, err)
		profile, err := api.profiles.Get(context.Background(), rec.UserID)
		require.NoError(t, err)
		require.NotNil(t, profile)
		assert.True(t, profile.Verified)
	})
}

func TestEndToEnd_PollerObservesRejection(t *testing.T) {
	// 1. Setup: a record waiting on a reviewer and a poller watching it.
	api := newTestAPI(t, RouterOptions{})
	id, ownerToken := submitMaria(t, api)
	waitForStatus(t, api, id, domain.StatusManualReview)
	_, adminToken := api.login(t, domain.RoleAdmin)

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	nopLogger := zerolog.Nop()
	poller := client.NewPoller(client.PollerConfig{
		BaseURL:    srv.URL,
		Token:      ownerToken,
		Hold:       time.Second,
		Timeout:    5 * time.Second,
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
		HTTPClient: srv.Client(),
	}, &nopLogger)

	firstSeen := make(chan struct{})
	var once sync.Once
	type outcome struct {
		status client.Status
		at     time.Time
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		st, err := poller.Watch(context.Background(), id, func(client.Status) { once.Do(func() { close(firstSeen) }) })
		done <- outcome{status: st, at: time.Now(), err: err}
	}()

	// 2. Execute
	select {
	case <-firstSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never reported the initial status")
	}
	rejectedAt := time.Now()
	rr := api.do(t, http.MethodPost, "/api/admin/verifications/"+id.String()+"/reject", adminToken,
		map[string]string{"reason": "Documento ilegível"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// 3. Assert
	var res outcome
	select {
	case res = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not finish")
	}
	require.NoError(t, res.err)
	assert.Equal(t, domain.StatusRejected, res.status.Status)
	assert.Contains(t, res.status.Panel.Message, "Documento ilegível")
	assert.Less(t, res.at.Sub(rejectedAt), time.Second)
}
