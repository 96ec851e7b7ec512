package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"CasaBid/internal/adapters/memory"
	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/validation"
)

// --- Mocks ---

// MockCheckProvider
type MockCheckProvider struct {
	mock.Mock
}

func (m *MockCheckProvider) Run(ctx context.Context, kind domain.CheckKind, subject ports.CheckSubject) (string, error) {
	args := m.Called(ctx, kind, subject)
	return args.String(0), args.Error(1)
}

// MockDocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Save(ctx context.Context, owner uuid.UUID, name, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, owner, name, contentType, data)
	return args.String(0), args.Error(1)
}
func (m *MockDocumentStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockTokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(userID uuid.UUID, role domain.Role) (string, error) {
	args := m.Called(userID, role)
	return args.String(0), args.Error(1)
}
func (m *MockTokenService) Parse(token string) (*domain.Principal, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Principal), args.Error(1)
}

// fakeSecurity keeps values readable in assertions.
type fakeSecurity struct{}

func (fakeSecurity) Encrypt(p []byte) ([]byte, error) { return p, nil }
func (fakeSecurity) Decrypt(c []byte) ([]byte, error) { return c, nil }
func (fakeSecurity) Hash(v string) string             { return "hash:" + v }

// syncBus runs handlers inline so tests are deterministic.
type syncBus struct {
	mu        sync.Mutex
	handlers  map[string][]ports.EventHandler
	published []string
}

func newSyncBus() *syncBus {
	return &syncBus{handlers: make(map[string][]ports.EventHandler)}
}

func (b *syncBus) Publish(ctx context.Context, topic string, data interface{}) error {
	b.mu.Lock()
	b.published = append(b.published, topic)
	handlers := append([]ports.EventHandler(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, ports.Event{Topic: topic, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

func (b *syncBus) Subscribe(topic string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

func (b *syncBus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

// --- Harness ---

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	verifications *memory.VerificationRepository
	users         *memory.UserRepository
	profiles      *memory.ProfileRepository
	visits        *memory.VisitRepository
	proposalsRepo *memory.ProposalRepository
	feed          *memory.StatusFeed
	bus           *syncBus
	provider      *MockCheckProvider
	store         *MockDocumentStore
	tokens        *MockTokenService

	authz      *RoleAuthorizer
	aggregator *Aggregator
	runner     *CheckRunner
	intake     *IntakeService
	review     *ReviewService
	status     *StatusService
	gate       *GateService
	schedule   *ScheduleService
	proposals  *ProposalService
}

func newHarness(t *testing.T, policy domain.DecisionPolicy) *harness {
	t.Helper()
	nopLogger := zerolog.Nop()
	now := func() time.Time { return testNow }

	h := &harness{
		verifications: memory.NewVerificationRepository(),
		users:         memory.NewUserRepository(),
		profiles:      memory.NewProfileRepository(),
		visits:        memory.NewVisitRepository(),
		proposalsRepo: memory.NewProposalRepository(),
		feed:          memory.NewStatusFeed(),
		bus:           newSyncBus(),
		provider:      new(MockCheckProvider),
		store:         new(MockDocumentStore),
		tokens:        new(MockTokenService),
		authz:         NewRoleAuthorizer(),
	}
	v := validation.New(now)
	sec := fakeSecurity{}

	h.aggregator = NewAggregator(h.verifications, h.profiles, h.visits, h.feed, h.bus, policy, &nopLogger)
	h.aggregator.now = now
	h.runner = NewCheckRunner(h.verifications, h.provider, h.aggregator, h.bus, time.Second, &nopLogger)
	h.intake = NewIntakeService(h.verifications, h.profiles, h.store, sec, v, &nopLogger)
	h.intake.now = now
	h.review = NewReviewService(h.verifications, h.aggregator, h.authz, sec, &nopLogger)
	h.review.now = now
	h.status = NewStatusService(h.verifications, h.feed, h.authz, 2*time.Second, &nopLogger)
	h.gate = NewGateService(h.profiles, &nopLogger)
	h.schedule = NewScheduleService(h.users, h.profiles, h.verifications, h.visits, h.intake, h.runner,
		h.tokens, sec, h.authz, v, 24*time.Hour, &nopLogger)
	h.schedule.now = now
	h.proposals = NewProposalService(h.proposalsRepo, h.gate, h.authz, &nopLogger)
	h.proposals.now = now
	return h
}

func mariaInfo() domain.PersonalInfo {
	return domain.PersonalInfo{
		FullName:    "Maria Silva",
		CPF:         "123.456.789-09",
		DateOfBirth: "1990-05-20",
		PhoneNumber: "+55 11 91234-5678",
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func pngImage() *domain.DocumentImage {
	return &domain.DocumentImage{FileName: "doc.png", ContentType: "image/png", Data: pngHeader}
}

func userPrincipal() *domain.Principal {
	return &domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
}

func adminPrincipal() *domain.Principal {
	return &domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}
}

func passportUpload() domain.DocumentUpload {
	return domain.DocumentUpload{
		DocumentType:   domain.DocumentPassport,
		DocumentNumber: "FA123456",
		Front:          pngImage(),
		Selfie:         pngImage(),
	}
}

// storeAccepts lets the document store save any image for owner, which may
// be mock.Anything.
func (h *harness) storeAccepts(owner interface{}) {
	h.store.On("Save", mock.Anything, owner, mock.Anything, "image/png", pngHeader).Return("owner/doc.png", nil)
}

// readyForChecks creates a pending record for user with its documents.
func (h *harness) readyForChecks(t *testing.T, userID uuid.UUID) *domain.VerificationRecord {
	t.Helper()
	ctx := context.Background()
	_, err := h.intake.Start(ctx, userID, mariaInfo())
	require.NoError(t, err)
	h.storeAccepts(userID)
	rec, err := h.intake.UploadDocuments(ctx, userID, passportUpload())
	require.NoError(t, err)
	require.True(t, rec.HasDocuments())
	return rec
}

// startChecking creates a record for user and moves it to checking.
func (h *harness) startChecking(t *testing.T, userID uuid.UUID) *domain.VerificationRecord {
	t.Helper()
	ctx := context.Background()
	rec, err := h.intake.Start(ctx, userID, mariaInfo())
	require.NoError(t, err)
	rec, err = h.aggregator.Transition(ctx, rec, domain.ReviewDecision{Status: domain.StatusChecking})
	require.NoError(t, err)
	return rec
}

// inManualReview creates a record for user that sits in manual review.
func (h *harness) inManualReview(t *testing.T, userID uuid.UUID) *domain.VerificationRecord {
	t.Helper()
	ctx := context.Background()
	rec := h.startChecking(t, userID)
	require.NoError(t, h.aggregator.RecordCheck(ctx, rec.ID, domain.CheckTaxID, "regular"))
	require.NoError(t, h.aggregator.RecordCheck(ctx, rec.ID, domain.CheckCriminal, "nada_consta"))
	rec, err := h.verifications.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusManualReview, rec.Status)
	return rec
}
