package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

// VerificationRepository keeps records in a map. Each method holds the lock
// for its whole read-modify-write, matching the row-level atomicity of the
// Postgres implementation.
type VerificationRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.VerificationRecord
	seq     map[uuid.UUID]int
	next    int
	now     func() time.Time
}

var _ ports.VerificationRepository = (*VerificationRepository)(nil)

func NewVerificationRepository() *VerificationRepository {
	return &VerificationRepository{
		records: make(map[uuid.UUID]*domain.VerificationRecord),
		seq:     make(map[uuid.UUID]int),
		now:     time.Now,
	}
}

func clone(r *domain.VerificationRecord) *domain.VerificationRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (r *VerificationRepository) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.UserID == rec.UserID && existing.Status.IsOpen() {
			return domain.ErrOpenVerificationExists
		}
	}
	stored := clone(rec)
	if stored.Version == 0 {
		stored.Version = 1
	}
	r.next++
	r.records[rec.ID] = stored
	r.seq[rec.ID] = r.next
	rec.Version = stored.Version
	return nil
}

func (r *VerificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.records[id]), nil
}

// latest returns the newest record matching keep. Callers hold the lock.
func (r *VerificationRepository) latest(keep func(*domain.VerificationRecord) bool) *domain.VerificationRecord {
	var best *domain.VerificationRecord
	for id, rec := range r.records {
		if keep(rec) && (best == nil || r.seq[id] > r.seq[best.ID]) {
			best = rec
		}
	}
	return clone(best)
}

func (r *VerificationRepository) GetOpenByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest(func(rec *domain.VerificationRecord) bool {
		return rec.UserID == userID && rec.Status.IsOpen()
	}), nil
}

func (r *VerificationRepository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest(func(rec *domain.VerificationRecord) bool { return rec.UserID == userID }), nil
}

func (r *VerificationRepository) GetApprovedByCPFHash(ctx context.Context, cpfHash string) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest(func(rec *domain.VerificationRecord) bool {
		return rec.CPFHash == cpfHash && rec.Status == domain.StatusApproved
	}), nil
}

func (r *VerificationRepository) GetLatestByCPFHash(ctx context.Context, cpfHash string) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest(func(rec *domain.VerificationRecord) bool { return rec.CPFHash == cpfHash }), nil
}

// pendingAt returns the stored record if it is still pending at version.
func (r *VerificationRepository) pendingAt(id uuid.UUID, version int64) (*domain.VerificationRecord, error) {
	stored, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if stored.Version != version || stored.Status != domain.StatusPending {
		return nil, domain.ErrVersionConflict
	}
	return stored, nil
}

func (r *VerificationRepository) UpdatePersonalInfo(ctx context.Context, rec *domain.VerificationRecord) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.pendingAt(rec.ID, rec.Version)
	if err != nil {
		return nil, err
	}
	stored.FullName = rec.FullName
	stored.CPF = rec.CPF
	stored.CPFHash = rec.CPFHash
	stored.DateOfBirth = rec.DateOfBirth
	stored.PhoneNumber = rec.PhoneNumber
	r.bump(stored)
	return clone(stored), nil
}

func (r *VerificationRepository) UpdateDocuments(ctx context.Context, rec *domain.VerificationRecord) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.pendingAt(rec.ID, rec.Version)
	if err != nil {
		return nil, err
	}
	stored.DocumentType = rec.DocumentType
	stored.DocumentNumber = rec.DocumentNumber
	stored.FrontImageRef = rec.FrontImageRef
	stored.BackImageRef = rec.BackImageRef
	stored.SelfieImageRef = rec.SelfieImageRef
	r.bump(stored)
	return clone(stored), nil
}

func (r *VerificationRepository) SetCheckResult(ctx context.Context, id uuid.UUID, kind domain.CheckKind, result string) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	if stored.Status.IsTerminal() {
		return nil, domain.ErrTerminalRecord
	}
	if kind == domain.CheckTaxID {
		stored.TaxIDCheck = &result
	} else {
		stored.CriminalCheck = &result
	}
	r.bump(stored)
	return clone(stored), nil
}

func (r *VerificationRepository) Transition(ctx context.Context, id uuid.UUID, expectedVersion int64, decision domain.ReviewDecision) (*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	stored.Status = decision.Status
	if decision.RejectionReason != nil {
		stored.RejectionReason = decision.RejectionReason
	}
	if decision.AdminNotes != nil {
		stored.AdminNotes = decision.AdminNotes
	}
	if decision.ReviewedBy != nil {
		stored.ReviewedBy = decision.ReviewedBy
		stored.ReviewedAt = decision.ReviewedAt
	}
	r.bump(stored)
	return clone(stored), nil
}

func (r *VerificationRepository) List(ctx context.Context, filter domain.VerificationFilter) ([]*domain.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(filter.Search)
	var out []*domain.VerificationRecord
	for _, rec := range r.records {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.CPFHash != "" && rec.CPFHash != filter.CPFHash {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.FullName), search) {
			continue
		}
		out = append(out, clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] > r.seq[out[j].ID] })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *VerificationRepository) bump(rec *domain.VerificationRecord) {
	rec.Version++
	rec.UpdatedAt = r.now()
}
