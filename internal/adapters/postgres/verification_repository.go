package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
)

const openVerificationIndex = "verifications_one_open_per_user"

const verificationCols = `
	id, user_id, full_name, cpf, cpf_hash, date_of_birth, phone_number,
	document_type, document_number, front_image_ref, back_image_ref, selfie_image_ref,
	tax_id_check, criminal_check, status, rejection_reason, admin_notes,
	reviewed_by, reviewed_at, version, created_at, updated_at
`

const openStatusList = `('pending', 'checking', 'manual_review')`

// checkColumns maps a check kind to the only column it may write.
var checkColumns = map[domain.CheckKind]string{
	domain.CheckTaxID:    "tax_id_check",
	domain.CheckCriminal: "criminal_check",
}

type verificationRepository struct {
	db  *DB
	enc sealer
	log zerolog.Logger
}

var _ ports.VerificationRepository = (*verificationRepository)(nil)

func NewVerificationRepository(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.VerificationRepository {
	return &verificationRepository{
		db:  db,
		enc: sealer{sec: secSvc},
		log: baseLogger.With().Str("component", "verification_repo").Logger(),
	}
}

func (r *verificationRepository) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	cpf, err := r.enc.seal(rec.CPF)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt cpf")
		return err
	}
	phone, err := r.enc.seal(rec.PhoneNumber)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt phone number")
		return err
	}

	query := `
		INSERT INTO verifications (id, user_id, full_name, cpf, cpf_hash, date_of_birth, phone_number, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		RETURNING version, created_at, updated_at
	`
	err = r.db.pool.QueryRow(ctx, query,
		rec.ID, rec.UserID, rec.FullName, cpf, rec.CPFHash, rec.DateOfBirth, phone, rec.Status,
	).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if isUniqueViolation(err, openVerificationIndex) {
		return domain.ErrOpenVerificationExists
	}
	if err != nil {
		r.log.Error().Err(err).Str("user_id", rec.UserID.String()).Msg("Failed to insert verification")
	}
	return err
}

func (r *verificationRepository) scan(row pgx.Row) (*domain.VerificationRecord, error) {
	var rec domain.VerificationRecord
	var cpf, phone string
	var docType, docNumber *string

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.FullName, &cpf, &rec.CPFHash, &rec.DateOfBirth, &phone,
		&docType, &docNumber, &rec.FrontImageRef, &rec.BackImageRef, &rec.SelfieImageRef,
		&rec.TaxIDCheck, &rec.CriminalCheck, &rec.Status, &rec.RejectionReason, &rec.AdminNotes,
		&rec.ReviewedBy, &rec.ReviewedAt, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Err(err).Msg("Failed to scan verification row")
		}
		return nil, err
	}

	if rec.CPF, err = r.enc.open(cpf); err != nil {
		r.log.Error().Err(err).Str("verification_id", rec.ID.String()).Msg("Failed to decrypt cpf (tampered?)")
		return nil, err
	}
	if rec.PhoneNumber, err = r.enc.open(phone); err != nil {
		r.log.Error().Err(err).Str("verification_id", rec.ID.String()).Msg("Failed to decrypt phone number (tampered?)")
		return nil, err
	}
	if rec.DocumentNumber, err = r.enc.openPtr(docNumber); err != nil {
		r.log.Error().Err(err).Str("verification_id", rec.ID.String()).Msg("Failed to decrypt document number (tampered?)")
		return nil, err
	}
	if docType != nil {
		dt := domain.DocumentType(*docType)
		rec.DocumentType = &dt
	}
	return &rec, nil
}

// one runs a single-row query. A missing row is nil, nil.
func (r *verificationRepository) one(ctx context.Context, query string, args ...any) (*domain.VerificationRecord, error) {
	rec, err := r.scan(r.db.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *verificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.VerificationRecord, error) {
	return r.one(ctx, `SELECT `+verificationCols+` FROM verifications WHERE id = $1`, id)
}

func (r *verificationRepository) GetOpenByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationRecord, error) {
	return r.one(ctx, `SELECT `+verificationCols+` FROM verifications
		WHERE user_id = $1 AND status IN `+openStatusList, userID)
}

func (r *verificationRepository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*domain.VerificationRecord, error) {
	return r.one(ctx, `SELECT `+verificationCols+` FROM verifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID)
}

func (r *verificationRepository) GetApprovedByCPFHash(ctx context.Context, cpfHash string) (*domain.VerificationRecord, error) {
	return r.one(ctx, `SELECT `+verificationCols+` FROM verifications
		WHERE cpf_hash = $1 AND status = 'approved' ORDER BY created_at DESC LIMIT 1`, cpfHash)
}

func (r *verificationRepository) GetLatestByCPFHash(ctx context.Context, cpfHash string) (*domain.VerificationRecord, error) {
	return r.one(ctx, `SELECT `+verificationCols+` FROM verifications
		WHERE cpf_hash = $1 ORDER BY created_at DESC LIMIT 1`, cpfHash)
}

func (r *verificationRepository) UpdatePersonalInfo(ctx context.Context, rec *domain.VerificationRecord) (*domain.VerificationRecord, error) {
	cpf, err := r.enc.seal(rec.CPF)
	if err != nil {
		return nil, err
	}
	phone, err := r.enc.seal(rec.PhoneNumber)
	if err != nil {
		return nil, err
	}
	query := `
		UPDATE verifications
		SET full_name = $3, cpf = $4, cpf_hash = $5, date_of_birth = $6, phone_number = $7,
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND status = 'pending'
		RETURNING ` + verificationCols
	return r.casUpdate(ctx, rec.ID, query, rec.ID, rec.Version, rec.FullName, cpf, rec.CPFHash, rec.DateOfBirth, phone)
}

func (r *verificationRepository) UpdateDocuments(ctx context.Context, rec *domain.VerificationRecord) (*domain.VerificationRecord, error) {
	docNumber, err := r.enc.sealPtr(rec.DocumentNumber)
	if err != nil {
		return nil, err
	}
	var docType *string
	if rec.DocumentType != nil {
		s := string(*rec.DocumentType)
		docType = &s
	}
	query := `
		UPDATE verifications
		SET document_type = $3, document_number = $4, front_image_ref = $5, back_image_ref = $6,
		    selfie_image_ref = $7, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND status = 'pending'
		RETURNING ` + verificationCols
	return r.casUpdate(ctx, rec.ID, query, rec.ID, rec.Version, docType, docNumber,
		rec.FrontImageRef, rec.BackImageRef, rec.SelfieImageRef)
}

// casUpdate runs a guarded UPDATE. No row back means the record is missing
// or someone else wrote it first.
func (r *verificationRepository) casUpdate(ctx context.Context, id uuid.UUID, query string, args ...any) (*domain.VerificationRecord, error) {
	updated, err := r.one(ctx, query, args...)
	if err != nil || updated != nil {
		return updated, err
	}
	var exists bool
	if err := r.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM verifications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrVersionConflict
}

func (r *verificationRepository) SetCheckResult(ctx context.Context, id uuid.UUID, kind domain.CheckKind, result string) (*domain.VerificationRecord, error) {
	column, ok := checkColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown check kind %q", kind)
	}
	query := `
		UPDATE verifications
		SET ` + column + ` = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND status IN ` + openStatusList + `
		RETURNING ` + verificationCols
	updated, err := r.one(ctx, query, id, result)
	if err != nil || updated != nil {
		return updated, err
	}

	var status string
	err = r.db.pool.QueryRow(ctx, `SELECT status FROM verifications WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, domain.ErrTerminalRecord
}

func (r *verificationRepository) Transition(ctx context.Context, id uuid.UUID, expectedVersion int64, decision domain.ReviewDecision) (*domain.VerificationRecord, error) {
	query := `
		UPDATE verifications
		SET status = $3,
		    rejection_reason = COALESCE($4, rejection_reason),
		    admin_notes = COALESCE($5, admin_notes),
		    reviewed_by = COALESCE($6, reviewed_by),
		    reviewed_at = COALESCE($7, reviewed_at),
		    version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + verificationCols
	return r.casUpdate(ctx, id, query, id, expectedVersion, decision.Status,
		decision.RejectionReason, decision.AdminNotes, decision.ReviewedBy, decision.ReviewedAt)
}

func (r *verificationRepository) List(ctx context.Context, filter domain.VerificationFilter) ([]*domain.VerificationRecord, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.CPFHash != "" {
		add("cpf_hash = $%d", filter.CPFHash)
	}
	if filter.Search != "" {
		add("full_name ILIKE '%%' || $%d || '%%'", filter.Search)
	}

	query := `SELECT ` + verificationCols + ` FROM verifications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to list verifications")
		return nil, err
	}
	defer rows.Close()

	var out []*domain.VerificationRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
