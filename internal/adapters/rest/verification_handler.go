package rest

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/ports"
	"CasaBid/internal/core/services"
	"CasaBid/internal/core/validation"
)

// maxUploadBytes bounds the whole multipart body: three images plus fields.
const maxUploadBytes = 3*validation.MaxImageBytes + 1<<20

type verificationHandler struct {
	intake *services.IntakeService
	checks *services.CheckRunner
	status *services.StatusService
	authz  ports.Authorizer
}

func (h *verificationHandler) start(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if err := h.authz.Authorize(principal, domain.ActionSubmitVerification); err != nil {
		writeError(w, r, err)
		return
	}

	var info domain.PersonalInfo
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&info); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	rec, err := h.intake.Start(r.Context(), principal.UserID, info)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verification": newVerificationView(rec)})
}

func (h *verificationHandler) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if err := h.authz.Authorize(principal, domain.ActionSubmitVerification); err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to parse multipart form")
		badRequest(w, "failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	up, err := formDocuments(r)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to read uploaded file")
		badRequest(w, "failed to read uploaded file")
		return
	}

	rec, err := h.intake.UploadDocuments(r.Context(), principal.UserID, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verification": newVerificationView(rec)})
}

// formDocuments reads the document fields of a parsed multipart form.
func formDocuments(r *http.Request) (domain.DocumentUpload, error) {
	up := domain.DocumentUpload{
		DocumentType:   domain.DocumentType(strings.TrimSpace(r.FormValue("document_type"))),
		DocumentNumber: r.FormValue("document_number"),
	}
	var err error
	if up.Front, err = formImage(r, "document_front"); err != nil {
		return up, err
	}
	if up.Back, err = formImage(r, "document_back"); err != nil {
		return up, err
	}
	up.Selfie, err = formImage(r, "selfie")
	return up, err
}

// formImage returns nil when the field was not sent. Oversized images are
// read one byte past the limit so validation can report them.
func formImage(r *http.Request, field string) (*domain.DocumentImage, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, validation.MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	return &domain.DocumentImage{
		FileName:    header.Filename,
		ContentType: partContentType(header),
		Data:        data,
	}, nil
}

func partContentType(h *multipart.FileHeader) string {
	ct := h.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

func (h *verificationHandler) checkCPF(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, domain.CheckTaxID)
}

func (h *verificationHandler) checkCriminal(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, domain.CheckCriminal)
}

// dispatch answers 202 as soon as the check is queued. The result arrives
// through the status endpoints.
func (h *verificationHandler) dispatch(w http.ResponseWriter, r *http.Request, kind domain.CheckKind) {
	principal := principalFrom(r.Context())
	if err := h.authz.Authorize(principal, domain.ActionSubmitVerification); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.checks.Dispatch(r.Context(), principal.UserID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "verification": newVerificationView(rec)})
}

// myStatus returns the caller's latest record, long-polling when asked.
func (h *verificationHandler) myStatus(w http.ResponseWriter, r *http.Request) {
	wait, version, ok := pollParams(w, r)
	if !ok {
		return
	}
	rec, err := h.status.WaitLatest(r.Context(), principalFrom(r.Context()), version, wait)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVerificationView(rec))
}

func (h *verificationHandler) statusByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		badRequest(w, "id must be a verification id")
		return
	}
	wait, version, ok := pollParams(w, r)
	if !ok {
		return
	}
	rec, err := h.status.Wait(r.Context(), principalFrom(r.Context()), id, version, wait)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVerificationView(rec))
}

// pollParams reads wait (seconds, or a Go duration) and version.
func pollParams(w http.ResponseWriter, r *http.Request) (time.Duration, int64, bool) {
	q := r.URL.Query()
	var wait time.Duration
	if raw := q.Get("wait"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			wait = time.Duration(secs) * time.Second
		} else if d, err := time.ParseDuration(raw); err == nil {
			wait = d
		} else {
			badRequest(w, "wait must be seconds or a duration")
			return 0, 0, false
		}
	}
	var version int64
	if raw := q.Get("version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(w, "version must be an integer")
			return 0, 0, false
		}
		version = v
	}
	return wait, version, true
}
