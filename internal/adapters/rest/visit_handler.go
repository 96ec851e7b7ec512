package rest

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/services"
)

type visitHandler struct {
	schedule  *services.ScheduleService
	gate      *services.GateService
	proposals *services.ProposalService
}

type scheduleVisitRequest struct {
	PropertyID  uuid.UUID `json:"property_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       *string   `json:"notes"`
	IsGuest     bool      `json:"is_guest"`
	Email       string    `json:"email"`
	domain.PersonalInfo
}

// scheduleVisit accepts a JSON body, or a multipart form that also carries
// the guest's documents so checks can start right away.
func (h *visitHandler) scheduleVisit(w http.ResponseWriter, r *http.Request) {
	var (
		req  scheduleVisitRequest
		docs *domain.DocumentUpload
	)
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("Failed to parse multipart form")
			badRequest(w, "failed to parse form data")
			return
		}
		defer r.MultipartForm.RemoveAll()

		var err error
		if req, err = scheduleVisitForm(r); err != nil {
			badRequest(w, err.Error())
			return
		}
		up, err := formDocuments(r)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("Failed to read uploaded file")
			badRequest(w, "failed to read uploaded file")
			return
		}
		if up.DocumentType != "" || up.Front != nil || up.Selfie != nil {
			docs = &up
		}
	} else if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	res, err := h.schedule.Schedule(r.Context(), principalFrom(r.Context()), services.ScheduleRequest{
		IsGuest:     req.IsGuest,
		PropertyID:  req.PropertyID,
		ScheduledAt: req.ScheduledAt,
		Notes:       req.Notes,
		Email:       req.Email,
		Personal:    req.PersonalInfo,
		Documents:   docs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.Code == domain.CodePendingReview {
		body := map[string]any{
			"success":         true,
			"code":            res.Code,
			"verification_id": res.VerificationID,
			"visit":           newVisitView(res.Visit),
		}
		if res.AccessToken != "" {
			body["access_token"] = res.AccessToken
		}
		if res.DocumentsRequired {
			body["documents_required"] = true
		}
		writeJSON(w, http.StatusAccepted, body)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "visit": newVisitView(res.Visit)})
}

func scheduleVisitForm(r *http.Request) (scheduleVisitRequest, error) {
	req := scheduleVisitRequest{
		Email: r.FormValue("email"),
		PersonalInfo: domain.PersonalInfo{
			FullName:    r.FormValue("full_name"),
			CPF:         r.FormValue("cpf"),
			DateOfBirth: r.FormValue("date_of_birth"),
			PhoneNumber: r.FormValue("phone_number"),
		},
	}
	var err error
	if v := r.FormValue("property_id"); v != "" {
		if req.PropertyID, err = uuid.Parse(v); err != nil {
			return req, errors.New("invalid property_id")
		}
	}
	if v := r.FormValue("scheduled_at"); v != "" {
		if req.ScheduledAt, err = time.Parse(time.RFC3339, v); err != nil {
			return req, errors.New("scheduled_at must be an RFC 3339 timestamp")
		}
	}
	if v := r.FormValue("is_guest"); v != "" {
		if req.IsGuest, err = strconv.ParseBool(v); err != nil {
			return req, errors.New("invalid is_guest")
		}
	}
	if v := r.FormValue("notes"); v != "" {
		req.Notes = &v
	}
	return req, nil
}

// authorization answers where the caller should go for action.
func (h *visitHandler) authorization(w http.ResponseWriter, r *http.Request) {
	action := domain.GateAction(r.URL.Query().Get("action"))
	if !action.Valid() {
		badRequest(w, "action must be schedule_visit or submit_proposal")
		return
	}
	route, err := h.gate.Check(r.Context(), principalFrom(r.Context()), action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"action": action, "route": route})
}

type proposalRequest struct {
	PropertyID uuid.UUID       `json:"property_id"`
	Amount     decimal.Decimal `json:"amount"`
	Message    *string         `json:"message"`
}

func (h *visitHandler) submitProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	p, err := h.proposals.Submit(r.Context(), principalFrom(r.Context()), services.ProposalRequest{
		PropertyID: req.PropertyID,
		Amount:     req.Amount,
		Message:    req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"proposal": map[string]any{
			"id":          p.ID,
			"property_id": p.PropertyID,
			"amount":      p.Amount.StringFixed(2),
			"status":      p.Status,
			"created_at":  p.CreatedAt,
		},
	})
}
