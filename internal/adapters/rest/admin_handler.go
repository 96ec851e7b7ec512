package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
	"CasaBid/internal/core/services"
)

type adminHandler struct {
	review *services.ReviewService
}

type decisionRequest struct {
	Reason string  `json:"reason"`
	Notes  *string `json:"notes"`
}

func decodeDecision(r *http.Request) (decisionRequest, error) {
	var req decisionRequest
	if r.ContentLength == 0 {
		return req, nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req)
	if err == io.EOF {
		err = nil
	}
	return req, err
}

func (h *adminHandler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid verification id")
		return
	}
	req, err := decodeDecision(r)
	if err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	rec, err := h.review.Approve(r.Context(), principalFrom(r.Context()), id, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verification": newReviewView(rec)})
}

func (h *adminHandler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid verification id")
		return
	}
	req, err := decodeDecision(r)
	if err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	rec, err := h.review.Reject(r.Context(), principalFrom(r.Context()), id, req.Reason, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verification": newReviewView(rec)})
}

func (h *adminHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.VerificationFilter{Search: q.Get("search")}
	if s := q.Get("status"); s != "" {
		status := domain.VerificationStatus(s)
		filter.Status = &status
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			badRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}

	recs, err := h.review.List(r.Context(), principalFrom(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]reviewView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newReviewView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"verifications": out})
}

func (h *adminHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid verification id")
		return
	}
	rec, err := h.review.Get(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReviewView(rec))
}
