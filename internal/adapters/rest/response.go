package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"CasaBid/internal/core/domain"
)

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Route  domain.GateRoute  `json:"route,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to HTTP responses. Unknown errors become a
// 500 whose detail only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var gerr *domain.GateError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
	case errors.As(err, &gerr):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "not allowed yet", Route: gerr.Route})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, domain.ErrCPFExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "this CPF is already registered, please log in", Code: domain.CodeCPFExists})
	case errors.Is(err, domain.ErrRegistrationDenied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "registration is not possible at this time", Code: domain.CodeRegistrationDenied})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrTerminalRecord),
		errors.Is(err, domain.ErrVerificationInProgress),
		errors.Is(err, domain.ErrOpenVerificationExists),
		errors.Is(err, domain.ErrNoOpenVerification),
		errors.Is(err, domain.ErrDocumentsMissing),
		errors.Is(err, domain.ErrAlreadyVerified):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		hlog.FromRequest(r).Debug().Msg("Client went away")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
