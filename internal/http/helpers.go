package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"abonnements/internal/core"
	applog "abonnements/internal/log"
	"abonnements/internal/middleware/trace"
)

var errBadRequest = errors.New("bad request")

var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrNegativePrice,
	core.ErrEmptyPrice,
	core.ErrInvalidPrice,
	core.ErrInvalidPeriod,
	core.ErrInvalidDate,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRecordNotFound):
		return http.StatusNotFound
	case isValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the French text shown for an error. Store details stay in
// the logs.
func userMessage(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return "Requête invalide."
	case errors.Is(err, core.ErrRecordNotFound):
		return "Introuvable."
	case errors.Is(err, core.ErrEmptyName):
		return "Le nom est obligatoire."
	case errors.Is(err, core.ErrNameTooLong):
		return "Le nom est trop long."
	case errors.Is(err, core.ErrNegativePrice):
		return "Le prix doit être positif ou nul."
	case errors.Is(err, core.ErrEmptyPrice), errors.Is(err, core.ErrInvalidPrice):
		return "Prix invalide."
	case errors.Is(err, core.ErrInvalidPeriod):
		return "Périodicité invalide (Mensuel ou Annuel)."
	case errors.Is(err, core.ErrInvalidDate):
		return "Date invalide (AAAA-MM-JJ)."
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return "Le registre est indisponible, réessayez plus tard."
	default:
		return "Erreur interne."
	}
}

// logFailure logs server-side failures at error and client mistakes at warn.
func logFailure(r *http.Request, op string, err error) {
	logger := applog.FromContext(r.Context()).With(
		applog.FieldRequestID, trace.GetRequestID(r.Context()),
		applog.FieldOperation, op,
		applog.FieldError, err,
	)
	if statusFor(err) >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Ledger operation failed")
		return
	}
	logger.WarnContext(r.Context(), "Ledger request rejected")
}

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError includes the error text only for client mistakes.
func writeAPIError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := apiError{Error: userMessage(err)}
	if status < http.StatusInternalServerError {
		body.Detail = err.Error()
	}
	writeJSON(w, status, body)
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func periodLabel(p core.Period) string {
	switch p {
	case core.Monthly:
		return "Mensuel"
	case core.Yearly:
		return "Annuel"
	}
	return string(p)
}
