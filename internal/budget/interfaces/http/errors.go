package budgethttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"grants-cloud/internal/auth"
	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
)

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, budget.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, budget.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, budget.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, budget.ErrGrantNotFound),
		errors.Is(err, budget.ErrLineNotFound),
		errors.Is(err, budget.ErrSubLineNotFound),
		errors.Is(err, budget.ErrEngagementNotFound),
		errors.Is(err, budget.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrExportUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}
	var verr *budget.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("subject", auth.SubjectFromContext(r.Context())),
			zap.Error(err),
		)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return budget.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}
