package budgethttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"grants-cloud/internal/auth"
	"grants-cloud/internal/budget/application"
	budget "grants-cloud/internal/budget/domain"
)

type handlers struct {
	svc    *application.Services
	logger *zap.Logger
}

type meResponse struct {
	Subject     string                        `json:"subject"`
	FullName    string                        `json:"fullName"`
	Role        auth.Role                     `json:"role"`
	Profession  budget.Profession             `json:"profession"`
	Permissions map[auth.Module][]auth.Action `json:"permissions"`
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Subject:     id.Subject,
		FullName:    id.FullName,
		Role:        id.Role,
		Profession:  id.Profession,
		Permissions: auth.Permissions(id.Role),
	})
}

func (h *handlers) listGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.svc.Grants.ListGrants(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *handlers) createGrant(w http.ResponseWriter, r *http.Request) {
	var in budget.GrantInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	grant, err := h.svc.Grants.CreateGrant(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (h *handlers) getGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.svc.Grants.GetGrant(r.Context(), chi.URLParam(r, "grantID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

type amountRequest struct {
	TotalAmount *float64 `json:"totalAmount"`
}

func (h *handlers) updateGrantAmount(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.TotalAmount == nil {
		h.fail(w, r, budget.NewValidationError("total amount is required", "totalAmount"))
		return
	}
	grant, err := h.svc.Grants.UpdateGrantAmount(r.Context(), chi.URLParam(r, "grantID"), *req.TotalAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handlers) setGrantStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	grant, err := h.svc.Grants.SetGrantStatus(r.Context(), chi.URLParam(r, "grantID"), budget.GrantStatus(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (h *handlers) addLine(w http.ResponseWriter, r *http.Request) {
	var in budget.LineInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	line, err := h.svc.Planning.AddBudgetLine(r.Context(), chi.URLParam(r, "grantID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *handlers) addSubLine(w http.ResponseWriter, r *http.Request) {
	var in budget.LineInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.svc.Planning.AddSubBudgetLine(r.Context(), chi.URLParam(r, "grantID"), chi.URLParam(r, "lineID"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type lineAmountsRequest struct {
	SubLineID      string   `json:"subLineId,omitempty"`
	PlannedAmount  *float64 `json:"plannedAmount,omitempty"`
	NotifiedAmount *float64 `json:"notifiedAmount,omitempty"`
}

func (h *handlers) updateLineAmounts(w http.ResponseWriter, r *http.Request) {
	var req lineAmountsRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	grant, err := h.svc.Planning.UpdateLineAmounts(r.Context(), chi.URLParam(r, "grantID"), chi.URLParam(r, "lineID"),
		req.SubLineID, req.PlannedAmount, req.NotifiedAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (h *handlers) grantReport(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "grantID")
	if value := r.URL.Query().Get("format"); value != "" {
		format, ok := application.ParseFormat(value)
		if !ok {
			h.fail(w, r, budget.NewValidationError("unsupported export format", "format"))
			return
		}
		h.exportGrantReport(format)(w, r)
		return
	}
	report, err := h.svc.Reports.GrantReport(r.Context(), grantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

var contentTypes = map[application.Format]string{
	application.FormatPDF:  "application/pdf",
	application.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (h *handlers) exportGrantReport(format application.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grantID := chi.URLParam(r, "grantID")
		data, err := h.svc.Reports.ExportGrantReport(r.Context(), grantID, format)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeFile(w, contentTypes[format], "grant-"+grantID+"."+string(format), data)
	}
}

func (h *handlers) listEngagements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := budget.EngagementFilter{GrantID: q.Get("grantId")}
	if value := q.Get("status"); value != "" {
		status, ok := budget.ParseEngagementStatus(value)
		if !ok {
			h.fail(w, r, budget.NewValidationError("unknown engagement status", "status"))
			return
		}
		filter.Status = status
	}
	list, err := h.svc.Engagements.ListEngagements(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) createEngagement(w http.ResponseWriter, r *http.Request) {
	var in budget.EngagementInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	eng, err := h.svc.Engagements.CreateEngagement(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eng)
}

func (h *handlers) getEngagement(w http.ResponseWriter, r *http.Request) {
	eng, err := h.svc.Engagements.GetEngagement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

func (h *handlers) editEngagement(w http.ResponseWriter, r *http.Request) {
	var patch budget.EngagementPatch
	if err := decode(r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	eng, err := h.svc.Engagements.EditEngagement(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

type signRequest struct {
	Observation string `json:"observation,omitempty"`
}

func (h *handlers) signApproval(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	eng, err := h.svc.Engagements.SignApproval(r.Context(), chi.URLParam(r, "id"), budget.Slot(chi.URLParam(r, "slot")), req.Observation)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

func (h *handlers) updateEngagementStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	eng, err := h.svc.Engagements.UpdateStatus(r.Context(), chi.URLParam(r, "id"), budget.EngagementStatus(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

func (h *handlers) exportVoucher(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.svc.Reports.ExportEngagementVoucher(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeFile(w, contentTypes[application.FormatPDF], "engagement-"+id+".pdf", data)
}

func (h *handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.Payments.ListPayments(r.Context(), budget.PaymentFilter{
		GrantID:      q.Get("grantId"),
		EngagementID: q.Get("engagementId"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	var in budget.PaymentInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	payment, err := h.svc.Payments.RecordPayment(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (h *handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.svc.Payments.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *handlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	payment, err := h.svc.Payments.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "id"), budget.PaymentStatus(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
