package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/creancio/be-rc-validation/internal/client"
	"github.com/creancio/be-rc-validation/internal/faults"
	"github.com/creancio/be-rc-validation/internal/service"
	"github.com/creancio/be-rc-validation/internal/workflow"
)

// HTTPHandler exposes the validation workflow to the case-management UI.
type HTTPHandler struct {
	service  *service.ValidationService
	recovery *service.RecoveryPolicy
	log      *zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc *service.ValidationService, recovery *service.RecoveryPolicy, log *zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		service:  svc,
		recovery: recovery,
		log:      log,
	}
}

// ListWorkflowItems handles GET /api/v1/workflow/items.
func (h *HTTPHandler) ListWorkflowItems(w http.ResponseWriter, r *http.Request) {
	items, report, err := h.service.LoadWorkflowItems(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"report": report,
	})
}

// Approve handles POST /api/v1/workflow/approve.
func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		InvestigationID int64  `json:"investigation_id"`
		Comment         string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Approve(r.Context(), actor, req.InvestigationID, req.Comment); err != nil {
		h.writeOutcome(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// Reject handles POST /api/v1/workflow/reject.
func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		InvestigationID int64  `json:"investigation_id"`
		Comment         string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Reject(r.Context(), actor, req.InvestigationID, req.Comment); err != nil {
		h.writeOutcome(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// DeleteInvestigation handles DELETE /api/v1/workflow/investigations.
func (h *HTTPHandler) DeleteInvestigation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "A valid investigation id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.writeOutcome(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestNewValidation handles POST /api/v1/workflow/revalidate.
func (h *HTTPHandler) RequestNewValidation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		InvestigationID int64 `json:"investigation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.service.RequestNewValidation(r.Context(), actor, req.InvestigationID)
	if err != nil {
		h.writeOutcome(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// CreateInvestigation handles POST /api/v1/investigations.
func (h *HTTPHandler) CreateInvestigation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		CaseID            int64   `json:"case_id"`
		FinancialReport   *string `json:"financial_report"`
		LegalReport       *string `json:"legal_report"`
		PatrimonialReport *string `json:"patrimonial_report"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inv, err := h.service.CreateInvestigation(r.Context(), actor, &service.CreateInvestigationRequest{
		CaseID:            req.CaseID,
		FinancialReport:   req.FinancialReport,
		LegalReport:       req.LegalReport,
		PatrimonialReport: req.PatrimonialReport,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

// UpdateInvestigation handles PUT /api/v1/investigations.
func (h *HTTPHandler) UpdateInvestigation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "A valid investigation id is required", http.StatusBadRequest)
		return
	}

	var patch client.InvestigationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	inv, err := h.service.UpdateInvestigation(r.Context(), actor, id, &patch)
	if err != nil {
		h.writeOutcome(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

// DecisionHistory handles GET /api/v1/workflow/history.
func (h *HTTPHandler) DecisionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("investigation_id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "A valid investigation id is required", http.StatusBadRequest)
		return
	}

	entries, err := h.service.DecisionHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ── helpers ───────────────────────────────────────────────────────────────────

// actor resolves the acting user from the gateway-injected headers. The
// session layer upstream is responsible for their integrity.
func (h *HTTPHandler) actor(w http.ResponseWriter, r *http.Request) (workflow.Actor, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-Actor-Id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Missing or invalid X-Actor-Id header", http.StatusUnauthorized)
		return workflow.Actor{}, false
	}

	role := workflow.Role(r.Header.Get("X-Actor-Role"))
	if !role.Valid() {
		http.Error(w, "Missing or invalid X-Actor-Role header", http.StatusUnauthorized)
		return workflow.Actor{}, false
	}

	return workflow.Actor{ID: id, Role: role}, true
}

// writeOutcome reports a failed mutation through the recovery policy so the
// user always gets a specific message, and missing-entity failures trigger
// the self-healing reload.
func (h *HTTPHandler) writeOutcome(w http.ResponseWriter, err error) {
	outcome := h.recovery.HandleFailure(err)
	writeJSON(w, statusFor(err), map[string]any{
		"message":          outcome.Message,
		"already_gone":     outcome.AlreadyGone,
		"reload_scheduled": outcome.ReloadScheduled,
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{
		"message": faults.MessageOf(err, "The operation failed; please try again."),
	})
}

func statusFor(err error) int {
	switch faults.ClassOf(err) {
	case faults.ClassNotFound:
		return http.StatusNotFound
	case faults.ClassInvalid:
		return http.StatusBadRequest
	case faults.ClassUnauthorized:
		return http.StatusForbidden
	case faults.ClassConflict:
		return http.StatusConflict
	case faults.ClassTransient:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
