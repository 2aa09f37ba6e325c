package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Runs
	CreateRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	ApproveRun(w http.ResponseWriter, r *http.Request)
	VoidRun(w http.ResponseWriter, r *http.Request)
	MarkRunPaid(w http.ResponseWriter, r *http.Request)

	// Items
	GetItem(w http.ResponseWriter, r *http.Request)
	UpdateItem(w http.ResponseWriter, r *http.Request)

	// Summary
	GetSummary(w http.ResponseWriter, r *http.Request)
	GetRateTable(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// actorAndID resolves the caller and a UUID path parameter, writing the error
// response itself when either is missing.
func actorAndID(w http.ResponseWriter, r *http.Request, label string) (payroll.Actor, string, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Missing token")
		return payroll.Actor{}, "", false
	}

	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid "+label+" ID", nil)
		return payroll.Actor{}, "", false
	}
	return actor, id, true
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) CreateRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Missing token")
		return
	}

	var req payroll.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.CreateRun(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	message := "Payroll run created successfully"
	if len(result.Warnings) > 0 {
		message = "Payroll run created with warnings"
	}
	response.Created(w, message, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Missing token")
		return
	}

	filter := payroll.RunFilter{
		Page:  1,
		Limit: 20,
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if yearStr := query.Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			response.BadRequest(w, "Invalid year", map[string]string{"year": "must be a number"})
			return
		}
		filter.Year = &year
	}
	if status := query.Get("status"); status != "" {
		filter.Status = &status
	}

	result, err := h.payrollService.ListRuns(r.Context(), actor, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Data, response.NewMeta(result.Page, result.Limit, result.TotalCount))
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "payroll run")
	if !ok {
		return
	}

	result, err := h.payrollService.GetRun(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== LIFECYCLE ==========

func (h *payrollHandlerImpl) ApproveRun(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "payroll run")
	if !ok {
		return
	}

	result, err := h.payrollService.ApproveRun(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run approved", result)
}

func (h *payrollHandlerImpl) VoidRun(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "payroll run")
	if !ok {
		return
	}

	result, err := h.payrollService.VoidRun(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run voided", result)
}

func (h *payrollHandlerImpl) MarkRunPaid(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "payroll run")
	if !ok {
		return
	}

	result, err := h.payrollService.MarkRunPaid(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run marked as paid", result)
}

// ========== ITEMS ==========

func (h *payrollHandlerImpl) GetItem(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "payroll item")
	if !ok {
		return
	}

	result, err := h.payrollService.GetItem(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r, "payroll item")
	if !ok {
		return
	}

	var req payroll.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.ID = id

	result, err := h.payrollService.UpdateItem(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll item updated", result)
}

// ========== SUMMARY ==========

func (h *payrollHandlerImpl) GetSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Missing token")
		return
	}

	yearStr := r.URL.Query().Get("year")
	if yearStr == "" {
		response.BadRequest(w, "year query parameter is required", map[string]string{"year": "is required"})
		return
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		response.BadRequest(w, "Invalid year", map[string]string{"year": "must be a number"})
		return
	}

	result, err := h.payrollService.Summarize(r.Context(), actor, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetRateTable(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Missing token")
		return
	}

	result, err := h.payrollService.RateTable(r.Context(), actor)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
