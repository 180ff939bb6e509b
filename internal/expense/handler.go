package expense

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/billsplit/pkg/middleware"
	"github.com/fkhayef/billsplit/pkg/request"
	"github.com/fkhayef/billsplit/pkg/response"
)

// Handler handles HTTP requests for expense operations
type Handler struct {
	service *Service
}

// NewHandler creates a new expense handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for expense endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/shares", h.GetShares)
	r.Delete("/{id}", h.Delete)
	r.Delete("/{id}/permanent", h.PermanentlyDelete)

	// Group-based listing
	r.Get("/group/{groupId}", h.ListByGroup)

	return r
}

// Create handles POST /expenses
// @Summary      Create a new expense
// @Description  Create an expense split EQUAL across all members and pending members, or CUSTOM by explicit shares
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        request body CreateExpenseRequest true "Expense creation request"
// @Success      201 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /expenses [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}

	var req CreateExpenseRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	details, err := h.service.CreateExpense(r.Context(), actorID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, details.ToResponse())
}

// GetByID handles GET /expenses/{id}
// @Summary      Get expense by ID
// @Description  Get an expense with all its shares
// @Tags         expenses
// @Produce      json
// @Param        id path int true "Expense ID"
// @Success      200 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	details, err := h.service.GetExpense(r.Context(), actorID, id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, details.ToResponse())
}

// GetShares handles GET /expenses/{id}/shares
// @Summary      Get expense shares
// @Tags         expenses
// @Produce      json
// @Param        id path int true "Expense ID"
// @Success      200 {object} response.APIResponse{data=SharesResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /expenses/{id}/shares [get]
func (h *Handler) GetShares(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	shares, pending, err := h.service.GetExpenseShares(r.Context(), actorID, id)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, sharesResponse(shares, pending))
}

// ListByGroup handles GET /expenses/group/{groupId}
// @Summary      List expenses by group
// @Description  Get paginated expenses for a group, soft-deleted ones flagged
// @Tags         expenses
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]ExpenseResponse}
// @Router       /expenses/group/{groupId} [get]
func (h *Handler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "groupId")
	if err != nil {
		response.FromError(w, err)
		return
	}
	page, perPage := request.Pagination(r)

	expenses, total, err := h.service.ListGroupExpenses(r.Context(), actorID, groupID, perPage, request.Offset(page, perPage))
	if err != nil {
		response.FromError(w, err)
		return
	}

	out := make([]*ExpenseResponse, len(expenses))
	for i, e := range expenses {
		out[i] = e.ToResponse()
	}
	response.JSONWithMeta(w, http.StatusOK, out, response.NewMeta(page, perPage, total))
}

// Delete handles DELETE /expenses/{id}
// @Summary      Delete an expense
// @Description  Soft-delete an expense; only the payer or a group admin
// @Tags         expenses
// @Param        id path int true "Expense ID"
// @Success      204
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /expenses/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.expenseAction(w, r, h.service.DeleteExpense)
}

// PermanentlyDelete handles DELETE /expenses/{id}/permanent
// @Summary      Permanently delete an expense
// @Description  Remove a soft-deleted expense for good; only the group creator
// @Tags         expenses
// @Param        id path int true "Expense ID"
// @Success      204
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /expenses/{id}/permanent [delete]
func (h *Handler) PermanentlyDelete(w http.ResponseWriter, r *http.Request) {
	h.expenseAction(w, r, h.service.PermanentlyDeleteExpense)
}

func (h *Handler) expenseAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, id int64) error) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	if err := fn(r.Context(), actorID, id); err != nil {
		response.FromError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
