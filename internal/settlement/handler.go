package settlement

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/pkg/middleware"
	"github.com/fkhayef/billsplit/pkg/request"
	"github.com/fkhayef/billsplit/pkg/response"
)

// Handler handles HTTP requests for settlement operations
type Handler struct {
	service *Service
}

// NewHandler creates a new settlement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for settlement endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/plans", h.PlanGroups)

	r.Route("/group/{groupId}", func(r chi.Router) {
		r.Get("/", h.History)
		r.Post("/", h.Record)
		r.Get("/calculate", h.Calculate)
		r.Post("/process", h.Process)
		r.Delete("/{id}", h.Delete)
	})

	return r
}

// Calculate handles GET /settlements/group/{groupId}/calculate
// @Summary      Calculate settlements
// @Description  Compute every member's balance and the minimal payments that settle the group
// @Tags         settlements
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=PlanResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      500 {object} response.APIResponse
// @Router       /settlements/group/{groupId}/calculate [get]
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "groupId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	plan, err := h.service.CalculateSettlements(r.Context(), actorID, groupID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, planResponse(plan))
}

// Process handles POST /settlements/group/{groupId}/process
// @Summary      Process settlements
// @Description  Compute the settlement plan and notify every debtor and creditor
// @Tags         settlements
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=PlanResponse}
// @Router       /settlements/group/{groupId}/process [post]
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "groupId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	plan, err := h.service.ProcessSettlements(r.Context(), actorID, groupID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, planResponse(plan))
}

// PlanGroups handles GET /settlements/plans?group_ids=1,2,3
// @Summary      Plan several groups
// @Description  Compute settlement plans for several groups at once
// @Tags         settlements
// @Produce      json
// @Param        group_ids query string true "Comma-separated group IDs"
// @Success      200 {object} response.APIResponse{data=[]PlanResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /settlements/plans [get]
func (h *Handler) PlanGroups(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupIDs, err := parseIDList(r.URL.Query().Get("group_ids"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	plans, err := h.service.PlanGroups(r.Context(), actorID, groupIDs)
	if err != nil {
		response.FromError(w, err)
		return
	}

	out := make([]*PlanResponse, len(plans))
	for i, p := range plans {
		out[i] = planResponse(p)
	}
	response.JSON(w, http.StatusOK, out)
}

// Record handles POST /settlements/group/{groupId}
// @Summary      Record a settlement
// @Description  Record that the caller paid another member
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        request body RecordSettlementRequest true "Settlement"
// @Success      201 {object} response.APIResponse{data=SettlementResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /settlements/group/{groupId} [post]
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "groupId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req RecordSettlementRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	settlement, err := h.service.RecordSettlement(r.Context(), actorID, groupID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, settlement.ToResponse())
}

// History handles GET /settlements/group/{groupId}
// @Summary      Settlement history
// @Description  List a group's recorded settlements, newest first
// @Tags         settlements
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]SettlementResponse}
// @Router       /settlements/group/{groupId} [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
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

	settlements, total, err := h.service.GetSettlementHistory(r.Context(), actorID, groupID, perPage, request.Offset(page, perPage))
	if err != nil {
		response.FromError(w, err)
		return
	}

	out := make([]*SettlementResponse, len(settlements))
	for i, s := range settlements {
		out[i] = s.ToResponse()
	}
	response.JSONWithMeta(w, http.StatusOK, out, response.NewMeta(page, perPage, total))
}

// Delete handles DELETE /settlements/group/{groupId}/{id}
// @Summary      Delete a settlement
// @Description  Remove a recorded settlement; group admins only
// @Tags         settlements
// @Param        groupId path int true "Group ID"
// @Param        id path int true "Settlement ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /settlements/group/{groupId}/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "groupId")
	if err != nil {
		response.FromError(w, err)
		return
	}
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	if err := h.service.DeleteSettlement(r.Context(), actorID, groupID, id); err != nil {
		response.FromError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: group_ids is required", apperrors.ErrValidation)
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid group id %q", apperrors.ErrValidation, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
