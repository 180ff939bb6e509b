package group

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/billsplit/pkg/middleware"
	"github.com/fkhayef/billsplit/pkg/request"
	"github.com/fkhayef/billsplit/pkg/response"
)

// Handler handles HTTP requests for group operations
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for group endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.ListMine)

	r.Get("/invitations", h.ListInvitations)
	r.Post("/invitations/{invitationId}/accept", h.AcceptInvitation)
	r.Post("/invitations/{invitationId}/reject", h.RejectInvitation)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetByID)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/leave", h.Leave)

		r.Get("/members", h.GetMembers)
		r.Post("/members", h.InviteMember)
		r.Put("/members/{userId}", h.UpdateMember)
		r.Delete("/members/{userId}", h.RemoveMember)
		r.Delete("/pending/{pendingId}", h.RemovePendingMember)
	})

	return r
}

// Create handles POST /groups
// @Summary      Create a new group
// @Description  Create a group; the creator becomes admin and member_emails are invited
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	g, err := h.service.Create(r.Context(), actorID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, g.ToResponse())
}

// ListMine handles GET /groups
// @Summary      List my groups
// @Tags         groups
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	page, perPage := request.Pagination(r)

	groups, total, err := h.service.ListByUserID(r.Context(), actorID, perPage, request.Offset(page, perPage))
	if err != nil {
		response.FromError(w, err)
		return
	}

	out := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		out[i] = g.ToResponse()
	}
	response.JSONWithMeta(w, http.StatusOK, out, response.NewMeta(page, perPage, total))
}

// GetByID handles GET /groups/{id}
// @Summary      Get group
// @Description  Get a group with members and pending members
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	details, err := h.service.GetDetails(r.Context(), actorID, groupID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, details.ToResponse())
}

// Update handles PUT /groups/{id}
// @Summary      Update group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body UpdateGroupRequest true "Fields to update"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req UpdateGroupRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	g, err := h.service.Update(r.Context(), actorID, groupID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, g.ToResponse())
}

// Delete handles DELETE /groups/{id}
// @Summary      Delete group
// @Tags         groups
// @Param        id path int true "Group ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.groupAction(w, r, h.service.Delete)
}

// Leave handles POST /groups/{id}/leave
// @Summary      Leave group
// @Tags         groups
// @Param        id path int true "Group ID"
// @Success      204
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{id}/leave [post]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	h.groupAction(w, r, h.service.Leave)
}

func (h *Handler) groupAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, groupID int64) error) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}
	if err := fn(r.Context(), actorID, groupID); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMembers handles GET /groups/{id}/members
// @Summary      List group members
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]MemberResponse}
// @Router       /groups/{id}/members [get]
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}
	if _, err := h.service.RequireMember(r.Context(), groupID, actorID); err != nil {
		response.FromError(w, err)
		return
	}

	members, err := h.service.GetMembers(r.Context(), groupID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	out := make([]*MemberResponse, len(members))
	for i, m := range members {
		out[i] = m.ToResponse()
	}
	response.JSON(w, http.StatusOK, out)
}

// InviteMember handles POST /groups/{id}/members
// @Summary      Invite a member by email
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body InviteMemberRequest true "Invitee"
// @Success      201 {object} response.APIResponse{data=PendingMemberResponse}
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{id}/members [post]
func (h *Handler) InviteMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req InviteMemberRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	p, err := h.service.InviteMember(r.Context(), actorID, groupID, req.Email)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, p.ToResponse())
}

// UpdateMember handles PUT /groups/{id}/members/{userId}
// @Summary      Change a member's role
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        userId path int true "User ID"
// @Param        request body UpdateMemberRequest true "New role"
// @Success      200 {object} response.APIResponse{data=MemberResponse}
// @Router       /groups/{id}/members/{userId} [put]
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}
	userID, err := request.IDParam(r, "userId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req UpdateMemberRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	m, err := h.service.UpdateMemberRole(r.Context(), actorID, groupID, userID, req.Role)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, m.ToResponse())
}

// RemoveMember handles DELETE /groups/{id}/members/{userId}
// @Summary      Remove a member
// @Tags         groups
// @Param        id path int true "Group ID"
// @Param        userId path int true "User ID"
// @Success      204
// @Router       /groups/{id}/members/{userId} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.memberAction(w, r, "userId", h.service.RemoveMember)
}

// RemovePendingMember handles DELETE /groups/{id}/pending/{pendingId}
// @Summary      Withdraw an invitation
// @Tags         groups
// @Param        id path int true "Group ID"
// @Param        pendingId path int true "Pending member ID"
// @Success      204
// @Router       /groups/{id}/pending/{pendingId} [delete]
func (h *Handler) RemovePendingMember(w http.ResponseWriter, r *http.Request) {
	h.memberAction(w, r, "pendingId", h.service.RemovePendingMember)
}

func (h *Handler) memberAction(w http.ResponseWriter, r *http.Request, param string, fn func(ctx context.Context, actorID, groupID, targetID int64) error) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	groupID, err := request.IDParam(r, "id")
	if err != nil {
		response.FromError(w, err)
		return
	}
	targetID, err := request.IDParam(r, param)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if err := fn(r.Context(), actorID, groupID, targetID); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListInvitations handles GET /groups/invitations
// @Summary      List my pending invitations
// @Tags         groups
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]PendingMemberResponse}
// @Router       /groups/invitations [get]
func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}

	invitations, err := h.service.ListInvitations(r.Context(), actorID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	out := make([]*PendingMemberResponse, len(invitations))
	for i, p := range invitations {
		out[i] = p.ToResponse()
	}
	response.JSON(w, http.StatusOK, out)
}

// AcceptInvitation handles POST /groups/invitations/{invitationId}/accept
// @Summary      Accept an invitation
// @Tags         groups
// @Param        invitationId path int true "Invitation ID"
// @Success      204
// @Router       /groups/invitations/{invitationId}/accept [post]
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	h.invitationAction(w, r, h.service.AcceptInvitation)
}

// RejectInvitation handles POST /groups/invitations/{invitationId}/reject
// @Summary      Reject an invitation
// @Tags         groups
// @Param        invitationId path int true "Invitation ID"
// @Success      204
// @Router       /groups/invitations/{invitationId}/reject [post]
func (h *Handler) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	h.invitationAction(w, r, h.service.RejectInvitation)
}

func (h *Handler) invitationAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, invitationID int64) error) {
	actorID, ok := middleware.ActorID(w, r)
	if !ok {
		return
	}
	invitationID, err := request.IDParam(r, "invitationId")
	if err != nil {
		response.FromError(w, err)
		return
	}
	if err := fn(r.Context(), actorID, invitationID); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
