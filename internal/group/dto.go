package group

import "time"

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=100"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	IsTemporary  bool     `json:"is_temporary"`
	MemberEmails []string `json:"member_emails,omitempty" validate:"omitempty,max=50,dive,email"`
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// InviteMemberRequest invites someone to the group by email
type InviteMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateMemberRequest changes a member's role
type UpdateMemberRequest struct {
	Role MemberRole `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID             int64                    `json:"id"`
	Name           string                   `json:"name"`
	Description    *string                  `json:"description,omitempty"`
	ImageURL       *string                  `json:"image_url,omitempty"`
	IsTemporary    bool                     `json:"is_temporary"`
	CreatedBy      int64                    `json:"created_by"`
	CreatedAt      string                   `json:"created_at"`
	Members        []*MemberResponse        `json:"members,omitempty"`
	PendingMembers []*PendingMemberResponse `json:"pending_members,omitempty"`
}

// MemberResponse represents a member in a group response
type MemberResponse struct {
	ID       int64      `json:"id"`
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     MemberRole `json:"role"`
	JoinedAt string     `json:"joined_at"`
}

// PendingMemberResponse represents a pending member or an invitation
type PendingMemberResponse struct {
	ID          int64  `json:"id"`
	GroupID     int64  `json:"group_id"`
	GroupName   string `json:"group_name,omitempty"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	InvitedBy   int64  `json:"invited_by"`
	InviterName string `json:"inviter_name,omitempty"`
	InvitedAt   string `json:"invited_at"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		ImageURL:    g.ImageURL,
		IsTemporary: g.IsTemporary,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToResponse converts Details to a GroupResponse with members
func (d *Details) ToResponse() *GroupResponse {
	resp := d.Group.ToResponse()
	resp.Members = make([]*MemberResponse, len(d.Members))
	for i, m := range d.Members {
		resp.Members[i] = m.ToResponse()
	}
	resp.PendingMembers = make([]*PendingMemberResponse, len(d.Pending))
	for i, p := range d.Pending {
		resp.PendingMembers[i] = p.ToResponse()
	}
	return resp
}

// ToResponse converts a Member model to a MemberResponse DTO
func (m *Member) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:       m.ID,
		UserID:   m.UserID,
		Username: m.Username,
		Email:    m.Email,
		Role:     m.Role,
		JoinedAt: m.JoinedAt.UTC().Format(time.RFC3339),
	}
}

// ToResponse converts a PendingMember model to a PendingMemberResponse DTO
func (p *PendingMember) ToResponse() *PendingMemberResponse {
	return &PendingMemberResponse{
		ID:          p.ID,
		GroupID:     p.GroupID,
		GroupName:   p.GroupName,
		Email:       p.Email,
		Name:        p.Name,
		InvitedBy:   p.InvitedBy,
		InviterName: p.InviterName,
		InvitedAt:   p.InvitedAt.UTC().Format(time.RFC3339),
	}
}
