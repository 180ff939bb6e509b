package group

import "time"

// MemberRole represents the role of a group member
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// Group represents a group of people sharing expenses
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsTemporary bool      `json:"is_temporary"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member represents a user's membership in a group
type Member struct {
	ID       int64      `json:"id"`
	GroupID  int64      `json:"group_id"`
	UserID   int64      `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`

	// Populated from JOIN
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// IsAdmin reports whether the member can manage the group
func (m *Member) IsAdmin() bool {
	return m != nil && m.Role == MemberRoleAdmin
}

// PendingMember is someone invited by email who has not joined yet. Pending
// members take part in equal splits but hold no balance.
type PendingMember struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	InvitedBy int64     `json:"invited_by"`
	InvitedAt time.Time `json:"invited_at"`

	// Populated from JOIN
	GroupName   string `json:"group_name,omitempty"`
	InviterName string `json:"inviter_name,omitempty"`
}

// Details is a group with its current and pending members
type Details struct {
	Group   *Group
	Members []*Member
	Pending []*PendingMember
}
