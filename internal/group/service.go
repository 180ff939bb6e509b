package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/internal/user"
)

// Common errors
var (
	ErrGroupNotFound       = fmt.Errorf("group %w", apperrors.ErrNotFound)
	ErrMemberNotFound      = fmt.Errorf("member %w", apperrors.ErrNotFound)
	ErrInvitationNotFound  = fmt.Errorf("invitation %w", apperrors.ErrNotFound)
	ErrNotMember           = fmt.Errorf("%w: not a member of this group", apperrors.ErrForbidden)
	ErrNotAdmin            = fmt.Errorf("%w: only group admins can perform this action", apperrors.ErrForbidden)
	ErrNotInvitee          = fmt.Errorf("%w: this invitation does not belong to you", apperrors.ErrForbidden)
	ErrMemberAlreadyExists = fmt.Errorf("%w: user is already a member of this group", apperrors.ErrConflict)
	ErrAlreadyInvited      = fmt.Errorf("%w: email already has a pending invitation", apperrors.ErrConflict)
	ErrLastAdmin           = fmt.Errorf("%w: the only admin cannot leave or be demoted", apperrors.ErrConflict)
)

// Store is the persistence the group service depends on
type Store interface {
	Create(ctx context.Context, creatorID int64, req *CreateGroupRequest, invites []*PendingMember) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error)
	Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error)
	Delete(ctx context.Context, id int64) error
	GetMembers(ctx context.Context, groupID int64) ([]*Member, error)
	GetMember(ctx context.Context, groupID, userID int64) (*Member, error)
	CountAdmins(ctx context.Context, groupID int64) (int, error)
	UpdateMemberRole(ctx context.Context, groupID, userID int64, role MemberRole) (*Member, error)
	RemoveMember(ctx context.Context, groupID, userID int64) error
	CreatePending(ctx context.Context, groupID int64, email, name string, invitedBy int64) (*PendingMember, error)
	GetPendingMembers(ctx context.Context, groupID int64) ([]*PendingMember, error)
	GetPending(ctx context.Context, id int64) (*PendingMember, error)
	PendingExists(ctx context.Context, groupID int64, email string) (bool, error)
	ListPendingByEmail(ctx context.Context, email string) ([]*PendingMember, error)
	DeletePending(ctx context.Context, id int64) error
	AcceptInvitation(ctx context.Context, pendingID, groupID, userID int64) error
	Roster(ctx context.Context, groupID int64) ([]*Member, []*PendingMember, error)
}

// Users looks up accounts by id or email
type Users interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// Notifier delivers in-app notifications about membership changes
type Notifier interface {
	NotifyGroupInvite(ctx context.Context, recipientID int64, groupName string, groupID int64) error
	NotifyInvitationRejected(ctx context.Context, recipientID int64, rejecterName, groupName string, groupID int64) error
}

// Service handles group business logic
type Service struct {
	repo     Store
	users    Users
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a new group service
func NewService(repo Store, users Users, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "group")),
	}
}

// Create creates a group with the creator as admin and invites the given emails
func (s *Service) Create(ctx context.Context, creatorID int64, req *CreateGroupRequest) (*Group, error) {
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{normalizeEmail(creator.Email): {}}
	invites := make([]*PendingMember, 0, len(req.MemberEmails))
	for _, raw := range req.MemberEmails {
		email := normalizeEmail(raw)
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		name, err := s.displayName(ctx, email)
		if err != nil {
			return nil, err
		}
		invites = append(invites, &PendingMember{Email: email, Name: name})
	}

	g, err := s.repo.Create(ctx, creatorID, req, invites)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "group created",
		slog.Int64("group_id", g.ID),
		slog.Int64("creator_id", creatorID),
		slog.Int("invites", len(invites)),
	)
	for _, p := range invites {
		s.notifyInvite(ctx, p.Email, g)
	}
	return g, nil
}

// GetByID retrieves a group by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Group, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// GetDetails returns the group with its members and pending members.
// Only members may view a group.
func (s *Service) GetDetails(ctx context.Context, actorID, groupID int64) (*Details, error) {
	g, err := s.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, pending, err := s.repo.Roster(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !containsUser(members, actorID) {
		return nil, ErrNotMember
	}
	return &Details{Group: g, Members: members, Pending: pending}, nil
}

// ListByUserID retrieves one page of the user's groups
func (s *Service) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error) {
	return s.repo.ListByUserID(ctx, userID, limit, offset)
}

// Update modifies a group; admins only
func (s *Service) Update(ctx context.Context, actorID, groupID int64, req *UpdateGroupRequest) (*Group, error) {
	if _, err := s.RequireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}

	g, err := s.repo.Update(ctx, groupID, req)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// Delete removes a group and everything recorded in it; admins only
func (s *Service) Delete(ctx context.Context, actorID, groupID int64) error {
	if _, err := s.RequireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, groupID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "group deleted", slog.Int64("group_id", groupID), slog.Int64("actor_id", actorID))
	return nil
}

// InviteMember invites someone by email. Invitees count toward equal splits
// as pending members until they accept.
func (s *Service) InviteMember(ctx context.Context, actorID, groupID int64, email string) (*PendingMember, error) {
	if _, err := s.RequireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	g, err := s.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if existing != nil {
		member, err := s.repo.GetMember(ctx, groupID, existing.ID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return nil, ErrMemberAlreadyExists
		}
	}

	invited, err := s.repo.PendingExists(ctx, groupID, email)
	if err != nil {
		return nil, err
	}
	if invited {
		return nil, ErrAlreadyInvited
	}

	name := nameFromEmail(email)
	if existing != nil {
		name = existing.Username
	}
	p, err := s.repo.CreatePending(ctx, groupID, email, name, actorID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "member invited", slog.Int64("group_id", groupID), slog.Int64("pending_id", p.ID))
	if existing != nil {
		s.notify(ctx, "group_invite", func() error {
			return s.notifier.NotifyGroupInvite(ctx, existing.ID, g.Name, g.ID)
		})
	}
	return p, nil
}

// GetMembers returns the members of a group in stable join order
func (s *Service) GetMembers(ctx context.Context, groupID int64) ([]*Member, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.GetMembers(ctx, groupID)
}

// Roster returns members and pending members read from one snapshot
func (s *Service) Roster(ctx context.Context, groupID int64) ([]*Member, []*PendingMember, error) {
	return s.repo.Roster(ctx, groupID)
}

// RequireMember returns the actor's membership or ErrNotMember
func (s *Service) RequireMember(ctx context.Context, groupID, userID int64) (*Member, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	m, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotMember
	}
	return m, nil
}

// RequireAdmin returns the actor's membership if they are an admin
func (s *Service) RequireAdmin(ctx context.Context, groupID, userID int64) (*Member, error) {
	m, err := s.RequireMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return m, nil
}

// UpdateMemberRole promotes or demotes a member; admins only
func (s *Service) UpdateMemberRole(ctx context.Context, actorID, groupID, userID int64, role MemberRole) (*Member, error) {
	if _, err := s.RequireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	target, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrMemberNotFound
	}
	if target.IsAdmin() && role != MemberRoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, groupID); err != nil {
			return nil, err
		}
	}

	m, err := s.repo.UpdateMemberRole(ctx, groupID, userID, role)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// RemoveMember removes another member; admins only
func (s *Service) RemoveMember(ctx context.Context, actorID, groupID, userID int64) error {
	if _, err := s.RequireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	target, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrMemberNotFound
	}
	if target.IsAdmin() {
		if err := s.ensureAnotherAdmin(ctx, groupID); err != nil {
			return err
		}
	}
	return s.repo.RemoveMember(ctx, groupID, userID)
}

// RemovePendingMember withdraws an invitation; admins only
func (s *Service) RemovePendingMember(ctx context.Context, actorID, groupID, pendingID int64) error {
	if _, err := s.RequireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}
	p, err := s.repo.GetPending(ctx, pendingID)
	if err != nil {
		return err
	}
	if p == nil || p.GroupID != groupID {
		return ErrInvitationNotFound
	}
	return s.repo.DeletePending(ctx, pendingID)
}

// Leave removes the actor from the group. The only admin cannot leave.
func (s *Service) Leave(ctx context.Context, actorID, groupID int64) error {
	m, err := s.RequireMember(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if m.IsAdmin() {
		if err := s.ensureAnotherAdmin(ctx, groupID); err != nil {
			return err
		}
	}
	return s.repo.RemoveMember(ctx, groupID, actorID)
}

// ListInvitations returns the open invitations addressed to the actor
func (s *Service) ListInvitations(ctx context.Context, actorID int64) ([]*PendingMember, error) {
	u, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPendingByEmail(ctx, normalizeEmail(u.Email))
}

// AcceptInvitation makes the actor a member of the inviting group
func (s *Service) AcceptInvitation(ctx context.Context, actorID, invitationID int64) error {
	p, _, err := s.ownInvitation(ctx, actorID, invitationID)
	if err != nil {
		return err
	}
	if err := s.repo.AcceptInvitation(ctx, p.ID, p.GroupID, actorID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "invitation accepted", slog.Int64("group_id", p.GroupID), slog.Int64("user_id", actorID))
	return nil
}

// RejectInvitation deletes the invitation and tells the inviter
func (s *Service) RejectInvitation(ctx context.Context, actorID, invitationID int64) error {
	p, actor, err := s.ownInvitation(ctx, actorID, invitationID)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePending(ctx, p.ID); err != nil {
		return err
	}
	s.notify(ctx, "invitation_rejected", func() error {
		return s.notifier.NotifyInvitationRejected(ctx, p.InvitedBy, actor.Username, p.GroupName, p.GroupID)
	})
	return nil
}

func (s *Service) ownInvitation(ctx context.Context, actorID, invitationID int64) (*PendingMember, *user.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.repo.GetPending(ctx, invitationID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, ErrInvitationNotFound
	}
	if !strings.EqualFold(p.Email, normalizeEmail(actor.Email)) {
		return nil, nil, ErrNotInvitee
	}
	return p, actor, nil
}

func (s *Service) ensureAnotherAdmin(ctx context.Context, groupID int64) error {
	admins, err := s.repo.CountAdmins(ctx, groupID)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// displayName uses the account name when the email is registered.
func (s *Service) displayName(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nameFromEmail(email), nil
		}
		return "", err
	}
	return u.Username, nil
}

func (s *Service) notifyInvite(ctx context.Context, email string, g *Group) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return
	}
	s.notify(ctx, "group_invite", func() error {
		return s.notifier.NotifyGroupInvite(ctx, u.ID, g.Name, g.ID)
	})
}

// notify runs fn and logs failures; notifications never fail the caller.
func (s *Service) notify(ctx context.Context, kind string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

func containsUser(members []*Member, userID int64) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, apperrors.ErrNotFound)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// nameFromEmail derives a display name from the local part of an address,
// e.g. "jane.doe@x.io" becomes "Jane Doe".
func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	if len(parts) == 0 {
		return email
	}
	return strings.Join(parts, " ")
}
