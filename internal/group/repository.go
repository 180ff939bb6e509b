package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/billsplit/internal/database"
)

const (
	groupColumns   = `g.id, g.name, g.description, g.image_url, g.is_temporary, g.created_by, g.created_at`
	memberColumns  = `gm.id, gm.group_id, gm.user_id, gm.role, gm.joined_at, u.username, u.email`
	pendingColumns = `pm.id, pm.group_id, pm.email, pm.name, pm.invited_by, pm.invited_at`
)

// Repository handles group data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*Group, error) {
	g := &Group{}
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.ImageURL, &g.IsTemporary, &g.CreatedBy, &g.CreatedAt)
	return g, err
}

func scanMember(row rowScanner) (*Member, error) {
	m := &Member{}
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.JoinedAt, &m.Username, &m.Email)
	return m, err
}

func scanPending(row rowScanner, extra ...any) (*PendingMember, error) {
	p := &PendingMember{}
	dest := append([]any{&p.ID, &p.GroupID, &p.Email, &p.Name, &p.InvitedBy, &p.InvitedAt}, extra...)
	err := row.Scan(dest...)
	return p, err
}

// Create inserts the group, makes the creator an admin and records pending
// invitations, all in one transaction.
func (r *Repository) Create(ctx context.Context, creatorID int64, req *CreateGroupRequest, invites []*PendingMember) (*Group, error) {
	var g *Group
	err := database.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		query := `
			INSERT INTO groups AS g (name, description, is_temporary, created_by)
			VALUES ($1, $2, $3, $4)
			RETURNING ` + groupColumns
		var err error
		g, err = scanGroup(tx.QueryRowContext(ctx, query, req.Name, req.Description, req.IsTemporary, creatorID))
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`,
			g.ID, creatorID, MemberRoleAdmin,
		); err != nil {
			return fmt.Errorf("failed to add group admin: %w", err)
		}

		for _, p := range invites {
			if _, err := insertPending(ctx, tx, g.ID, p.Email, p.Name, creatorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetByID retrieves a group or nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// ListByUserID retrieves the groups a user belongs to
func (r *Repository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM group_members WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, total, nil
}

// Update modifies an existing group
func (r *Repository) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	query := `
		UPDATE groups AS g
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    image_url = COALESCE($4, image_url)
		WHERE g.id = $1
		RETURNING ` + groupColumns

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, id, req.Name, req.Description, req.ImageURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return g, nil
}

// Delete removes a group; members, expenses and settlements cascade
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// GetMembers returns members in join order. The order is stable and decides
// who absorbs rounding remainders in equal splits.
func (r *Repository) GetMembers(ctx context.Context, groupID int64) ([]*Member, error) {
	return r.getMembers(ctx, r.db, groupID)
}

func (r *Repository) getMembers(ctx context.Context, q database.Querier, groupID int64) ([]*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at, gm.id
	`
	rows, err := q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	members := make([]*Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// GetMember returns a single membership or nil
func (r *Repository) GetMember(ctx context.Context, groupID, userID int64) (*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1 AND gm.user_id = $2
	`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, groupID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// CountAdmins returns the number of admins in the group
func (r *Repository) CountAdmins(ctx context.Context, groupID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND role = $2`
	if err := r.db.QueryRowContext(ctx, query, groupID, MemberRoleAdmin).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

// UpdateMemberRole changes a member's role; nil when no such member
func (r *Repository) UpdateMemberRole(ctx context.Context, groupID, userID int64, role MemberRole) (*Member, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET role = $3 WHERE group_id = $1 AND user_id = $2`,
		groupID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}
	return r.GetMember(ctx, groupID, userID)
}

// RemoveMember deletes a membership
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

func insertPending(ctx context.Context, q database.Querier, groupID int64, email, name string, invitedBy int64) (*PendingMember, error) {
	query := `
		INSERT INTO pending_members AS pm (group_id, email, name, invited_by)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + pendingColumns
	p, err := scanPending(q.QueryRowContext(ctx, query, groupID, email, name, invitedBy))
	if err != nil {
		return nil, fmt.Errorf("failed to create pending member: %w", err)
	}
	return p, nil
}

// CreatePending records an invitation for email
func (r *Repository) CreatePending(ctx context.Context, groupID int64, email, name string, invitedBy int64) (*PendingMember, error) {
	return insertPending(ctx, r.db, groupID, email, name, invitedBy)
}

// GetPendingMembers returns pending members in invitation order
func (r *Repository) GetPendingMembers(ctx context.Context, groupID int64) ([]*PendingMember, error) {
	return r.getPendingMembers(ctx, r.db, groupID)
}

func (r *Repository) getPendingMembers(ctx context.Context, q database.Querier, groupID int64) ([]*PendingMember, error) {
	query := `
		SELECT ` + pendingColumns + `
		FROM pending_members pm
		WHERE pm.group_id = $1
		ORDER BY pm.invited_at, pm.id
	`
	rows, err := q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending members: %w", err)
	}
	defer rows.Close()

	pending := make([]*PendingMember, 0)
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending member: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending members: %w", err)
	}
	return pending, nil
}

// GetPending returns one invitation with group and inviter names, or nil
func (r *Repository) GetPending(ctx context.Context, id int64) (*PendingMember, error) {
	query := `
		SELECT ` + pendingColumns + `, g.name, u.username
		FROM pending_members pm
		JOIN groups g ON g.id = pm.group_id
		JOIN users u ON u.id = pm.invited_by
		WHERE pm.id = $1
	`
	var groupName, inviterName string
	p, err := scanPending(r.db.QueryRowContext(ctx, query, id), &groupName, &inviterName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending member: %w", err)
	}
	p.GroupName, p.InviterName = groupName, inviterName
	return p, nil
}

// PendingExists reports whether email already has an invitation to the group
func (r *Repository) PendingExists(ctx context.Context, groupID int64, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM pending_members WHERE group_id = $1 AND email = $2)`
	if err := r.db.QueryRowContext(ctx, query, groupID, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending member: %w", err)
	}
	return exists, nil
}

// ListPendingByEmail returns every open invitation for email
func (r *Repository) ListPendingByEmail(ctx context.Context, email string) ([]*PendingMember, error) {
	query := `
		SELECT ` + pendingColumns + `, g.name, u.username
		FROM pending_members pm
		JOIN groups g ON g.id = pm.group_id
		JOIN users u ON u.id = pm.invited_by
		WHERE pm.email = $1
		ORDER BY pm.invited_at DESC, pm.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invitations := make([]*PendingMember, 0)
	for rows.Next() {
		var groupName, inviterName string
		p, err := scanPending(rows, &groupName, &inviterName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		p.GroupName, p.InviterName = groupName, inviterName
		invitations = append(invitations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}
	return invitations, nil
}

// DeletePending removes an invitation
func (r *Repository) DeletePending(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_members WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete pending member: %w", err)
	}
	return nil
}

// AcceptInvitation turns an invitation into a membership atomically
func (r *Repository) AcceptInvitation(ctx context.Context, pendingID, groupID, userID int64) error {
	return database.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)
			 ON CONFLICT (group_id, user_id) DO NOTHING`,
			groupID, userID, MemberRoleMember,
		); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_members WHERE id = $1`, pendingID); err != nil {
			return fmt.Errorf("failed to delete invitation: %w", err)
		}
		return nil
	})
}

// Roster loads members and pending members within one read snapshot
func (r *Repository) Roster(ctx context.Context, groupID int64) ([]*Member, []*PendingMember, error) {
	var members []*Member
	var pending []*PendingMember
	err := database.ReadSnapshot(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if members, err = r.getMembers(ctx, tx, groupID); err != nil {
			return err
		}
		pending, err = r.getPendingMembers(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return members, pending, nil
}
