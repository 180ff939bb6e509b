package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/billsplit/internal/database"
	"github.com/fkhayef/billsplit/internal/expense"
	"github.com/fkhayef/billsplit/internal/ledger"
)

const settlementColumns = `s.id, s.group_id, s.from_user_id, s.to_user_id, s.amount, s.message, s.image_url,
	s.settled_at, fu.username, tu.username`

const settlementJoins = `
	FROM settlements s
	JOIN users fu ON fu.id = s.from_user_id
	JOIN users tu ON tu.id = s.to_user_id`

// Repository handles settlement data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settlement repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (*Settlement, error) {
	s := &Settlement{}
	err := row.Scan(&s.ID, &s.GroupID, &s.FromUserID, &s.ToUserID, &s.Amount, &s.Message, &s.ImageURL,
		&s.SettledAt, &s.FromUsername, &s.ToUsername)
	return s, err
}

// Create records a settlement
func (r *Repository) Create(ctx context.Context, s *Settlement) (*Settlement, error) {
	var id int64
	query := `
		INSERT INTO settlements (group_id, from_user_id, to_user_id, amount, message, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query,
		s.GroupID, s.FromUserID, s.ToUserID, s.Amount, s.Message, s.ImageURL,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID retrieves a settlement, or nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id int64) (*Settlement, error) {
	query := `SELECT ` + settlementColumns + settlementJoins + ` WHERE s.id = $1`

	s, err := scanSettlement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return s, nil
}

// ListByGroupID retrieves a page of a group's settlements, newest first
func (r *Repository) ListByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Settlement, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM settlements WHERE group_id = $1`, groupID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	query := `SELECT ` + settlementColumns + settlementJoins + `
		WHERE s.group_id = $1
		ORDER BY s.settled_at DESC, s.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	settlements := make([]*Settlement, 0)
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, total, nil
}

// Delete removes a settlement
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settlements WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	return nil
}

// Snapshot reads everything the ledger needs for one group inside a single
// REPEATABLE READ transaction. Participants are the current members in join
// order followed by former members still referenced by the group's history.
func (r *Repository) Snapshot(ctx context.Context, groupID int64) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{GroupID: groupID}
	err := database.ReadSnapshot(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if snap.Participants, err = participants(ctx, tx, groupID); err != nil {
			return err
		}
		if snap.Expenses, err = expense.LedgerRecords(ctx, tx, groupID); err != nil {
			return err
		}
		snap.Settlements, err = settlementRecords(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func participants(ctx context.Context, q database.Querier, groupID int64) ([]ledger.Participant, error) {
	query := `
		SELECT u.id, u.username
		FROM (
			SELECT gm.user_id, 0 AS former, gm.joined_at, gm.id AS seq
			FROM group_members gm
			WHERE gm.group_id = $1
			UNION ALL
			SELECT h.user_id, 1, NULL, h.user_id
			FROM (
				SELECT payer_id AS user_id FROM expenses WHERE group_id = $1
				UNION
				SELECT es.user_id FROM expense_shares es JOIN expenses e ON e.id = es.expense_id WHERE e.group_id = $1
				UNION
				SELECT from_user_id FROM settlements WHERE group_id = $1
				UNION
				SELECT to_user_id FROM settlements WHERE group_id = $1
			) h
			WHERE h.user_id NOT IN (SELECT user_id FROM group_members WHERE group_id = $1)
		) p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.former, p.joined_at, p.seq`

	rows, err := q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	out := make([]ledger.Participant, 0)
	for rows.Next() {
		var p ledger.Participant
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return out, nil
}

func settlementRecords(ctx context.Context, q database.Querier, groupID int64) ([]ledger.SettlementRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, group_id, from_user_id, to_user_id, amount, settled_at
		FROM settlements
		WHERE group_id = $1
		ORDER BY settled_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlements: %w", err)
	}
	defer rows.Close()

	out := make([]ledger.SettlementRecord, 0)
	for rows.Next() {
		var s ledger.SettlementRecord
		if err := rows.Scan(&s.ID, &s.GroupID, &s.FromID, &s.ToID, &s.Amount, &s.SettledAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return out, nil
}
