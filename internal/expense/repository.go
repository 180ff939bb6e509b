package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/billsplit/internal/database"
	"github.com/fkhayef/billsplit/internal/expense/split"
	"github.com/fkhayef/billsplit/internal/ledger"
)

const expenseColumns = `e.id, e.group_id, e.payer_id, e.description, e.amount, e.pending_total, e.image_url,
	e.split_type, e.created_at, e.deleted_at, e.deleted_by, u.username`

// Repository handles expense data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*Expense, error) {
	e := &Expense{}
	err := row.Scan(&e.ID, &e.GroupID, &e.PayerID, &e.Description, &e.Amount, &e.PendingTotal, &e.ImageURL,
		&e.SplitType, &e.CreatedAt, &e.DeletedAt, &e.DeletedBy, &e.PayerUsername)
	return e, err
}

// Create stores the expense with its member and pending shares in one
// transaction.
func (r *Repository) Create(ctx context.Context, e *Expense, alloc *split.Allocation) (*Details, error) {
	details := &Details{}
	err := database.WithTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var id int64
		insert := `
			INSERT INTO expenses (group_id, payer_id, description, amount, pending_total, image_url, split_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`
		if err := tx.QueryRowContext(ctx, insert,
			e.GroupID, e.PayerID, e.Description, e.Amount, e.PendingTotal, e.ImageURL, e.SplitType,
		).Scan(&id); err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}

		for _, s := range alloc.Shares {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO expense_shares (expense_id, user_id, amount_owed) VALUES ($1, $2, $3)`,
				id, s.ParticipantID, s.AmountOwed,
			); err != nil {
				return fmt.Errorf("failed to create share: %w", err)
			}
		}
		for _, p := range alloc.PendingShares {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO expense_pending_shares (expense_id, email, amount_owed) VALUES ($1, $2, $3)`,
				id, p.Email, p.AmountOwed,
			); err != nil {
				return fmt.Errorf("failed to create pending share: %w", err)
			}
		}

		var err error
		if details.Expense, err = getExpense(ctx, tx, id); err != nil {
			return err
		}
		if details.Shares, err = getShares(ctx, tx, id); err != nil {
			return err
		}
		details.PendingShares, err = getPendingShares(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// GetByID retrieves an expense by ID, or nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id int64) (*Expense, error) {
	return getExpense(ctx, r.db, id)
}

func getExpense(ctx context.Context, q database.Querier, id int64) (*Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		JOIN users u ON u.id = e.payer_id
		WHERE e.id = $1`

	e, err := scanExpense(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// ListByGroupID retrieves a page of a group's expenses, newest first.
// Soft-deleted expenses are included.
func (r *Repository) ListByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE group_id = $1`, groupID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		JOIN users u ON u.id = e.payer_id
		WHERE e.group_id = $1
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, total, nil
}

// GetShares retrieves member shares for an expense
func (r *Repository) GetShares(ctx context.Context, expenseID int64) ([]*Share, error) {
	return getShares(ctx, r.db, expenseID)
}

func getShares(ctx context.Context, q database.Querier, expenseID int64) ([]*Share, error) {
	query := `
		SELECT s.id, s.expense_id, s.user_id, s.amount_owed, u.username
		FROM expense_shares s
		JOIN users u ON u.id = s.user_id
		WHERE s.expense_id = $1
		ORDER BY s.id`

	rows, err := q.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get shares: %w", err)
	}
	defer rows.Close()

	shares := make([]*Share, 0)
	for rows.Next() {
		s := &Share{}
		if err := rows.Scan(&s.ID, &s.ExpenseID, &s.UserID, &s.AmountOwed, &s.Username); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

// GetPendingShares retrieves pending member shares for an expense
func (r *Repository) GetPendingShares(ctx context.Context, expenseID int64) ([]*PendingShare, error) {
	return getPendingShares(ctx, r.db, expenseID)
}

func getPendingShares(ctx context.Context, q database.Querier, expenseID int64) ([]*PendingShare, error) {
	query := `
		SELECT id, expense_id, email, amount_owed
		FROM expense_pending_shares
		WHERE expense_id = $1
		ORDER BY id`

	rows, err := q.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending shares: %w", err)
	}
	defer rows.Close()

	shares := make([]*PendingShare, 0)
	for rows.Next() {
		p := &PendingShare{}
		if err := rows.Scan(&p.ID, &p.ExpenseID, &p.Email, &p.AmountOwed); err != nil {
			return nil, fmt.Errorf("failed to scan pending share: %w", err)
		}
		shares = append(shares, p)
	}
	return shares, rows.Err()
}

// SoftDelete marks an expense deleted. It reports false when the expense
// was already deleted or does not exist.
func (r *Repository) SoftDelete(ctx context.Context, id, deletedBy int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET deleted_at = NOW(), deleted_by = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, deletedBy,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	return n == 1, nil
}

// Delete removes a soft-deleted expense and its shares for good
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = $1 AND deleted_at IS NOT NULL`, id,
	); err != nil {
		return fmt.Errorf("failed to permanently delete expense: %w", err)
	}
	return nil
}

// LedgerRecords loads every expense of a group, with member shares, as the
// ledger sees them. Soft-deleted expenses are returned with DeletedAt set.
func LedgerRecords(ctx context.Context, q database.Querier, groupID int64) ([]ledger.ExpenseRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, amount, payer_id, pending_total, deleted_at
		FROM expenses
		WHERE group_id = $1
		ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expenses: %w", err)
	}
	defer rows.Close()

	records := make([]ledger.ExpenseRecord, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var rec ledger.ExpenseRecord
		if err := rows.Scan(&rec.ID, &rec.Amount, &rec.PayerID, &rec.PendingTotal, &rec.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	shareRows, err := q.QueryContext(ctx, `
		SELECT s.expense_id, s.user_id, s.amount_owed
		FROM expense_shares s
		JOIN expenses e ON e.id = s.expense_id
		WHERE e.group_id = $1
		ORDER BY s.expense_id, s.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var s ledger.ShareEntry
		if err := shareRows.Scan(&s.ExpenseID, &s.ParticipantID, &s.AmountOwed); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		i, ok := index[s.ExpenseID]
		if !ok {
			continue
		}
		records[i].Shares = append(records[i].Shares, s)
	}
	if err := shareRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return records, nil
}
