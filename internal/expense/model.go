package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/expense/split"
)

// Expense represents an expense in the system
type Expense struct {
	ID           int64           `json:"id"`
	GroupID      int64           `json:"group_id"`
	PayerID      int64           `json:"payer_id"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	PendingTotal decimal.Decimal `json:"pending_total"`
	ImageURL     *string         `json:"image_url,omitempty"`
	SplitType    split.Mode      `json:"split_type"`
	CreatedAt    time.Time       `json:"created_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy    *int64          `json:"deleted_by,omitempty"`

	// Populated via JOIN
	PayerUsername string `json:"payer_username,omitempty"`
}

// IsDeleted reports whether the expense was soft-deleted
func (e *Expense) IsDeleted() bool {
	return e.DeletedAt != nil
}

// Share is the amount a group member owes for an expense
type Share struct {
	ID         int64           `json:"id"`
	ExpenseID  int64           `json:"expense_id"`
	UserID     int64           `json:"user_id"`
	AmountOwed decimal.Decimal `json:"amount_owed"`

	// Populated via JOIN
	Username string `json:"username,omitempty"`
}

// PendingShare is the amount an invited, not yet joined member owes
type PendingShare struct {
	ID         int64           `json:"id"`
	ExpenseID  int64           `json:"expense_id"`
	Email      string          `json:"email"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
}

// Details combines an expense with its shares
type Details struct {
	Expense       *Expense
	Shares        []*Share
	PendingShares []*PendingShare
}
