// Package ledger computes group balances from immutable snapshots and
// reduces them to a short list of settlement transactions.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant is a group member as seen by a single computation.
type Participant struct {
	ID   int64
	Name string
}

// ShareEntry is the amount one participant owes for one expense.
type ShareEntry struct {
	ExpenseID     int64
	ParticipantID int64
	AmountOwed    decimal.Decimal
}

// ExpenseRecord is the ledger's view of a persisted expense.
// PendingTotal is the portion owed by pending members, who hold no balance.
type ExpenseRecord struct {
	ID           int64
	Amount       decimal.Decimal
	PayerID      int64
	Shares       []ShareEntry
	PendingTotal decimal.Decimal
	DeletedAt    *time.Time
}

// IsDeleted reports whether the expense was soft-deleted.
func (e ExpenseRecord) IsDeleted() bool {
	return e.DeletedAt != nil
}

// SettlementRecord is a recorded payment from a debtor (FromID) to a
// creditor (ToID).
type SettlementRecord struct {
	ID        int64
	GroupID   int64
	FromID    int64
	ToID      int64
	Amount    decimal.Decimal
	SettledAt time.Time
}

// Balance is one participant's signed net position. Positive means the
// group owes them.
type Balance struct {
	ParticipantID int64
	Amount        decimal.Decimal
}

// Balances keeps participant order stable so results are reproducible.
type Balances []Balance

// Map returns the balances keyed by participant id.
func (b Balances) Map() map[int64]decimal.Decimal {
	m := make(map[int64]decimal.Decimal, len(b))
	for _, bal := range b {
		m[bal.ParticipantID] = bal.Amount
	}
	return m
}

// Get returns the balance for id, or zero when id is unknown.
func (b Balances) Get(id int64) decimal.Decimal {
	for _, bal := range b {
		if bal.ParticipantID == id {
			return bal.Amount
		}
	}
	return decimal.Zero
}

// Total returns the sum of every balance.
func (b Balances) Total() decimal.Decimal {
	total := decimal.Zero
	for _, bal := range b {
		total = total.Add(bal.Amount)
	}
	return total
}

// Transaction is a suggested payment; it is never persisted here.
type Transaction struct {
	FromID   int64
	FromName string
	ToID     int64
	ToName   string
	Amount   decimal.Decimal
}

// Snapshot is everything recorded for one group at a single point in time.
type Snapshot struct {
	GroupID      int64
	Participants []Participant
	Expenses     []ExpenseRecord
	Settlements  []SettlementRecord
}

// Plan is the result of settling one snapshot.
type Plan struct {
	GroupID      int64
	Balances     Balances
	Transactions []Transaction
}
