package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/billsplit/internal/apperrors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bal(id int64, amount string) Balance {
	return Balance{ParticipantID: id, Amount: dec(amount)}
}

func share(expenseID, id int64, amount string) ShareEntry {
	return ShareEntry{ExpenseID: expenseID, ParticipantID: id, AmountOwed: dec(amount)}
}

var trio = []Participant{{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"}, {ID: 3, Name: "carol"}}

// applyTransactions settles balances with the given payments.
func applyTransactions(b Balances, txs []Transaction) map[int64]decimal.Decimal {
	m := b.Map()
	for _, tx := range txs {
		m[tx.FromID] = m[tx.FromID].Add(tx.Amount)
		m[tx.ToID] = m[tx.ToID].Sub(tx.Amount)
	}
	return m
}

func TestSimplify_OneCreditorTwoDebtors(t *testing.T) {
	balances := Balances{bal(1, "50.00"), bal(2, "-20.00"), bal(3, "-30.00")}

	txs, err := Simplify(balances)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	// Debtors are matched most-negative first, so 3->1 precedes 2->1 even
	// though participant 2 comes first in the input.
	assert.Equal(t, int64(3), txs[0].FromID)
	assert.Equal(t, int64(1), txs[0].ToID)
	assert.True(t, txs[0].Amount.Equal(dec("30.00")))
	assert.Equal(t, int64(2), txs[1].FromID)
	assert.Equal(t, int64(1), txs[1].ToID)
	assert.True(t, txs[1].Amount.Equal(dec("20.00")))

	for id, remaining := range applyTransactions(balances, txs) {
		assert.True(t, remaining.IsZero(), "participant %d left with %s", id, remaining)
	}
}

func TestSimplify_TwoCreditorsOneDebtor(t *testing.T) {
	balances := Balances{bal(1, "10.00"), bal(2, "10.00"), bal(3, "-20.00")}

	txs, err := Simplify(balances)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, int64(1), txs[0].ToID)
	assert.Equal(t, int64(2), txs[1].ToID)
	for _, tx := range txs {
		assert.Equal(t, int64(3), tx.FromID)
		assert.True(t, tx.Amount.Equal(dec("10.00")))
	}
}

func TestSimplify_Empty(t *testing.T) {
	txs, err := Simplify(Balances{bal(1, "0"), bal(2, "0")})
	require.NoError(t, err)
	assert.Empty(t, txs)

	txs, err = Simplify(nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSimplify_Unbalanced(t *testing.T) {
	_, err := Simplify(Balances{bal(1, "10.00"), bal(2, "-5.00")})
	assert.ErrorIs(t, err, apperrors.ErrIntegrityViolation)
}

func TestSimplify_BoundAndCorrectness(t *testing.T) {
	tests := []Balances{
		{bal(1, "12.34"), bal(2, "-0.34"), bal(3, "-12.00")},
		{bal(1, "5.00"), bal(2, "5.00"), bal(3, "5.00"), bal(4, "-15.00")},
		{bal(1, "-1.11"), bal(2, "-2.22"), bal(3, "3.33"), bal(4, "0"), bal(5, "-4.44"), bal(6, "4.44")},
		{bal(1, "100.00"), bal(2, "-33.33"), bal(3, "-33.33"), bal(4, "-33.34")},
	}

	for i, balances := range tests {
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			require.True(t, balances.Total().IsZero())

			txs, err := Simplify(balances)
			require.NoError(t, err)

			nonZero := 0
			for _, b := range balances {
				if !b.Amount.IsZero() {
					nonZero++
				}
			}
			assert.LessOrEqual(t, len(txs), nonZero-1)
			for _, tx := range txs {
				assert.True(t, tx.Amount.IsPositive())
				assert.NotEqual(t, tx.FromID, tx.ToID)
			}
			for id, remaining := range applyTransactions(balances, txs) {
				assert.True(t, remaining.Abs().LessThan(dec("0.01")), "participant %d left with %s", id, remaining)
			}
		})
	}
}

func TestSimplify_Deterministic(t *testing.T) {
	balances := Balances{bal(4, "10.00"), bal(2, "10.00"), bal(7, "-10.00"), bal(1, "-10.00")}

	first, err := Simplify(balances)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Simplify(balances)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Ties keep input order.
	assert.Equal(t, int64(7), first[0].FromID)
	assert.Equal(t, int64(4), first[0].ToID)
}

func TestComputeBaseBalances(t *testing.T) {
	deleted := time.Now()
	expenses := []ExpenseRecord{
		{
			ID: 1, Amount: dec("90.00"), PayerID: 1,
			Shares: []ShareEntry{share(1, 1, "30.00"), share(1, 2, "30.00"), share(1, 3, "30.00")},
		},
		{
			ID: 2, Amount: dec("30.00"), PayerID: 2,
			Shares: []ShareEntry{share(2, 2, "15.00"), share(2, 3, "15.00")},
		},
		{
			ID: 3, Amount: dec("500.00"), PayerID: 3, DeletedAt: &deleted,
			Shares: []ShareEntry{share(3, 1, "500.00")},
		},
	}

	balances, err := ComputeBaseBalances(trio, expenses)
	require.NoError(t, err)
	require.Len(t, balances, 3)

	assert.True(t, balances.Get(1).Equal(dec("60.00")))
	assert.True(t, balances.Get(2).Equal(dec("-15.00")))
	assert.True(t, balances.Get(3).Equal(dec("-45.00")))
	assert.True(t, balances.Total().IsZero())
	assert.Equal(t, []int64{1, 2, 3}, []int64{balances[0].ParticipantID, balances[1].ParticipantID, balances[2].ParticipantID})
}

func TestComputeBaseBalances_PendingShares(t *testing.T) {
	// 30.00 split three ways with one pending member: the payer is only
	// credited for the 20.00 owed by real members.
	expenses := []ExpenseRecord{{
		ID: 1, Amount: dec("30.00"), PayerID: 1, PendingTotal: dec("10.00"),
		Shares: []ShareEntry{share(1, 1, "10.00"), share(1, 2, "10.00")},
	}}

	balances, err := ComputeBaseBalances(trio[:2], expenses)
	require.NoError(t, err)
	assert.True(t, balances.Get(1).Equal(dec("10.00")))
	assert.True(t, balances.Get(2).Equal(dec("-10.00")))
	assert.True(t, balances.Total().IsZero())
}

func TestComputeBaseBalances_IntegrityViolations(t *testing.T) {
	tests := []struct {
		name     string
		expenses []ExpenseRecord
	}{
		{
			name:     "unknown payer",
			expenses: []ExpenseRecord{{ID: 1, Amount: dec("10.00"), PayerID: 9, Shares: []ShareEntry{share(1, 1, "10.00")}}},
		},
		{
			name:     "unknown share participant",
			expenses: []ExpenseRecord{{ID: 1, Amount: dec("10.00"), PayerID: 1, Shares: []ShareEntry{share(1, 9, "10.00")}}},
		},
		{
			name:     "shares do not add up",
			expenses: []ExpenseRecord{{ID: 1, Amount: dec("10.00"), PayerID: 1, Shares: []ShareEntry{share(1, 2, "9.99")}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeBaseBalances(trio, tt.expenses)
			assert.ErrorIs(t, err, apperrors.ErrIntegrityViolation)
		})
	}
}

func TestApplySettlements(t *testing.T) {
	base := Balances{bal(1, "50.00"), bal(2, "-20.00"), bal(3, "-30.00")}
	settlements := []SettlementRecord{
		{ID: 1, FromID: 2, ToID: 1, Amount: dec("20.00")},
		{ID: 2, FromID: 3, ToID: 1, Amount: dec("10.00")},
	}

	adjusted, err := ApplySettlements(base, settlements)
	require.NoError(t, err)
	assert.True(t, adjusted.Get(1).Equal(dec("20.00")))
	assert.True(t, adjusted.Get(2).IsZero())
	assert.True(t, adjusted.Get(3).Equal(dec("-20.00")))

	// base is untouched
	assert.True(t, base.Get(1).Equal(dec("50.00")))

	reversed := []SettlementRecord{settlements[1], settlements[0]}
	again, err := ApplySettlements(base, reversed)
	require.NoError(t, err)
	assert.Equal(t, adjusted.Map(), again.Map())
}

func TestApplySettlements_Invalid(t *testing.T) {
	base := Balances{bal(1, "10.00"), bal(2, "-10.00")}

	_, err := ApplySettlements(base, []SettlementRecord{{ID: 1, FromID: 2, ToID: 9, Amount: dec("5.00")}})
	assert.ErrorIs(t, err, apperrors.ErrIntegrityViolation)

	_, err = ApplySettlements(base, []SettlementRecord{{ID: 1, FromID: 2, ToID: 1, Amount: dec("0")}})
	assert.ErrorIs(t, err, apperrors.ErrIntegrityViolation)
}

func TestSettle(t *testing.T) {
	snapshot := Snapshot{
		GroupID:      42,
		Participants: trio,
		Expenses: []ExpenseRecord{{
			ID: 1, Amount: dec("100.00"), PayerID: 1,
			Shares: []ShareEntry{share(1, 1, "33.33"), share(1, 2, "33.33"), share(1, 3, "33.34")},
		}},
		Settlements: []SettlementRecord{{ID: 1, GroupID: 42, FromID: 2, ToID: 1, Amount: dec("33.33")}},
	}

	plan, err := Settle(snapshot)
	require.NoError(t, err)
	assert.Equal(t, int64(42), plan.GroupID)
	assert.True(t, plan.Balances.Get(2).IsZero())

	require.Len(t, plan.Transactions, 1)
	tx := plan.Transactions[0]
	assert.Equal(t, "carol", tx.FromName)
	assert.Equal(t, "alice", tx.ToName)
	assert.True(t, tx.Amount.Equal(dec("33.34")))
}

func TestSettle_FullySettledGroup(t *testing.T) {
	snapshot := Snapshot{
		GroupID:      1,
		Participants: trio[:2],
		Expenses: []ExpenseRecord{{
			ID: 1, Amount: dec("20.00"), PayerID: 1,
			Shares: []ShareEntry{share(1, 1, "10.00"), share(1, 2, "10.00")},
		}},
		Settlements: []SettlementRecord{{ID: 1, FromID: 2, ToID: 1, Amount: dec("10.00")}},
	}

	plan, err := Settle(snapshot)
	require.NoError(t, err)
	assert.Empty(t, plan.Transactions)
}

func TestSettleGroups(t *testing.T) {
	snapshots := make([]Snapshot, 8)
	for i := range snapshots {
		amount := decimal.NewFromInt(int64(10 * (i + 1)))
		half := amount.Div(decimal.NewFromInt(2))
		snapshots[i] = Snapshot{
			GroupID:      int64(i + 1),
			Participants: trio[:2],
			Expenses: []ExpenseRecord{{
				ID: int64(i + 1), Amount: amount, PayerID: 1,
				Shares: []ShareEntry{{ParticipantID: 1, AmountOwed: half}, {ParticipantID: 2, AmountOwed: half}},
			}},
		}
	}

	plans, err := SettleGroups(context.Background(), snapshots, 3)
	require.NoError(t, err)
	require.Len(t, plans, len(snapshots))
	for i, plan := range plans {
		assert.Equal(t, int64(i+1), plan.GroupID)
		require.Len(t, plan.Transactions, 1)
		assert.True(t, plan.Transactions[0].Amount.Equal(decimal.NewFromInt(int64(5*(i+1)))))
	}
}

func TestSettleGroups_PropagatesFailure(t *testing.T) {
	snapshots := []Snapshot{
		{GroupID: 1, Participants: trio},
		{GroupID: 2, Participants: trio, Settlements: []SettlementRecord{{ID: 1, FromID: 1, ToID: 99, Amount: dec("1.00")}}},
	}

	_, err := SettleGroups(context.Background(), snapshots, 0)
	assert.ErrorIs(t, err, apperrors.ErrIntegrityViolation)
}

func TestSettleGroups_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SettleGroups(ctx, []Snapshot{{GroupID: 1, Participants: trio}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
