package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/pkg/money"
)

type position struct {
	id     int64
	amount decimal.Decimal
}

// Simplify turns balances into point-to-point payments. Creditors are
// served largest first and debtors largest debt first; each step pays the
// smaller of the two outstanding amounts. At most len(creditors) +
// len(debtors) - 1 transactions are produced.
func Simplify(balances Balances) ([]Transaction, error) {
	var creditors, debtors []position
	for _, b := range balances {
		switch {
		case b.Amount.IsPositive():
			creditors = append(creditors, position{b.ParticipantID, b.Amount})
		case b.Amount.IsNegative():
			debtors = append(debtors, position{b.ParticipantID, b.Amount})
		}
	}

	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].amount.GreaterThan(creditors[j].amount)
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].amount.LessThan(debtors[j].amount)
	})

	transactions := make([]Transaction, 0)
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		creditor := &creditors[i]
		debtor := &debtors[j]

		amount := decimal.Min(creditor.amount, debtor.amount.Neg())
		if !amount.IsPositive() {
			i++
			j++
			continue
		}

		transactions = append(transactions, Transaction{
			FromID: debtor.id,
			ToID:   creditor.id,
			Amount: amount,
		})

		creditor.amount = creditor.amount.Sub(amount)
		debtor.amount = debtor.amount.Add(amount)

		if money.IsNegligible(creditor.amount) {
			i++
		}
		if money.IsNegligible(debtor.amount) {
			j++
		}
	}

	for ; i < len(creditors); i++ {
		if !money.IsNegligible(creditors[i].amount) {
			return nil, fmt.Errorf("%w: creditor %d left with %s", apperrors.ErrIntegrityViolation, creditors[i].id, creditors[i].amount)
		}
	}
	for ; j < len(debtors); j++ {
		if !money.IsNegligible(debtors[j].amount) {
			return nil, fmt.Errorf("%w: debtor %d left with %s", apperrors.ErrIntegrityViolation, debtors[j].id, debtors[j].amount)
		}
	}

	return transactions, nil
}
