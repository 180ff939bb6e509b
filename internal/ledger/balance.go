package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
)

// ComputeBaseBalances returns paid minus owed for every participant across
// the non-deleted expenses. A payer is credited only for the part of the
// expense owed by real participants.
func ComputeBaseBalances(participants []Participant, expenses []ExpenseRecord) (Balances, error) {
	index := make(map[int64]int, len(participants))
	balances := make(Balances, len(participants))
	for i, p := range participants {
		if _, dup := index[p.ID]; dup {
			return nil, fmt.Errorf("%w: participant %d appears twice", apperrors.ErrIntegrityViolation, p.ID)
		}
		index[p.ID] = i
		balances[i] = Balance{ParticipantID: p.ID, Amount: decimal.Zero}
	}

	for _, e := range expenses {
		if e.IsDeleted() {
			continue
		}

		payer, ok := index[e.PayerID]
		if !ok {
			return nil, fmt.Errorf("%w: expense %d paid by unknown participant %d", apperrors.ErrIntegrityViolation, e.ID, e.PayerID)
		}

		owed := e.PendingTotal
		for _, s := range e.Shares {
			i, ok := index[s.ParticipantID]
			if !ok {
				return nil, fmt.Errorf("%w: expense %d has share for unknown participant %d", apperrors.ErrIntegrityViolation, e.ID, s.ParticipantID)
			}
			balances[i].Amount = balances[i].Amount.Sub(s.AmountOwed)
			owed = owed.Add(s.AmountOwed)
		}
		if !owed.Equal(e.Amount) {
			return nil, fmt.Errorf("%w: expense %d shares total %s, amount %s", apperrors.ErrIntegrityViolation, e.ID, owed, e.Amount)
		}

		balances[payer].Amount = balances[payer].Amount.Add(e.Amount.Sub(e.PendingTotal))
	}

	return balances, nil
}

// ComputeBalances returns the net balance of every participant in the
// snapshot, with recorded settlements applied.
func ComputeBalances(s Snapshot) (Balances, error) {
	base, err := ComputeBaseBalances(s.Participants, s.Expenses)
	if err != nil {
		return nil, err
	}

	balances, err := ApplySettlements(base, s.Settlements)
	if err != nil {
		return nil, err
	}

	if total := balances.Total(); !total.IsZero() {
		return nil, fmt.Errorf("%w: group %d balances sum to %s", apperrors.ErrIntegrityViolation, s.GroupID, total)
	}
	return balances, nil
}
