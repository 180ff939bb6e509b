package ledger

import (
	"fmt"

	"github.com/fkhayef/billsplit/internal/apperrors"
)

// ApplySettlements folds recorded payments into base and returns a new
// Balances value. The debtor who paid moves up by the amount and the
// creditor who received moves down. base is not modified.
func ApplySettlements(base Balances, settlements []SettlementRecord) (Balances, error) {
	out := make(Balances, len(base))
	copy(out, base)

	index := make(map[int64]int, len(out))
	for i, b := range out {
		index[b.ParticipantID] = i
	}

	for _, s := range settlements {
		from, ok := index[s.FromID]
		if !ok {
			return nil, fmt.Errorf("%w: settlement %d from unknown participant %d", apperrors.ErrIntegrityViolation, s.ID, s.FromID)
		}
		to, ok := index[s.ToID]
		if !ok {
			return nil, fmt.Errorf("%w: settlement %d to unknown participant %d", apperrors.ErrIntegrityViolation, s.ID, s.ToID)
		}
		if !s.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: settlement %d has non-positive amount %s", apperrors.ErrIntegrityViolation, s.ID, s.Amount)
		}

		out[from].Amount = out[from].Amount.Add(s.Amount)
		out[to].Amount = out[to].Amount.Sub(s.Amount)
	}

	return out, nil
}
