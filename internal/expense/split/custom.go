package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/pkg/money"
)

// =============================================================================
// CUSTOM SPLIT STRATEGY
// Each member and pending member owes an explicit amount; the amounts must
// add up to the expense amount exactly.
// =============================================================================

// CustomStrategy implements the Strategy interface for custom amount splits
type CustomStrategy struct{}

// Mode returns the split mode identifier
func (s *CustomStrategy) Mode() Mode {
	return ModeCustom
}

// Validate checks if the request is valid for a custom split
func (s *CustomStrategy) Validate(req *Request) error {
	if err := validateAmount(req.Amount); err != nil {
		return err
	}
	if len(req.Shares)+len(req.PendingShares) == 0 {
		return fmt.Errorf("%w: custom shares must be provided", apperrors.ErrInvalidSplit)
	}

	ids := make([]int64, len(req.Shares))
	emails := make([]string, len(req.PendingShares))
	total := decimal.Zero
	for i, sh := range req.Shares {
		if err := checkShareAmount(sh.Amount); err != nil {
			return err
		}
		ids[i] = sh.ParticipantID
		total = total.Add(sh.Amount)
	}
	for i, sh := range req.PendingShares {
		if err := checkShareAmount(sh.Amount); err != nil {
			return err
		}
		emails[i] = sh.Email
		total = total.Add(sh.Amount)
	}
	if err := checkDuplicates(ids, emails); err != nil {
		return err
	}

	// Exact comparison: 99.99 against 100.00 is rejected.
	if !total.Equal(req.Amount) {
		return fmt.Errorf("%w: shares sum to %s but expense amount is %s", apperrors.ErrInvalidSplit, total, req.Amount)
	}
	return nil
}

// Calculate returns the amounts exactly as specified
func (s *CustomStrategy) Calculate(req *Request) (*Allocation, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	allocation := &Allocation{
		Shares:        make([]Share, len(req.Shares)),
		PendingShares: make([]PendingShare, len(req.PendingShares)),
	}
	for i, sh := range req.Shares {
		allocation.Shares[i] = Share{ParticipantID: sh.ParticipantID, AmountOwed: sh.Amount}
	}
	for i, sh := range req.PendingShares {
		allocation.PendingShares[i] = PendingShare{Email: sh.Email, AmountOwed: sh.Amount}
	}
	return allocation, nil
}

func checkShareAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: share amounts cannot be negative", apperrors.ErrInvalidSplit)
	}
	if !money.HasValidScale(amount) {
		return fmt.Errorf("%w: share amount %s has more than %d decimal places", apperrors.ErrInvalidSplit, amount, money.Scale)
	}
	return nil
}
