package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/pkg/money"
)

// =============================================================================
// EQUAL SPLIT STRATEGY
// Divides the expense evenly across members and pending members. The last
// member in input order absorbs the rounding remainder.
// =============================================================================

// perPersonPrecision is the number of places the raw quotient keeps before
// it is rounded to cents.
const perPersonPrecision = 4

// EqualStrategy implements the Strategy interface for equal splits
type EqualStrategy struct{}

// Mode returns the split mode identifier
func (s *EqualStrategy) Mode() Mode {
	return ModeEqual
}

// Validate checks if the request is valid for an equal split
func (s *EqualStrategy) Validate(req *Request) error {
	if err := validateAmount(req.Amount); err != nil {
		return err
	}
	if len(req.Participants)+len(req.Pending) == 0 {
		return apperrors.ErrZeroParticipants
	}
	return checkDuplicates(req.Participants, req.Pending)
}

// Calculate divides the amount equally. Members (and pending members when
// there are no members) all receive the same rounded share except the last
// one, who receives that share plus whatever the rounding left over.
func (s *EqualStrategy) Calculate(req *Request) (*Allocation, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	count := decimal.NewFromInt(int64(len(req.Participants) + len(req.Pending)))
	perPerson := req.Amount.DivRound(count, perPersonPrecision)
	rounded := money.Round(perPerson)
	roundingError := req.Amount.Sub(rounded.Mul(count))
	if rounded.Add(roundingError).IsNegative() {
		return nil, fmt.Errorf("%w: %s is too small to split %s ways", apperrors.ErrInvalidSplit, req.Amount, count)
	}

	allocation := &Allocation{
		Shares:        make([]Share, len(req.Participants)),
		PendingShares: make([]PendingShare, len(req.Pending)),
	}
	for i, id := range req.Participants {
		allocation.Shares[i] = Share{ParticipantID: id, AmountOwed: rounded}
	}
	for i, email := range req.Pending {
		allocation.PendingShares[i] = PendingShare{Email: email, AmountOwed: rounded}
	}

	switch {
	case len(allocation.Shares) > 0:
		last := &allocation.Shares[len(allocation.Shares)-1]
		last.AmountOwed = last.AmountOwed.Add(roundingError)
	case len(allocation.PendingShares) > 0:
		last := &allocation.PendingShares[len(allocation.PendingShares)-1]
		last.AmountOwed = last.AmountOwed.Add(roundingError)
	default:
		return nil, fmt.Errorf("%w: no participant to absorb remainder", apperrors.ErrZeroParticipants)
	}

	return allocation, nil
}
