package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/pkg/money"
)

// Mode defines how an expense amount is divided
type Mode string

const (
	ModeEqual  Mode = "EQUAL"
	ModeCustom Mode = "CUSTOM"
)

// ShareInput is a caller-supplied amount for a group member (CUSTOM mode)
type ShareInput struct {
	ParticipantID int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount_owed" swaggertype:"string" example:"10.00"`
}

// PendingShareInput is a caller-supplied amount for a pending member (CUSTOM mode)
type PendingShareInput struct {
	Email  string          `json:"email"`
	Amount decimal.Decimal `json:"amount_owed" swaggertype:"string" example:"10.00"`
}

// Request carries everything a strategy needs to divide one expense.
// Participants and Pending are ordered; the order decides who absorbs the
// rounding remainder in EQUAL mode.
type Request struct {
	Amount        decimal.Decimal
	Mode          Mode
	Participants  []int64
	Pending       []string
	Shares        []ShareInput
	PendingShares []PendingShareInput
}

// Share is the amount a group member owes for an expense
type Share struct {
	ParticipantID int64           `json:"user_id"`
	AmountOwed    decimal.Decimal `json:"amount_owed"`
}

// PendingShare is the amount a pending member owes. Pending shares are not
// persisted as share rows; the caller stores or displays them separately.
type PendingShare struct {
	Email      string          `json:"email"`
	AmountOwed decimal.Decimal `json:"amount_owed"`
}

// Allocation is the result of splitting one expense
type Allocation struct {
	Shares        []Share
	PendingShares []PendingShare
}

// PendingTotal returns the sum of all pending shares
func (a *Allocation) PendingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.PendingShares {
		total = total.Add(p.AmountOwed)
	}
	return total
}

// Total returns the sum of member and pending shares
func (a *Allocation) Total() decimal.Decimal {
	total := a.PendingTotal()
	for _, s := range a.Shares {
		total = total.Add(s.AmountOwed)
	}
	return total
}

// Strategy is the interface that all split strategies must implement
type Strategy interface {
	// Calculate computes the shares for every participant
	Calculate(req *Request) (*Allocation, error)

	// Mode returns the mode identifier for this strategy
	Mode() Mode

	// Validate checks if the request is valid for this strategy
	Validate(req *Request) error
}

// Factory creates split strategies based on the requested mode
type Factory struct{}

// NewSplitStrategyFactory creates a new factory instance
func NewSplitStrategyFactory() *Factory {
	return &Factory{}
}

// Create returns the strategy implementation for the mode
func (f *Factory) Create(mode Mode) (Strategy, error) {
	switch mode {
	case ModeEqual:
		return &EqualStrategy{}, nil
	case ModeCustom:
		return &CustomStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown split mode %q", apperrors.ErrValidation, mode)
	}
}

// CreateFromString creates a strategy from a string mode (useful for API requests)
func (f *Factory) CreateFromString(mode string) (Strategy, error) {
	return f.Create(Mode(mode))
}

// Allocate splits req.Amount with the strategy for req.Mode and verifies
// that the shares add back up to the amount to the cent.
func (f *Factory) Allocate(req *Request) (*Allocation, error) {
	strategy, err := f.Create(req.Mode)
	if err != nil {
		return nil, err
	}

	allocation, err := strategy.Calculate(req)
	if err != nil {
		return nil, err
	}

	if err := verify(req.Amount, allocation); err != nil {
		return nil, err
	}
	return allocation, nil
}

// Allocate is a convenience wrapper around a zero-value Factory.
func Allocate(req *Request) (*Allocation, error) {
	return NewSplitStrategyFactory().Allocate(req)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", apperrors.ErrValidation)
	}
	if !money.HasValidScale(amount) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", apperrors.ErrValidation, amount, money.Scale)
	}
	return nil
}

// verify checks that no share is negative and that shares add up to amount.
func verify(amount decimal.Decimal, a *Allocation) error {
	if total := a.Total(); !total.Equal(amount) {
		return fmt.Errorf("%w: shares total %s, expense amount %s", apperrors.ErrIntegrityViolation, total, amount)
	}
	for _, s := range a.Shares {
		if s.AmountOwed.IsNegative() {
			return fmt.Errorf("%w: negative share %s for participant %d", apperrors.ErrIntegrityViolation, s.AmountOwed, s.ParticipantID)
		}
	}
	for _, p := range a.PendingShares {
		if p.AmountOwed.IsNegative() {
			return fmt.Errorf("%w: negative share %s for pending member %s", apperrors.ErrIntegrityViolation, p.AmountOwed, p.Email)
		}
	}
	return nil
}

func checkDuplicates(ids []int64, emails []string) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: participant %d listed more than once", apperrors.ErrInvalidSplit, id)
		}
		seen[id] = struct{}{}
	}
	seenEmail := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if _, ok := seenEmail[e]; ok {
			return fmt.Errorf("%w: pending member %s listed more than once", apperrors.ErrInvalidSplit, e)
		}
		seenEmail[e] = struct{}{}
	}
	return nil
}
