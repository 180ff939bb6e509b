package split

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/billsplit/internal/apperrors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFactory_Create(t *testing.T) {
	f := NewSplitStrategyFactory()

	s, err := f.Create(ModeEqual)
	require.NoError(t, err)
	assert.Equal(t, ModeEqual, s.Mode())

	s, err = f.CreateFromString("CUSTOM")
	require.NoError(t, err)
	assert.Equal(t, ModeCustom, s.Mode())

	_, err = f.Create("PERCENTAGE")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAllocate_EqualThreeWays(t *testing.T) {
	alloc, err := Allocate(&Request{
		Amount:       dec("100.00"),
		Mode:         ModeEqual,
		Participants: []int64{1, 2, 3},
	})
	require.NoError(t, err)
	require.Len(t, alloc.Shares, 3)

	assert.True(t, alloc.Shares[0].AmountOwed.Equal(dec("33.33")))
	assert.True(t, alloc.Shares[1].AmountOwed.Equal(dec("33.33")))
	assert.True(t, alloc.Shares[2].AmountOwed.Equal(dec("33.34")))
	assert.Equal(t, int64(3), alloc.Shares[2].ParticipantID)
	assert.True(t, alloc.Total().Equal(dec("100.00")))
}

func TestAllocate_EqualWithPendingMembers(t *testing.T) {
	tests := []struct {
		name         string
		participants []int64
		pending      []string
		wantShares   []string
		wantPending  []string
	}{
		{
			name:         "last real member absorbs remainder",
			participants: []int64{1, 2},
			pending:      []string{"a@x.io"},
			wantShares:   []string{"3.33", "3.34"},
			wantPending:  []string{"3.33"},
		},
		{
			name:        "pending only",
			pending:     []string{"a@x.io", "b@x.io", "c@x.io"},
			wantPending: []string{"3.33", "3.33", "3.34"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, err := Allocate(&Request{
				Amount:       dec("10.00"),
				Mode:         ModeEqual,
				Participants: tt.participants,
				Pending:      tt.pending,
			})
			require.NoError(t, err)
			require.Len(t, alloc.Shares, len(tt.wantShares))
			require.Len(t, alloc.PendingShares, len(tt.wantPending))
			for i, want := range tt.wantShares {
				assert.True(t, alloc.Shares[i].AmountOwed.Equal(dec(want)), "share %d = %s", i, alloc.Shares[i].AmountOwed)
			}
			for i, want := range tt.wantPending {
				assert.True(t, alloc.PendingShares[i].AmountOwed.Equal(dec(want)), "pending %d = %s", i, alloc.PendingShares[i].AmountOwed)
			}
			assert.True(t, alloc.Total().Equal(dec("10.00")))
		})
	}
}

func TestAllocate_EqualZeroParticipants(t *testing.T) {
	_, err := Allocate(&Request{Amount: dec("10.00"), Mode: ModeEqual})
	assert.ErrorIs(t, err, apperrors.ErrZeroParticipants)
}

func TestAllocate_EqualExactSum(t *testing.T) {
	amounts := []string{"1.00", "1.01", "7.77", "10.00", "33.33", "99.99", "100.00", "1234.56", "9999.99"}
	for _, amount := range amounts {
		for n := 1; n <= 12; n++ {
			t.Run(fmt.Sprintf("%s/%d", amount, n), func(t *testing.T) {
				ids := make([]int64, n)
				for i := range ids {
					ids[i] = int64(i + 1)
				}
				alloc, err := Allocate(&Request{Amount: dec(amount), Mode: ModeEqual, Participants: ids})
				require.NoError(t, err)
				assert.True(t, alloc.Total().Equal(dec(amount)))
				for _, s := range alloc.Shares {
					assert.False(t, s.AmountOwed.IsNegative())
					assert.True(t, s.AmountOwed.Equal(s.AmountOwed.Round(2)))
				}
			})
		}
	}
}

func TestAllocate_EqualNegativeRemainder(t *testing.T) {
	// 0.05 / 7 rounds to 0.01 each, leaving -0.02 for the last member.
	ids := []int64{1, 2, 3, 4, 5, 6, 7}
	_, err := Allocate(&Request{Amount: dec("0.05"), Mode: ModeEqual, Participants: ids})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSplit)
	assert.NotErrorIs(t, err, apperrors.ErrIntegrityViolation)

	_, err = Allocate(&Request{Amount: dec("0.05"), Mode: ModeEqual, Participants: ids[:4], Pending: []string{"x@example.com", "y@example.com", "z@example.com"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSplit)
}

func TestVerify_RejectsNegativeShare(t *testing.T) {
	alloc := &Allocation{Shares: []Share{
		{ParticipantID: 1, AmountOwed: dec("0.07")},
		{ParticipantID: 2, AmountOwed: dec("-0.02")},
	}}
	assert.ErrorIs(t, verify(dec("0.05"), alloc), apperrors.ErrIntegrityViolation)
}

func TestAllocate_EqualRejectsDuplicates(t *testing.T) {
	_, err := Allocate(&Request{Amount: dec("10.00"), Mode: ModeEqual, Participants: []int64{1, 1}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSplit)
}

func TestAllocate_InvalidAmount(t *testing.T) {
	for _, amount := range []string{"0", "-5.00", "1.001"} {
		_, err := Allocate(&Request{Amount: dec(amount), Mode: ModeEqual, Participants: []int64{1}})
		assert.ErrorIs(t, err, apperrors.ErrValidation, amount)
	}
}

func TestAllocate_Custom(t *testing.T) {
	tests := []struct {
		name    string
		shares  []ShareInput
		pending []PendingShareInput
		wantErr error
	}{
		{
			name:   "exact sum",
			shares: []ShareInput{{1, dec("60.00")}, {2, dec("40.00")}},
		},
		{
			name:    "with pending",
			shares:  []ShareInput{{1, dec("70.00")}},
			pending: []PendingShareInput{{"p@x.io", dec("30.00")}},
		},
		{
			name:    "one cent short",
			shares:  []ShareInput{{1, dec("50.00")}, {2, dec("49.99")}},
			wantErr: apperrors.ErrInvalidSplit,
		},
		{
			name:    "no shares",
			wantErr: apperrors.ErrInvalidSplit,
		},
		{
			name:    "negative share",
			shares:  []ShareInput{{1, dec("110.00")}, {2, dec("-10.00")}},
			wantErr: apperrors.ErrInvalidSplit,
		},
		{
			name:    "too many decimals",
			shares:  []ShareInput{{1, dec("50.005")}, {2, dec("49.995")}},
			wantErr: apperrors.ErrInvalidSplit,
		},
		{
			name:    "duplicate participant",
			shares:  []ShareInput{{1, dec("50.00")}, {1, dec("50.00")}},
			wantErr: apperrors.ErrInvalidSplit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, err := Allocate(&Request{
				Amount:        dec("100.00"),
				Mode:          ModeCustom,
				Shares:        tt.shares,
				PendingShares: tt.pending,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, alloc.Total().Equal(dec("100.00")))
			assert.Len(t, alloc.Shares, len(tt.shares))
			assert.Len(t, alloc.PendingShares, len(tt.pending))
		})
	}
}

func TestAllocation_PendingTotal(t *testing.T) {
	alloc := &Allocation{
		Shares:        []Share{{1, dec("5.00")}},
		PendingShares: []PendingShare{{"a@x.io", dec("2.50")}, {"b@x.io", dec("2.50")}},
	}
	assert.True(t, alloc.PendingTotal().Equal(dec("5.00")))
	assert.True(t, alloc.Total().Equal(dec("10.00")))
}
