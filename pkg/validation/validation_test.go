package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/billsplit/internal/apperrors"
)

type payment struct {
	Email  string          `validate:"required,email"`
	Mode   string          `validate:"required,oneof=EQUAL CUSTOM"`
	Amount decimal.Decimal `validate:"money"`
}

func TestStruct(t *testing.T) {
	valid := payment{Email: "a@b.io", Mode: "EQUAL", Amount: decimal.RequireFromString("12.50")}
	require.NoError(t, Struct(valid))

	tests := []struct {
		name    string
		mutate  func(p *payment)
		message string
	}{
		{"missing email", func(p *payment) { p.Email = "" }, "Email is required"},
		{"bad email", func(p *payment) { p.Email = "nope" }, "Email must be a valid email"},
		{"bad mode", func(p *payment) { p.Mode = "PERCENT" }, "Mode must be one of"},
		{"zero amount", func(p *payment) { p.Amount = decimal.Zero }, "Amount must be a positive amount"},
		{"sub-cent amount", func(p *payment) { p.Amount = decimal.RequireFromString("1.005") }, "Amount must be a positive amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := Struct(p)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
