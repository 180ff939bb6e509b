package money

import (
	"github.com/shopspring/decimal"
)

// Amount is a decimal that always renders with Scale places in JSON, so
// 35 is sent as "35.00".
type Amount decimal.Decimal

// NewAmount wraps d for output.
func NewAmount(d decimal.Decimal) Amount {
	return Amount(d)
}

// Decimal returns the wrapped value.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

// String formats the amount with Scale places.
func (a Amount) String() string {
	return decimal.Decimal(a).StringFixed(Scale)
}

// MarshalJSON encodes the amount as a quoted fixed-point string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts anything decimal.Decimal accepts.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = Amount(d)
	return nil
}
