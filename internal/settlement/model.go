package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is a recorded payment from a debtor to a creditor inside a
// group. Recorded settlements shift both balances toward zero.
type Settlement struct {
	ID         int64           `json:"id"`
	GroupID    int64           `json:"group_id"`
	FromUserID int64           `json:"from_user_id"` // debtor who paid
	ToUserID   int64           `json:"to_user_id"`   // creditor who received
	Amount     decimal.Decimal `json:"amount"`
	Message    *string         `json:"message,omitempty"`
	ImageURL   *string         `json:"image_url,omitempty"`
	SettledAt  time.Time       `json:"settled_at"`

	// Populated via JOIN
	FromUsername string `json:"from_username,omitempty"`
	ToUsername   string `json:"to_username,omitempty"`
}
