package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/ledger"
	"github.com/fkhayef/billsplit/pkg/money"
)

// RecordSettlementRequest records a payment from the caller to another member
type RecordSettlementRequest struct {
	ToUserID int64           `json:"to_user_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"money" swaggertype:"string" example:"25.00"`
	Message  *string         `json:"message,omitempty" validate:"omitempty,max=500"`
	ImageURL *string         `json:"image_url,omitempty" validate:"omitempty,url"`
}

// SettlementResponse represents the response for a settlement
type SettlementResponse struct {
	ID           int64        `json:"id"`
	GroupID      int64        `json:"group_id"`
	FromUserID   int64        `json:"from_user_id"`
	FromUsername string       `json:"from_username,omitempty"`
	ToUserID     int64        `json:"to_user_id"`
	ToUsername   string       `json:"to_username,omitempty"`
	Amount       money.Amount `json:"amount" swaggertype:"string" example:"25.00"`
	Message      *string      `json:"message,omitempty"`
	ImageURL     *string      `json:"image_url,omitempty"`
	SettledAt    string       `json:"settled_at"`
}

// PlanResponse lists every member's balance and the payments that clear them
type PlanResponse struct {
	GroupID      int64                  `json:"group_id"`
	Balances     []*BalanceResponse     `json:"balances"`
	Transactions []*TransactionResponse `json:"transactions"`
	IsSettled    bool                   `json:"is_settled"`
}

// BalanceResponse is one member's net position; positive means they are owed
type BalanceResponse struct {
	UserID  int64        `json:"user_id"`
	Balance money.Amount `json:"balance" swaggertype:"string" example:"-12.50"`
}

// TransactionResponse is one suggested payment
type TransactionResponse struct {
	FromUserID   int64        `json:"from_user_id"`
	FromUserName string       `json:"from_user_name"`
	ToUserID     int64        `json:"to_user_id"`
	ToUserName   string       `json:"to_user_name"`
	Amount       money.Amount `json:"amount" swaggertype:"string" example:"12.50"`
}

// ToResponse converts a Settlement model to a SettlementResponse DTO
func (s *Settlement) ToResponse() *SettlementResponse {
	return &SettlementResponse{
		ID:           s.ID,
		GroupID:      s.GroupID,
		FromUserID:   s.FromUserID,
		FromUsername: s.FromUsername,
		ToUserID:     s.ToUserID,
		ToUsername:   s.ToUsername,
		Amount:       money.NewAmount(s.Amount),
		Message:      s.Message,
		ImageURL:     s.ImageURL,
		SettledAt:    s.SettledAt.UTC().Format(time.RFC3339),
	}
}

func planResponse(p *ledger.Plan) *PlanResponse {
	resp := &PlanResponse{
		GroupID:      p.GroupID,
		Balances:     make([]*BalanceResponse, len(p.Balances)),
		Transactions: make([]*TransactionResponse, len(p.Transactions)),
		IsSettled:    len(p.Transactions) == 0,
	}
	for i, b := range p.Balances {
		resp.Balances[i] = &BalanceResponse{UserID: b.ParticipantID, Balance: money.NewAmount(b.Amount)}
	}
	for i, tx := range p.Transactions {
		resp.Transactions[i] = &TransactionResponse{
			FromUserID:   tx.FromID,
			FromUserName: tx.FromName,
			ToUserID:     tx.ToID,
			ToUserName:   tx.ToName,
			Amount:       money.NewAmount(tx.Amount),
		}
	}
	return resp
}
