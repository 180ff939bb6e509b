package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/expense/split"
	"github.com/fkhayef/billsplit/pkg/money"
)

// CreateExpenseRequest represents the request to create an expense.
// EQUAL splits cover every member and pending member of the group; CUSTOM
// splits use Shares and PendingShares exactly as given. When a pending
// member paid, the actor is recorded as payer and the description says so.
type CreateExpenseRequest struct {
	GroupID            int64                     `json:"group_id" validate:"required"`
	Description        string                    `json:"description" validate:"required,min=1,max=255"`
	Amount             decimal.Decimal           `json:"amount" validate:"money" swaggertype:"string" example:"30.00"`
	ImageURL           *string                   `json:"image_url,omitempty" validate:"omitempty,url"`
	SplitType          split.Mode                `json:"split_type" validate:"required,oneof=EQUAL CUSTOM"`
	PaidByUserID       *int64                    `json:"paid_by_user_id,omitempty"`
	PaidByPendingEmail *string                   `json:"paid_by_pending_email,omitempty" validate:"omitempty,email,excluded_with=PaidByUserID"`
	Shares             []split.ShareInput        `json:"shares,omitempty"`
	PendingShares      []split.PendingShareInput `json:"pending_shares,omitempty"`
}

// ExpenseResponse represents the response for an expense
type ExpenseResponse struct {
	ID            int64                   `json:"id"`
	GroupID       int64                   `json:"group_id"`
	PayerID       int64                   `json:"payer_id"`
	PayerUsername string                  `json:"payer_username,omitempty"`
	Description   string                  `json:"description"`
	Amount        money.Amount            `json:"amount" swaggertype:"string" example:"30.00"`
	PendingTotal  money.Amount            `json:"pending_total" swaggertype:"string" example:"0.00"`
	ImageURL      *string                 `json:"image_url,omitempty"`
	SplitType     split.Mode              `json:"split_type"`
	CreatedAt     string                  `json:"created_at"`
	IsDeleted     bool                    `json:"is_deleted"`
	DeletedAt     *string                 `json:"deleted_at,omitempty"`
	DeletedBy     *int64                  `json:"deleted_by,omitempty"`
	Shares        []*ShareResponse        `json:"shares,omitempty"`
	PendingShares []*PendingShareResponse `json:"pending_shares,omitempty"`
}

// ShareResponse represents one member's share
type ShareResponse struct {
	UserID     int64        `json:"user_id"`
	Username   string       `json:"username,omitempty"`
	AmountOwed money.Amount `json:"amount_owed" swaggertype:"string" example:"10.00"`
}

// PendingShareResponse represents one pending member's share
type PendingShareResponse struct {
	Email      string       `json:"email"`
	AmountOwed money.Amount `json:"amount_owed" swaggertype:"string" example:"10.00"`
}

// SharesResponse lists the shares of one expense
type SharesResponse struct {
	Shares        []*ShareResponse        `json:"shares"`
	PendingShares []*PendingShareResponse `json:"pending_shares"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	resp := &ExpenseResponse{
		ID:            e.ID,
		GroupID:       e.GroupID,
		PayerID:       e.PayerID,
		PayerUsername: e.PayerUsername,
		Description:   e.Description,
		Amount:        money.NewAmount(e.Amount),
		PendingTotal:  money.NewAmount(e.PendingTotal),
		ImageURL:      e.ImageURL,
		SplitType:     e.SplitType,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
		IsDeleted:     e.IsDeleted(),
		DeletedBy:     e.DeletedBy,
	}
	if e.DeletedAt != nil {
		ts := e.DeletedAt.UTC().Format(time.RFC3339)
		resp.DeletedAt = &ts
	}
	return resp
}

// ToResponse converts the expense and its shares into one response
func (d *Details) ToResponse() *ExpenseResponse {
	resp := d.Expense.ToResponse()
	shares := sharesResponse(d.Shares, d.PendingShares)
	resp.Shares = shares.Shares
	resp.PendingShares = shares.PendingShares
	return resp
}

func sharesResponse(shares []*Share, pending []*PendingShare) *SharesResponse {
	resp := &SharesResponse{
		Shares:        make([]*ShareResponse, len(shares)),
		PendingShares: make([]*PendingShareResponse, len(pending)),
	}
	for i, s := range shares {
		resp.Shares[i] = &ShareResponse{UserID: s.UserID, Username: s.Username, AmountOwed: money.NewAmount(s.AmountOwed)}
	}
	for i, p := range pending {
		resp.PendingShares[i] = &PendingShareResponse{Email: p.Email, AmountOwed: money.NewAmount(p.AmountOwed)}
	}
	return resp
}
