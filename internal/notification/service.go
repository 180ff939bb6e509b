package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
)

// Common errors
var (
	ErrNotificationNotFound = fmt.Errorf("notification %w", apperrors.ErrNotFound)
	ErrNotRecipient         = fmt.Errorf("%w: not the recipient of this notification", apperrors.ErrForbidden)
)

// Store is the persistence the notification service depends on
type Store interface {
	Create(ctx context.Context, in NewNotification) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// Service handles notification business logic
type Service struct {
	repo   Store
	logger *slog.Logger
}

// NewService creates a new notification service
func NewService(repo Store, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With(slog.String("component", "notification"))}
}

// ListByRecipientID retrieves one page of a user's notifications
func (s *Service) ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error) {
	return s.repo.ListByRecipientID(ctx, recipientID, limit, offset, unreadOnly)
}

// MarkAsRead marks a notification as read; only its recipient may do so
func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotificationNotFound
	}
	if n.RecipientID != userID {
		return ErrNotRecipient
	}
	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *Service) send(ctx context.Context, in NewNotification) error {
	n, err := s.repo.Create(ctx, in)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "notification sent",
		slog.Int64("notification_id", n.ID),
		slog.Int64("recipient_id", in.RecipientID),
		slog.String("type", string(in.Type)),
	)
	return nil
}

// NotifyGroupInvite tells a registered user they were invited to a group
func (s *Service) NotifyGroupInvite(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	return s.send(ctx, NewNotification{
		RecipientID: recipientID,
		Type:        TypeGroupInvite,
		Message:     fmt.Sprintf("You have been invited to join group: %s", groupName),
		EntityType:  EntityGroup,
		EntityID:    groupID,
	})
}

// NotifyInvitationRejected tells the inviter their invitation was declined
func (s *Service) NotifyInvitationRejected(ctx context.Context, recipientID int64, rejecterName, groupName string, groupID int64) error {
	return s.send(ctx, NewNotification{
		RecipientID: recipientID,
		Type:        TypeInvitationRejected,
		Message:     fmt.Sprintf("%s declined your invitation to %s", rejecterName, groupName),
		EntityType:  EntityGroup,
		EntityID:    groupID,
	})
}

// NotifyExpenseAdded tells a participant they owe a share of a new expense
func (s *Service) NotifyExpenseAdded(ctx context.Context, recipientID int64, payerName, description string, amountOwed decimal.Decimal, expenseID int64) error {
	return s.send(ctx, NewNotification{
		RecipientID: recipientID,
		Type:        TypeExpenseAdded,
		Message:     fmt.Sprintf("%s added %q. Your share is %s", payerName, description, amountOwed.StringFixed(2)),
		EntityType:  EntityExpense,
		EntityID:    expenseID,
	})
}

// NotifySettlementRecorded tells the creditor a payment was recorded
func (s *Service) NotifySettlementRecorded(ctx context.Context, recipientID int64, payerName string, amount decimal.Decimal, settlementID int64) error {
	return s.send(ctx, NewNotification{
		RecipientID: recipientID,
		Type:        TypeSettlementRecorded,
		Message:     fmt.Sprintf("%s paid you %s", payerName, amount.StringFixed(2)),
		EntityType:  EntitySettlement,
		EntityID:    settlementID,
	})
}

// NotifySettlementSuggested tells one side of a suggested payment what to do.
// When pays is true the recipient owes counterparty, otherwise counterparty
// owes the recipient.
func (s *Service) NotifySettlementSuggested(ctx context.Context, recipientID int64, counterparty string, amount decimal.Decimal, pays bool, groupName string, groupID int64) error {
	msg := fmt.Sprintf("%s: %s owes you %s", groupName, counterparty, amount.StringFixed(2))
	if pays {
		msg = fmt.Sprintf("%s: you owe %s %s", groupName, counterparty, amount.StringFixed(2))
	}
	return s.send(ctx, NewNotification{
		RecipientID: recipientID,
		Type:        TypeSettlementSuggested,
		Message:     msg,
		EntityType:  EntityGroup,
		EntityID:    groupID,
	})
}
