package notification

import "time"

// Type classifies a notification
type Type string

const (
	TypeGroupInvite         Type = "GROUP_INVITE"
	TypeInvitationRejected  Type = "INVITATION_REJECTED"
	TypeExpenseAdded        Type = "EXPENSE_ADDED"
	TypeSettlementRecorded  Type = "SETTLEMENT_RECORDED"
	TypeSettlementSuggested Type = "SETTLEMENT_SUGGESTED"
)

// EntityType names the kind of record a notification points at
type EntityType string

const (
	EntityGroup      EntityType = "GROUP"
	EntityExpense    EntityType = "EXPENSE"
	EntitySettlement EntityType = "SETTLEMENT"
)

// Notification is an in-app message for one user
type Notification struct {
	ID                int64       `json:"id"`
	RecipientID       int64       `json:"recipient_id"`
	Type              Type        `json:"type"`
	Message           string      `json:"message"`
	IsRead            bool        `json:"is_read"`
	RelatedEntityType *EntityType `json:"related_entity_type,omitempty"`
	RelatedEntityID   *int64      `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// NewNotification is the input for creating a notification
type NewNotification struct {
	RecipientID int64
	Type        Type
	Message     string
	EntityType  EntityType
	EntityID    int64
}
