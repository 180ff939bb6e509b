package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/internal/group"
	"github.com/fkhayef/billsplit/internal/ledger"
	"github.com/fkhayef/billsplit/pkg/money"
)

// maxPlanGroups caps how many groups one PlanGroups call may settle
const maxPlanGroups = 50

// Common errors
var (
	ErrSettlementNotFound = fmt.Errorf("settlement %w", apperrors.ErrNotFound)
	ErrCannotSettleSelf   = fmt.Errorf("%w: cannot record a settlement with yourself", apperrors.ErrValidation)
	ErrRecipientNotMember = fmt.Errorf("%w: recipient must be a member of the group", apperrors.ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive with at most 2 decimal places", apperrors.ErrValidation)
	ErrTooManyGroups      = fmt.Errorf("%w: between 1 and %d groups may be planned at once", apperrors.ErrValidation, maxPlanGroups)
)

// Store is the persistence the settlement service depends on
type Store interface {
	Create(ctx context.Context, s *Settlement) (*Settlement, error)
	GetByID(ctx context.Context, id int64) (*Settlement, error)
	ListByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Settlement, int, error)
	Delete(ctx context.Context, id int64) error
	Snapshot(ctx context.Context, groupID int64) (*ledger.Snapshot, error)
}

// Groups resolves group membership
type Groups interface {
	GetByID(ctx context.Context, id int64) (*group.Group, error)
	RequireMember(ctx context.Context, groupID, userID int64) (*group.Member, error)
	RequireAdmin(ctx context.Context, groupID, userID int64) (*group.Member, error)
}

// Notifier tells members about recorded and suggested payments
type Notifier interface {
	NotifySettlementRecorded(ctx context.Context, recipientID int64, payerName string, amount decimal.Decimal, settlementID int64) error
	NotifySettlementSuggested(ctx context.Context, recipientID int64, counterparty string, amount decimal.Decimal, pays bool, groupName string, groupID int64) error
}

// Recorder receives ledger metrics
type Recorder interface {
	ObservePlan(transactions int)
	IntegrityViolation(operation string)
}

// Service handles settlement business logic
type Service struct {
	repo        Store
	groups      Groups
	notifier    Notifier
	metrics     Recorder
	concurrency int
	logger      *slog.Logger
}

// NewService creates a new settlement service. concurrency bounds how many
// group plans PlanGroups computes at once.
func NewService(repo Store, groups Groups, notifier Notifier, metrics Recorder, concurrency int, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		groups:      groups,
		notifier:    notifier,
		metrics:     metrics,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "settlement")),
	}
}

// CalculateSettlements returns the group's balances and the shortest list of
// payments that clears them. Nothing is persisted.
func (s *Service) CalculateSettlements(ctx context.Context, actorID, groupID int64) (*ledger.Plan, error) {
	if _, err := s.groups.RequireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	snap, err := s.repo.Snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}

	plan, err := ledger.Settle(*snap)
	if err != nil {
		s.integrityFailure(ctx, "calculate_settlements", groupID, err)
		return nil, err
	}

	s.metrics.ObservePlan(len(plan.Transactions))
	s.logger.DebugContext(ctx, "settlement plan computed",
		slog.Int64("group_id", groupID),
		slog.Int("participants", len(plan.Balances)),
		slog.Int("transactions", len(plan.Transactions)),
	)
	return plan, nil
}

// PlanGroups computes plans for several groups in parallel. The actor must
// belong to every group. Plans are returned in the order requested.
func (s *Service) PlanGroups(ctx context.Context, actorID int64, groupIDs []int64) ([]*ledger.Plan, error) {
	if len(groupIDs) == 0 || len(groupIDs) > maxPlanGroups {
		return nil, ErrTooManyGroups
	}

	snapshots := make([]ledger.Snapshot, len(groupIDs))
	for i, groupID := range groupIDs {
		if _, err := s.groups.RequireMember(ctx, groupID, actorID); err != nil {
			return nil, err
		}
		snap, err := s.repo.Snapshot(ctx, groupID)
		if err != nil {
			return nil, err
		}
		snapshots[i] = *snap
	}

	plans, err := ledger.SettleGroups(ctx, snapshots, s.concurrency)
	if err != nil {
		s.integrityFailure(ctx, "plan_groups", 0, err)
		return nil, err
	}

	for _, p := range plans {
		s.metrics.ObservePlan(len(p.Transactions))
	}
	return plans, nil
}

// ProcessSettlements computes the plan and tells both sides of every
// suggested payment what to do.
func (s *Service) ProcessSettlements(ctx context.Context, actorID, groupID int64) (*ledger.Plan, error) {
	plan, err := s.CalculateSettlements(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}

	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	for _, t := range plan.Transactions {
		s.notify(ctx, t.FromID, func() error {
			return s.notifier.NotifySettlementSuggested(ctx, t.FromID, t.ToName, t.Amount, true, g.Name, g.ID)
		})
		s.notify(ctx, t.ToID, func() error {
			return s.notifier.NotifySettlementSuggested(ctx, t.ToID, t.FromName, t.Amount, false, g.Name, g.ID)
		})
	}

	s.logger.InfoContext(ctx, "settlement suggestions sent",
		slog.Int64("group_id", groupID),
		slog.Int64("actor_id", actorID),
		slog.Int("transactions", len(plan.Transactions)),
	)
	return plan, nil
}

// RecordSettlement records that the actor paid another member
func (s *Service) RecordSettlement(ctx context.Context, actorID, groupID int64, req *RecordSettlementRequest) (*Settlement, error) {
	payer, err := s.groups.RequireMember(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if req.ToUserID == actorID {
		return nil, ErrCannotSettleSelf
	}
	if !req.Amount.IsPositive() || !money.HasValidScale(req.Amount) {
		return nil, ErrInvalidAmount
	}
	if _, err := s.groups.RequireMember(ctx, groupID, req.ToUserID); err != nil {
		if errors.Is(err, group.ErrNotMember) {
			return nil, ErrRecipientNotMember
		}
		return nil, err
	}

	settlement, err := s.repo.Create(ctx, &Settlement{
		GroupID:    groupID,
		FromUserID: actorID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		Message:    req.Message,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "settlement recorded",
		slog.Int64("settlement_id", settlement.ID),
		slog.Int64("group_id", groupID),
		slog.Int64("from_user_id", actorID),
		slog.Int64("to_user_id", req.ToUserID),
		slog.String("amount", req.Amount.StringFixed(money.Scale)),
	)
	s.notify(ctx, req.ToUserID, func() error {
		return s.notifier.NotifySettlementRecorded(ctx, req.ToUserID, payer.Username, req.Amount, settlement.ID)
	})
	return settlement, nil
}

// GetSettlementHistory returns one page of a group's settlements, newest first
func (s *Service) GetSettlementHistory(ctx context.Context, actorID, groupID int64, limit, offset int) ([]*Settlement, int, error) {
	if _, err := s.groups.RequireMember(ctx, groupID, actorID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByGroupID(ctx, groupID, limit, offset)
}

// DeleteSettlement removes a recorded settlement; group admins only
func (s *Service) DeleteSettlement(ctx context.Context, actorID, groupID, settlementID int64) error {
	if _, err := s.groups.RequireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}

	settlement, err := s.repo.GetByID(ctx, settlementID)
	if err != nil {
		return err
	}
	if settlement == nil || settlement.GroupID != groupID {
		return ErrSettlementNotFound
	}

	if err := s.repo.Delete(ctx, settlementID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "settlement deleted",
		slog.Int64("settlement_id", settlementID),
		slog.Int64("group_id", groupID),
		slog.Int64("actor_id", actorID),
	)
	return nil
}

func (s *Service) integrityFailure(ctx context.Context, operation string, groupID int64, err error) {
	if !errors.Is(err, apperrors.ErrIntegrityViolation) {
		return
	}
	s.metrics.IntegrityViolation(operation)
	s.logger.ErrorContext(ctx, "ledger integrity violation",
		slog.String("operation", operation),
		slog.Int64("group_id", groupID),
		slog.Any("error", err),
	)
}

// notify runs fn and logs failures; notifications never fail the caller.
func (s *Service) notify(ctx context.Context, recipientID int64, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.Int64("recipient_id", recipientID),
			slog.Any("error", err),
		)
	}
}
