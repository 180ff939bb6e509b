package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/internal/expense/split"
	"github.com/fkhayef/billsplit/internal/group"
)

// Common errors
var (
	ErrExpenseNotFound = fmt.Errorf("expense %w", apperrors.ErrNotFound)
	ErrPayerNotMember  = fmt.Errorf("%w: payer must be a member of the group", apperrors.ErrValidation)
	ErrAlreadyDeleted  = fmt.Errorf("%w: expense is already deleted", apperrors.ErrValidation)
	ErrNotDeleted      = fmt.Errorf("%w: expense must be deleted before it can be permanently removed", apperrors.ErrValidation)
	ErrCannotDelete    = fmt.Errorf("%w: only the payer or a group admin can delete this expense", apperrors.ErrForbidden)
	ErrCannotPurge     = fmt.Errorf("%w: only the group creator can permanently delete expenses", apperrors.ErrForbidden)
	ErrShareNotMember  = fmt.Errorf("%w: share assigned to a user who is not a group member", apperrors.ErrInvalidSplit)
	ErrShareNotInvited = fmt.Errorf("%w: share assigned to an email with no pending invitation", apperrors.ErrInvalidSplit)
	ErrPayerNotInvited = fmt.Errorf("%w: pending payer has no invitation to this group", apperrors.ErrValidation)
	ErrPayerAmbiguous  = fmt.Errorf("%w: set either paid_by_user_id or paid_by_pending_email, not both", apperrors.ErrValidation)
)

const maxDescriptionLen = 255

// Store is the persistence the expense service depends on
type Store interface {
	Create(ctx context.Context, e *Expense, alloc *split.Allocation) (*Details, error)
	GetByID(ctx context.Context, id int64) (*Expense, error)
	ListByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error)
	GetShares(ctx context.Context, expenseID int64) ([]*Share, error)
	GetPendingShares(ctx context.Context, expenseID int64) ([]*PendingShare, error)
	SoftDelete(ctx context.Context, id, deletedBy int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// Groups resolves group membership
type Groups interface {
	GetByID(ctx context.Context, id int64) (*group.Group, error)
	RequireMember(ctx context.Context, groupID, userID int64) (*group.Member, error)
	Roster(ctx context.Context, groupID int64) ([]*group.Member, []*group.PendingMember, error)
}

// Notifier tells members about new expenses
type Notifier interface {
	NotifyExpenseAdded(ctx context.Context, recipientID int64, payerName, description string, amountOwed decimal.Decimal, expenseID int64) error
}

// Service handles expense business logic
type Service struct {
	repo         Store
	groups       Groups
	notifier     Notifier
	splitFactory *split.Factory
	logger       *slog.Logger
}

// NewService creates a new expense service with dependencies injected
func NewService(repo Store, groups Groups, notifier Notifier, splitFactory *split.Factory, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		groups:       groups,
		notifier:     notifier,
		splitFactory: splitFactory,
		logger:       logger.With(slog.String("component", "expense")),
	}
}

// CreateExpense divides the amount with the requested split mode and stores
// the expense. The payer is the actor unless PaidByUserID names another
// member. A pending payer is recorded as the actor with a note in the
// description.
func (s *Service) CreateExpense(ctx context.Context, actorID int64, req *CreateExpenseRequest) (*Details, error) {
	if req.PaidByUserID != nil && req.PaidByPendingEmail != nil {
		return nil, ErrPayerAmbiguous
	}
	if _, err := s.groups.RequireMember(ctx, req.GroupID, actorID); err != nil {
		return nil, err
	}

	members, pending, err := s.groups.Roster(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	payerID := actorID
	if req.PaidByUserID != nil {
		payerID = *req.PaidByUserID
	}
	payer := findMember(members, payerID)
	if payer == nil {
		return nil, ErrPayerNotMember
	}

	description := strings.TrimSpace(req.Description)
	if req.PaidByPendingEmail != nil {
		invitee := findPending(pending, normalizeEmail(*req.PaidByPendingEmail))
		if invitee == nil {
			return nil, ErrPayerNotInvited
		}
		description = withPendingPayerNote(description, invitee)
	}

	splitReq, err := buildSplitRequest(req, members, pending)
	if err != nil {
		return nil, err
	}

	alloc, err := s.splitFactory.Allocate(splitReq)
	if err != nil {
		if errors.Is(err, apperrors.ErrIntegrityViolation) {
			s.logger.ErrorContext(ctx, "split allocation failed integrity check",
				slog.Int64("group_id", req.GroupID),
				slog.String("amount", req.Amount.String()),
				slog.Any("error", err),
			)
		}
		return nil, err
	}

	details, err := s.repo.Create(ctx, &Expense{
		GroupID:      req.GroupID,
		PayerID:      payerID,
		Description:  description,
		Amount:       req.Amount,
		PendingTotal: alloc.PendingTotal(),
		ImageURL:     req.ImageURL,
		SplitType:    splitReq.Mode,
	}, alloc)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "expense created",
		slog.Int64("expense_id", details.Expense.ID),
		slog.Int64("group_id", req.GroupID),
		slog.Int64("payer_id", payerID),
		slog.String("split_type", string(splitReq.Mode)),
		slog.Int("shares", len(details.Shares)),
		slog.Int("pending_shares", len(details.PendingShares)),
	)
	s.notifyMembers(ctx, details, members, payer)
	return details, nil
}

// buildSplitRequest turns the API request into allocator input. Members are
// used in roster order so the rounding remainder always lands on the same
// person.
func buildSplitRequest(req *CreateExpenseRequest, members []*group.Member, pending []*group.PendingMember) (*split.Request, error) {
	out := &split.Request{Amount: req.Amount, Mode: req.SplitType}

	switch req.SplitType {
	case split.ModeEqual:
		out.Participants = make([]int64, len(members))
		for i, m := range members {
			out.Participants[i] = m.UserID
		}
		out.Pending = make([]string, len(pending))
		for i, p := range pending {
			out.Pending[i] = p.Email
		}
	case split.ModeCustom:
		for _, sh := range req.Shares {
			if findMember(members, sh.ParticipantID) == nil {
				return nil, fmt.Errorf("%w: user %d", ErrShareNotMember, sh.ParticipantID)
			}
		}
		invited := make(map[string]struct{}, len(pending))
		for _, p := range pending {
			invited[p.Email] = struct{}{}
		}
		out.PendingShares = make([]split.PendingShareInput, len(req.PendingShares))
		for i, sh := range req.PendingShares {
			email := normalizeEmail(sh.Email)
			if _, ok := invited[email]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrShareNotInvited, email)
			}
			out.PendingShares[i] = split.PendingShareInput{Email: email, Amount: sh.Amount}
		}
		out.Shares = req.Shares
	}
	return out, nil
}

// GetExpense returns an expense with its shares; members only
func (s *Service) GetExpense(ctx context.Context, actorID, id int64) (*Details, error) {
	e, err := s.visibleExpense(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	shares, pending, err := s.shares(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Details{Expense: e, Shares: shares, PendingShares: pending}, nil
}

// ListGroupExpenses returns one page of a group's expenses, deleted ones
// included and flagged.
func (s *Service) ListGroupExpenses(ctx context.Context, actorID, groupID int64, limit, offset int) ([]*Expense, int, error) {
	if _, err := s.groups.RequireMember(ctx, groupID, actorID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByGroupID(ctx, groupID, limit, offset)
}

// GetExpenseShares returns the member and pending shares of an expense
func (s *Service) GetExpenseShares(ctx context.Context, actorID, id int64) ([]*Share, []*PendingShare, error) {
	if _, err := s.visibleExpense(ctx, actorID, id); err != nil {
		return nil, nil, err
	}
	return s.shares(ctx, id)
}

// DeleteExpense soft-deletes an expense so it no longer affects balances.
// Only the payer or a group admin may do this.
func (s *Service) DeleteExpense(ctx context.Context, actorID, id int64) error {
	e, err := s.getExpense(ctx, id)
	if err != nil {
		return err
	}
	member, err := s.groups.RequireMember(ctx, e.GroupID, actorID)
	if err != nil {
		return err
	}
	if e.IsDeleted() {
		return ErrAlreadyDeleted
	}
	if e.PayerID != actorID && !member.IsAdmin() {
		return ErrCannotDelete
	}

	deleted, err := s.repo.SoftDelete(ctx, id, actorID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrAlreadyDeleted
	}

	s.logger.InfoContext(ctx, "expense deleted",
		slog.Int64("expense_id", id),
		slog.Int64("group_id", e.GroupID),
		slog.Int64("deleted_by", actorID),
	)
	return nil
}

// PermanentlyDeleteExpense removes a soft-deleted expense for good. Only the
// group creator may do this.
func (s *Service) PermanentlyDeleteExpense(ctx context.Context, actorID, id int64) error {
	e, err := s.getExpense(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.groups.RequireMember(ctx, e.GroupID, actorID); err != nil {
		return err
	}
	if !e.IsDeleted() {
		return ErrNotDeleted
	}

	g, err := s.groups.GetByID(ctx, e.GroupID)
	if err != nil {
		return err
	}
	if g.CreatedBy != actorID {
		return ErrCannotPurge
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WarnContext(ctx, "expense permanently deleted",
		slog.Int64("expense_id", id),
		slog.Int64("group_id", e.GroupID),
		slog.Int64("actor_id", actorID),
	)
	return nil
}

func (s *Service) getExpense(ctx context.Context, id int64) (*Expense, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrExpenseNotFound
	}
	return e, nil
}

func (s *Service) visibleExpense(ctx context.Context, actorID, id int64) (*Expense, error) {
	e, err := s.getExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.groups.RequireMember(ctx, e.GroupID, actorID); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) shares(ctx context.Context, id int64) ([]*Share, []*PendingShare, error) {
	shares, err := s.repo.GetShares(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	pending, err := s.repo.GetPendingShares(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return shares, pending, nil
}

// notifyMembers tells every member except the payer about the new expense.
// Failures are logged and never undo the expense.
func (s *Service) notifyMembers(ctx context.Context, d *Details, members []*group.Member, payer *group.Member) {
	owed := make(map[int64]decimal.Decimal, len(d.Shares))
	for _, sh := range d.Shares {
		owed[sh.UserID] = sh.AmountOwed
	}

	for _, m := range members {
		if m.UserID == payer.UserID {
			continue
		}
		if err := s.notifier.NotifyExpenseAdded(ctx, m.UserID, payer.Username, d.Expense.Description, owed[m.UserID], d.Expense.ID); err != nil {
			s.logger.WarnContext(ctx, "notification failed",
				slog.String("kind", "expense_added"),
				slog.Int64("recipient_id", m.UserID),
				slog.Any("error", err),
			)
		}
	}
}

func findMember(members []*group.Member, userID int64) *group.Member {
	for _, m := range members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

func findPending(pending []*group.PendingMember, email string) *group.PendingMember {
	for _, p := range pending {
		if p.Email == email {
			return p
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// withPendingPayerNote appends who actually paid, shortening the description
// so the result still fits the column.
func withPendingPayerNote(description string, p *group.PendingMember) string {
	name := p.Name
	if name == "" {
		name = p.Email
	}
	note := []rune(fmt.Sprintf(" (paid by %s, pending)", name))
	base := []rune(description)
	if room := max(maxDescriptionLen-len(note), 0); len(base) > room {
		base = base[:room]
	}
	out := append(base, note...)
	if len(out) > maxDescriptionLen {
		out = out[:maxDescriptionLen]
	}
	return string(out)
}
