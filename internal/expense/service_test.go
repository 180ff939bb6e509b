package expense

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/internal/expense/split"
	"github.com/fkhayef/billsplit/internal/group"
	"github.com/fkhayef/billsplit/pkg/logging"
)

var ctx = context.Background()

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, e *Expense, alloc *split.Allocation) (*Details, error) {
	args := m.Called(ctx, e, alloc)
	if fn, ok := args.Get(0).(func(*Expense, *split.Allocation) *Details); ok {
		return fn(e, alloc), args.Error(1)
	}
	d, _ := args.Get(0).(*Details)
	return d, args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id int64) (*Expense, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*Expense)
	return e, args.Error(1)
}

func (m *mockStore) ListByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error) {
	args := m.Called(ctx, groupID, limit, offset)
	es, _ := args.Get(0).([]*Expense)
	return es, args.Int(1), args.Error(2)
}

func (m *mockStore) GetShares(ctx context.Context, expenseID int64) ([]*Share, error) {
	args := m.Called(ctx, expenseID)
	s, _ := args.Get(0).([]*Share)
	return s, args.Error(1)
}

func (m *mockStore) GetPendingShares(ctx context.Context, expenseID int64) ([]*PendingShare, error) {
	args := m.Called(ctx, expenseID)
	s, _ := args.Get(0).([]*PendingShare)
	return s, args.Error(1)
}

func (m *mockStore) SoftDelete(ctx context.Context, id, deletedBy int64) (bool, error) {
	args := m.Called(ctx, id, deletedBy)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockGroups struct {
	mock.Mock
}

func (m *mockGroups) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	args := m.Called(ctx, id)
	g, _ := args.Get(0).(*group.Group)
	return g, args.Error(1)
}

func (m *mockGroups) RequireMember(ctx context.Context, groupID, userID int64) (*group.Member, error) {
	args := m.Called(ctx, groupID, userID)
	mem, _ := args.Get(0).(*group.Member)
	return mem, args.Error(1)
}

func (m *mockGroups) Roster(ctx context.Context, groupID int64) ([]*group.Member, []*group.PendingMember, error) {
	args := m.Called(ctx, groupID)
	ms, _ := args.Get(0).([]*group.Member)
	ps, _ := args.Get(1).([]*group.PendingMember)
	return ms, ps, args.Error(2)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyExpenseAdded(ctx context.Context, recipientID int64, payerName, description string, amountOwed decimal.Decimal, expenseID int64) error {
	return m.Called(ctx, recipientID, payerName, description, amountOwed.String(), expenseID).Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func roster() []*group.Member {
	return []*group.Member{
		{UserID: 1, Username: "alice", Role: group.MemberRoleAdmin},
		{UserID: 2, Username: "bob", Role: group.MemberRoleMember},
		{UserID: 3, Username: "carol", Role: group.MemberRoleMember},
	}
}

func newTestService() (*Service, *mockStore, *mockGroups, *mockNotifier) {
	store := new(mockStore)
	groups := new(mockGroups)
	notifier := new(mockNotifier)
	svc := NewService(store, groups, notifier, split.NewSplitStrategyFactory(), logging.Discard())
	return svc, store, groups, notifier
}

// persisted mirrors what the repository returns for a freshly stored expense
func persisted(e *Expense, alloc *split.Allocation) *Details {
	stored := *e
	stored.ID = 42
	d := &Details{Expense: &stored}
	for _, s := range alloc.Shares {
		d.Shares = append(d.Shares, &Share{ExpenseID: 42, UserID: s.ParticipantID, AmountOwed: s.AmountOwed})
	}
	for _, p := range alloc.PendingShares {
		d.PendingShares = append(d.PendingShares, &PendingShare{ExpenseID: 42, Email: p.Email, AmountOwed: p.AmountOwed})
	}
	return d
}

func TestService_CreateExpense_Equal(t *testing.T) {
	svc, store, groups, notifier := newTestService()

	groups.On("RequireMember", ctx, int64(7), int64(1)).Return(roster()[0], nil)
	groups.On("Roster", ctx, int64(7)).Return(roster(), []*group.PendingMember{{Email: "dave@example.com"}}, nil)

	var stored *Expense
	var alloc *split.Allocation
	store.On("Create", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*Expense)
			alloc = args.Get(2).(*split.Allocation)
		}).
		Return(persisted, nil)
	notifier.On("NotifyExpenseAdded", ctx, mock.Anything, "alice", "Dinner", "25", int64(42)).Return(nil)

	details, err := svc.CreateExpense(ctx, 1, &CreateExpenseRequest{
		GroupID:     7,
		Description: " Dinner ",
		Amount:      dec("100.00"),
		SplitType:   split.ModeEqual,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), details.Expense.ID)
	assert.Equal(t, int64(1), stored.PayerID)
	assert.Equal(t, "Dinner", stored.Description)
	assert.True(t, stored.PendingTotal.Equal(dec("25")))
	require.Len(t, alloc.Shares, 3)
	require.Len(t, alloc.PendingShares, 1)
	assert.Equal(t, []int64{1, 2, 3}, []int64{alloc.Shares[0].ParticipantID, alloc.Shares[1].ParticipantID, alloc.Shares[2].ParticipantID})

	notifier.AssertNumberOfCalls(t, "NotifyExpenseAdded", 2)
	notifier.AssertNotCalled(t, "NotifyExpenseAdded", ctx, int64(1), mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CreateExpense_NotificationFailureIsIgnored(t *testing.T) {
	svc, store, groups, notifier := newTestService()

	groups.On("RequireMember", ctx, int64(7), int64(2)).Return(roster()[1], nil)
	groups.On("Roster", ctx, int64(7)).Return(roster(), nil, nil)
	store.On("Create", ctx, mock.Anything, mock.Anything).Return(persisted, nil)
	notifier.On("NotifyExpenseAdded", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	paidBy := int64(1)
	details, err := svc.CreateExpense(ctx, 2, &CreateExpenseRequest{
		GroupID:      7,
		Description:  "Taxi",
		Amount:       dec("10.00"),
		SplitType:    split.ModeEqual,
		PaidByUserID: &paidBy,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), details.Expense.PayerID)

	// 10.00 / 3: the last member absorbs the remainder
	assert.True(t, details.Shares[0].AmountOwed.Equal(dec("3.33")))
	assert.True(t, details.Shares[2].AmountOwed.Equal(dec("3.34")))
	notifier.AssertNumberOfCalls(t, "NotifyExpenseAdded", 2)
}

func TestService_CreateExpense_Rejected(t *testing.T) {
	outsider := int64(99)

	tests := []struct {
		name    string
		req     *CreateExpenseRequest
		wantErr error
	}{
		{
			name:    "payer outside group",
			req:     &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("10"), SplitType: split.ModeEqual, PaidByUserID: &outsider},
			wantErr: ErrPayerNotMember,
		},
		{
			name: "custom share for non-member",
			req: &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("10"), SplitType: split.ModeCustom,
				Shares: []split.ShareInput{{ParticipantID: 99, Amount: dec("10")}}},
			wantErr: ErrShareNotMember,
		},
		{
			name: "custom pending share for unknown email",
			req: &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("10"), SplitType: split.ModeCustom,
				PendingShares: []split.PendingShareInput{{Email: "nobody@example.com", Amount: dec("10")}}},
			wantErr: ErrShareNotInvited,
		},
		{
			name:    "pending payer without invitation",
			req:     &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("10"), SplitType: split.ModeEqual, PaidByPendingEmail: ptr("erin@example.com")},
			wantErr: ErrPayerNotInvited,
		},
		{
			name: "member and pending payer both given",
			req: &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("10"), SplitType: split.ModeEqual,
				PaidByUserID: &outsider, PaidByPendingEmail: ptr("dave@example.com")},
			wantErr: ErrPayerAmbiguous,
		},
		{
			// 0.02 over four people rounds to 0.01 each and leaves -0.01 for the last
			name:    "equal split too small for the group",
			req:     &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("0.02"), SplitType: split.ModeEqual},
			wantErr: apperrors.ErrInvalidSplit,
		},
		{
			name: "custom shares off by a cent",
			req: &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("100"), SplitType: split.ModeCustom,
				Shares: []split.ShareInput{{ParticipantID: 1, Amount: dec("50")}, {ParticipantID: 2, Amount: dec("49.99")}}},
			wantErr: apperrors.ErrInvalidSplit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, groups, _ := newTestService()
			groups.On("RequireMember", ctx, int64(7), int64(1)).Return(roster()[0], nil)
			groups.On("Roster", ctx, int64(7)).Return(roster(), []*group.PendingMember{{Email: "dave@example.com"}}, nil)

			_, err := svc.CreateExpense(ctx, 1, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, apperrors.ErrIntegrityViolation)
			store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_CreateExpense_CustomNormalizesPendingEmail(t *testing.T) {
	svc, store, groups, notifier := newTestService()

	groups.On("RequireMember", ctx, int64(7), int64(1)).Return(roster()[0], nil)
	groups.On("Roster", ctx, int64(7)).Return(roster(), []*group.PendingMember{{Email: "dave@example.com"}}, nil)
	store.On("Create", ctx, mock.Anything, mock.Anything).Return(persisted, nil)
	notifier.On("NotifyExpenseAdded", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	details, err := svc.CreateExpense(ctx, 1, &CreateExpenseRequest{
		GroupID:     7,
		Description: "Hotel",
		Amount:      dec("90"),
		SplitType:   split.ModeCustom,
		Shares:      []split.ShareInput{{ParticipantID: 2, Amount: dec("60")}},
		PendingShares: []split.PendingShareInput{
			{Email: " Dave@Example.com ", Amount: dec("30")},
		},
	})
	require.NoError(t, err)
	require.Len(t, details.PendingShares, 1)
	assert.Equal(t, "dave@example.com", details.PendingShares[0].Email)
	assert.True(t, details.Expense.PendingTotal.Equal(dec("30")))

	// carol holds no share but is still told about the expense
	notifier.AssertCalled(t, "NotifyExpenseAdded", ctx, int64(3), "alice", "Hotel", "0", int64(42))
}

func TestService_CreateExpense_PaidByPendingMember(t *testing.T) {
	svc, store, groups, notifier := newTestService()

	groups.On("RequireMember", ctx, int64(7), int64(2)).Return(roster()[1], nil)
	groups.On("Roster", ctx, int64(7)).Return(roster(), []*group.PendingMember{{Email: "dave@example.com", Name: "Dave"}}, nil)
	store.On("Create", ctx, mock.Anything, mock.Anything).Return(persisted, nil)
	notifier.On("NotifyExpenseAdded", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	details, err := svc.CreateExpense(ctx, 2, &CreateExpenseRequest{
		GroupID:            7,
		Description:        "Dinner",
		Amount:             dec("40"),
		SplitType:          split.ModeEqual,
		PaidByPendingEmail: ptr(" DAVE@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), details.Expense.PayerID)
	assert.Equal(t, "Dinner (paid by Dave, pending)", details.Expense.Description)
	require.Len(t, details.PendingShares, 1)
	assert.True(t, details.PendingShares[0].AmountOwed.Equal(dec("10")))
	notifier.AssertNotCalled(t, "NotifyExpenseAdded", ctx, int64(2), mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWithPendingPayerNote(t *testing.T) {
	got := withPendingPayerNote("Taxi", &group.PendingMember{Email: "erin@example.com"})
	assert.Equal(t, "Taxi (paid by erin@example.com, pending)", got)

	long := strings.Repeat("a", maxDescriptionLen)
	got = withPendingPayerNote(long, &group.PendingMember{Name: "Erin"})
	assert.Len(t, []rune(got), maxDescriptionLen)
	assert.True(t, strings.HasSuffix(got, " (paid by Erin, pending)"))
}

func TestService_CreateExpense_NotMember(t *testing.T) {
	svc, store, groups, _ := newTestService()
	groups.On("RequireMember", ctx, int64(7), int64(5)).Return(nil, group.ErrNotMember)

	_, err := svc.CreateExpense(ctx, 5, &CreateExpenseRequest{GroupID: 7, Description: "x", Amount: dec("1"), SplitType: split.ModeEqual})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_DeleteExpense(t *testing.T) {
	deletedAt := time.Now()

	tests := []struct {
		name    string
		expense *Expense
		actor   *group.Member
		wantErr error
	}{
		{
			name:    "missing",
			expense: nil,
			wantErr: ErrExpenseNotFound,
		},
		{
			name:    "already deleted",
			expense: &Expense{ID: 5, GroupID: 7, PayerID: 2, DeletedAt: &deletedAt},
			actor:   &group.Member{UserID: 2, Role: group.MemberRoleMember},
			wantErr: ErrAlreadyDeleted,
		},
		{
			name:    "neither payer nor admin",
			expense: &Expense{ID: 5, GroupID: 7, PayerID: 2},
			actor:   &group.Member{UserID: 3, Role: group.MemberRoleMember},
			wantErr: ErrCannotDelete,
		},
		{
			name:    "payer",
			expense: &Expense{ID: 5, GroupID: 7, PayerID: 3},
			actor:   &group.Member{UserID: 3, Role: group.MemberRoleMember},
		},
		{
			name:    "admin",
			expense: &Expense{ID: 5, GroupID: 7, PayerID: 2},
			actor:   &group.Member{UserID: 3, Role: group.MemberRoleAdmin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, groups, _ := newTestService()
			store.On("GetByID", ctx, int64(5)).Return(tt.expense, nil)
			groups.On("RequireMember", ctx, int64(7), int64(3)).Return(tt.actor, nil)
			groups.On("RequireMember", ctx, int64(7), int64(2)).Return(tt.actor, nil)
			store.On("SoftDelete", ctx, int64(5), mock.Anything).Return(true, nil)

			actorID := int64(3)
			if tt.actor != nil {
				actorID = tt.actor.UserID
			}
			err := svc.DeleteExpense(ctx, actorID, 5)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				store.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			store.AssertCalled(t, "SoftDelete", ctx, int64(5), actorID)
		})
	}
}

func TestService_DeleteExpense_LostRace(t *testing.T) {
	svc, store, groups, _ := newTestService()
	store.On("GetByID", ctx, int64(5)).Return(&Expense{ID: 5, GroupID: 7, PayerID: 1}, nil)
	groups.On("RequireMember", ctx, int64(7), int64(1)).Return(roster()[0], nil)
	store.On("SoftDelete", ctx, int64(5), int64(1)).Return(false, nil)

	err := svc.DeleteExpense(ctx, 1, 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestService_PermanentlyDeleteExpense(t *testing.T) {
	deletedAt := time.Now()

	tests := []struct {
		name    string
		expense *Expense
		actorID int64
		wantErr error
	}{
		{name: "still active", expense: &Expense{ID: 5, GroupID: 7}, actorID: 1, wantErr: ErrNotDeleted},
		{name: "not the creator", expense: &Expense{ID: 5, GroupID: 7, DeletedAt: &deletedAt}, actorID: 2, wantErr: ErrCannotPurge},
		{name: "creator", expense: &Expense{ID: 5, GroupID: 7, DeletedAt: &deletedAt}, actorID: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, groups, _ := newTestService()
			store.On("GetByID", ctx, int64(5)).Return(tt.expense, nil)
			groups.On("RequireMember", ctx, int64(7), tt.actorID).Return(&group.Member{UserID: tt.actorID}, nil)
			groups.On("GetByID", ctx, int64(7)).Return(&group.Group{ID: 7, CreatedBy: 1}, nil)
			store.On("Delete", ctx, int64(5)).Return(nil)

			err := svc.PermanentlyDeleteExpense(ctx, tt.actorID, 5)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			store.AssertCalled(t, "Delete", ctx, int64(5))
		})
	}
}

func TestService_GetExpense(t *testing.T) {
	svc, store, groups, _ := newTestService()
	store.On("GetByID", ctx, int64(5)).Return(&Expense{ID: 5, GroupID: 7, PayerID: 1, Amount: dec("20")}, nil)
	groups.On("RequireMember", ctx, int64(7), int64(2)).Return(roster()[1], nil)
	store.On("GetShares", ctx, int64(5)).Return([]*Share{{UserID: 1, AmountOwed: dec("10")}, {UserID: 2, AmountOwed: dec("10")}}, nil)
	store.On("GetPendingShares", ctx, int64(5)).Return([]*PendingShare{}, nil)

	details, err := svc.GetExpense(ctx, 2, 5)
	require.NoError(t, err)
	assert.Len(t, details.Shares, 2)

	resp := details.ToResponse()
	assert.False(t, resp.IsDeleted)
	assert.Len(t, resp.Shares, 2)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"amount":"20.00"`)
	assert.Contains(t, string(out), `"amount_owed":"10.00"`)
}

func TestBuildSplitRequest_EqualUsesRosterOrder(t *testing.T) {
	members := []*group.Member{{UserID: 9}, {UserID: 4}, {UserID: 6}}
	pending := []*group.PendingMember{{Email: "b@x.io"}, {Email: "a@x.io"}}

	req, err := buildSplitRequest(&CreateExpenseRequest{Amount: dec("5"), SplitType: split.ModeEqual}, members, pending)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 4, 6}, req.Participants)
	assert.Equal(t, []string{"b@x.io", "a@x.io"}, req.Pending)
	assert.Empty(t, req.Shares)
}
