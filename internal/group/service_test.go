package group

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/internal/user"
	"github.com/fkhayef/billsplit/pkg/logging"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, creatorID int64, req *CreateGroupRequest, invites []*PendingMember) (*Group, error) {
	args := m.Called(ctx, creatorID, req, invites)
	g, _ := args.Get(0).(*Group)
	return g, args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id int64) (*Group, error) {
	args := m.Called(ctx, id)
	g, _ := args.Get(0).(*Group)
	return g, args.Error(1)
}

func (m *mockStore) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	gs, _ := args.Get(0).([]*Group)
	return gs, args.Int(1), args.Error(2)
}

func (m *mockStore) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	args := m.Called(ctx, id, req)
	g, _ := args.Get(0).(*Group)
	return g, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) GetMembers(ctx context.Context, groupID int64) ([]*Member, error) {
	args := m.Called(ctx, groupID)
	ms, _ := args.Get(0).([]*Member)
	return ms, args.Error(1)
}

func (m *mockStore) GetMember(ctx context.Context, groupID, userID int64) (*Member, error) {
	args := m.Called(ctx, groupID, userID)
	mem, _ := args.Get(0).(*Member)
	return mem, args.Error(1)
}

func (m *mockStore) CountAdmins(ctx context.Context, groupID int64) (int, error) {
	args := m.Called(ctx, groupID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) UpdateMemberRole(ctx context.Context, groupID, userID int64, role MemberRole) (*Member, error) {
	args := m.Called(ctx, groupID, userID, role)
	mem, _ := args.Get(0).(*Member)
	return mem, args.Error(1)
}

func (m *mockStore) RemoveMember(ctx context.Context, groupID, userID int64) error {
	return m.Called(ctx, groupID, userID).Error(0)
}

func (m *mockStore) CreatePending(ctx context.Context, groupID int64, email, name string, invitedBy int64) (*PendingMember, error) {
	args := m.Called(ctx, groupID, email, name, invitedBy)
	p, _ := args.Get(0).(*PendingMember)
	return p, args.Error(1)
}

func (m *mockStore) GetPendingMembers(ctx context.Context, groupID int64) ([]*PendingMember, error) {
	args := m.Called(ctx, groupID)
	ps, _ := args.Get(0).([]*PendingMember)
	return ps, args.Error(1)
}

func (m *mockStore) GetPending(ctx context.Context, id int64) (*PendingMember, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*PendingMember)
	return p, args.Error(1)
}

func (m *mockStore) PendingExists(ctx context.Context, groupID int64, email string) (bool, error) {
	args := m.Called(ctx, groupID, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListPendingByEmail(ctx context.Context, email string) ([]*PendingMember, error) {
	args := m.Called(ctx, email)
	ps, _ := args.Get(0).([]*PendingMember)
	return ps, args.Error(1)
}

func (m *mockStore) DeletePending(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) AcceptInvitation(ctx context.Context, pendingID, groupID, userID int64) error {
	return m.Called(ctx, pendingID, groupID, userID).Error(0)
}

func (m *mockStore) Roster(ctx context.Context, groupID int64) ([]*Member, []*PendingMember, error) {
	args := m.Called(ctx, groupID)
	ms, _ := args.Get(0).([]*Member)
	ps, _ := args.Get(1).([]*PendingMember)
	return ms, ps, args.Error(2)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetByID(ctx context.Context, id int64) (*user.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyGroupInvite(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	return m.Called(ctx, recipientID, groupName, groupID).Error(0)
}

func (m *mockNotifier) NotifyInvitationRejected(ctx context.Context, recipientID int64, rejecterName, groupName string, groupID int64) error {
	return m.Called(ctx, recipientID, rejecterName, groupName, groupID).Error(0)
}

type fixture struct {
	store    *mockStore
	users    *mockUsers
	notifier *mockNotifier
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{store: new(mockStore), users: new(mockUsers), notifier: new(mockNotifier)}
	f.svc = NewService(f.store, f.users, f.notifier, logging.Discard())
	return f
}

var ctx = context.Background()

func TestService_Create(t *testing.T) {
	f := newFixture()
	req := &CreateGroupRequest{
		Name:         "Trip",
		MemberEmails: []string{"Bob@Example.com", "owner@example.com", "new.person@example.com", "bob@example.com"},
	}

	f.users.On("GetByID", ctx, int64(1)).Return(&user.User{ID: 1, Username: "owner", Email: "owner@example.com"}, nil)
	f.users.On("GetByEmail", ctx, "bob@example.com").Return(&user.User{ID: 2, Username: "bob", Email: "bob@example.com"}, nil)
	f.users.On("GetByEmail", ctx, "new.person@example.com").Return(nil, user.ErrUserNotFound)

	wantInvites := []*PendingMember{
		{Email: "bob@example.com", Name: "bob"},
		{Email: "new.person@example.com", Name: "New Person"},
	}
	f.store.On("Create", ctx, int64(1), req, wantInvites).Return(&Group{ID: 10, Name: "Trip"}, nil)
	f.notifier.On("NotifyGroupInvite", ctx, int64(2), "Trip", int64(10)).Return(nil)

	g, err := f.svc.Create(ctx, 1, req)
	require.NoError(t, err)
	assert.Equal(t, int64(10), g.ID)
	f.store.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestService_GetDetails_RequiresMembership(t *testing.T) {
	f := newFixture()
	f.store.On("GetByID", ctx, int64(10)).Return(&Group{ID: 10}, nil)
	f.store.On("Roster", ctx, int64(10)).Return([]*Member{{UserID: 1, Role: MemberRoleAdmin}}, []*PendingMember{{Email: "p@x.io"}}, nil)

	_, err := f.svc.GetDetails(ctx, 2, 10)
	assert.ErrorIs(t, err, ErrNotMember)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	d, err := f.svc.GetDetails(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, d.Members, 1)
	assert.Len(t, d.Pending, 1)
}

func TestService_GetDetails_GroupNotFound(t *testing.T) {
	f := newFixture()
	f.store.On("GetByID", ctx, int64(10)).Return(nil, nil)

	_, err := f.svc.GetDetails(ctx, 1, 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_InviteMember(t *testing.T) {
	setup := func() *fixture {
		f := newFixture()
		f.store.On("GetByID", ctx, int64(10)).Return(&Group{ID: 10, Name: "Flat"}, nil)
		f.store.On("GetMember", ctx, int64(10), int64(1)).Return(&Member{UserID: 1, Role: MemberRoleAdmin}, nil)
		return f
	}

	t.Run("non-admin rejected", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetByID", ctx, int64(10)).Return(&Group{ID: 10}, nil)
		f.store.On("GetMember", ctx, int64(10), int64(3)).Return(&Member{UserID: 3, Role: MemberRoleMember}, nil)

		_, err := f.svc.InviteMember(ctx, 3, 10, "x@y.io")
		assert.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("unregistered email becomes pending member", func(t *testing.T) {
		f := setup()
		f.users.On("GetByEmail", ctx, "carol@x.io").Return(nil, user.ErrUserNotFound)
		f.store.On("PendingExists", ctx, int64(10), "carol@x.io").Return(false, nil)
		f.store.On("CreatePending", ctx, int64(10), "carol@x.io", "Carol", int64(1)).Return(&PendingMember{ID: 5, Email: "carol@x.io"}, nil)

		p, err := f.svc.InviteMember(ctx, 1, 10, " Carol@X.io ")
		require.NoError(t, err)
		assert.Equal(t, int64(5), p.ID)
		f.notifier.AssertNotCalled(t, "NotifyGroupInvite", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("existing member conflicts", func(t *testing.T) {
		f := setup()
		f.users.On("GetByEmail", ctx, "bob@x.io").Return(&user.User{ID: 2, Username: "bob"}, nil)
		f.store.On("GetMember", ctx, int64(10), int64(2)).Return(&Member{UserID: 2}, nil)

		_, err := f.svc.InviteMember(ctx, 1, 10, "bob@x.io")
		assert.ErrorIs(t, err, ErrMemberAlreadyExists)
	})

	t.Run("notification failure does not fail invite", func(t *testing.T) {
		f := setup()
		f.users.On("GetByEmail", ctx, "bob@x.io").Return(&user.User{ID: 2, Username: "bob"}, nil)
		f.store.On("GetMember", ctx, int64(10), int64(2)).Return(nil, nil)
		f.store.On("PendingExists", ctx, int64(10), "bob@x.io").Return(false, nil)
		f.store.On("CreatePending", ctx, int64(10), "bob@x.io", "bob", int64(1)).Return(&PendingMember{ID: 6}, nil)
		f.notifier.On("NotifyGroupInvite", ctx, int64(2), "Flat", int64(10)).Return(errors.New("db down"))

		_, err := f.svc.InviteMember(ctx, 1, 10, "bob@x.io")
		assert.NoError(t, err)
		f.notifier.AssertExpectations(t)
	})

	t.Run("already invited", func(t *testing.T) {
		f := setup()
		f.users.On("GetByEmail", ctx, "carol@x.io").Return(nil, user.ErrUserNotFound)
		f.store.On("PendingExists", ctx, int64(10), "carol@x.io").Return(true, nil)

		_, err := f.svc.InviteMember(ctx, 1, 10, "carol@x.io")
		assert.ErrorIs(t, err, ErrAlreadyInvited)
	})
}

func TestService_Leave_LastAdmin(t *testing.T) {
	f := newFixture()
	f.store.On("GetByID", ctx, int64(10)).Return(&Group{ID: 10}, nil)
	f.store.On("GetMember", ctx, int64(10), int64(1)).Return(&Member{UserID: 1, Role: MemberRoleAdmin}, nil)
	f.store.On("CountAdmins", ctx, int64(10)).Return(1, nil)

	err := f.svc.Leave(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrLastAdmin)
	f.store.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_AcceptAndRejectInvitation(t *testing.T) {
	invitation := &PendingMember{ID: 7, GroupID: 10, Email: "bob@x.io", InvitedBy: 1, GroupName: "Flat"}

	t.Run("accept", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetByID", ctx, int64(2)).Return(&user.User{ID: 2, Username: "bob", Email: "Bob@x.io"}, nil)
		f.store.On("GetPending", ctx, int64(7)).Return(invitation, nil)
		f.store.On("AcceptInvitation", ctx, int64(7), int64(10), int64(2)).Return(nil)

		require.NoError(t, f.svc.AcceptInvitation(ctx, 2, 7))
		f.store.AssertExpectations(t)
	})

	t.Run("reject notifies inviter", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetByID", ctx, int64(2)).Return(&user.User{ID: 2, Username: "bob", Email: "bob@x.io"}, nil)
		f.store.On("GetPending", ctx, int64(7)).Return(invitation, nil)
		f.store.On("DeletePending", ctx, int64(7)).Return(nil)
		f.notifier.On("NotifyInvitationRejected", ctx, int64(1), "bob", "Flat", int64(10)).Return(nil)

		require.NoError(t, f.svc.RejectInvitation(ctx, 2, 7))
		f.notifier.AssertExpectations(t)
	})

	t.Run("someone else's invitation", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetByID", ctx, int64(3)).Return(&user.User{ID: 3, Email: "eve@x.io"}, nil)
		f.store.On("GetPending", ctx, int64(7)).Return(invitation, nil)

		assert.ErrorIs(t, f.svc.AcceptInvitation(ctx, 3, 7), ErrNotInvitee)
	})
}

func TestNameFromEmail(t *testing.T) {
	assert.Equal(t, "Jane Doe", nameFromEmail("jane.doe@example.com"))
	assert.Equal(t, "Sam", nameFromEmail("sam@example.com"))
	assert.Equal(t, "A B C", nameFromEmail("a_b-c@example.com"))
}
