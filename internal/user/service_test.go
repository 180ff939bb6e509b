package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/billsplit/internal/apperrors"
	"github.com/fkhayef/billsplit/pkg/logging"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id int64) (*User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockStore) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	args := m.Called(ctx, limit, offset)
	users, _ := args.Get(0).([]*User)
	return users, args.Int(1), args.Error(2)
}

func (m *mockStore) Update(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	args := m.Called(ctx, id, req)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	req := &CreateUserRequest{Username: "alice", Email: "alice@example.com"}

	t.Run("creates new user", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetByEmail", ctx, req.Email).Return(nil, nil)
		store.On("Create", ctx, req).Return(&User{ID: 1, Username: "alice", Email: req.Email}, nil)

		u, err := NewService(store, logging.Discard()).Create(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(1), u.ID)
		store.AssertExpectations(t)
	})

	t.Run("rejects taken email", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetByEmail", ctx, req.Email).Return(&User{ID: 9}, nil)

		_, err := NewService(store, logging.Discard()).Create(ctx, req)
		assert.ErrorIs(t, err, ErrEmailAlreadyInUse)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestService_NotFound(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("GetByID", ctx, int64(5)).Return(nil, nil)
	store.On("Update", ctx, int64(5), mock.Anything).Return(nil, nil)
	store.On("Delete", ctx, int64(5)).Return(false, nil)
	svc := NewService(store, logging.Discard())

	_, err := svc.GetByID(ctx, 5)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Update(ctx, 5, &UpdateUserRequest{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, 5), ErrUserNotFound)
}
