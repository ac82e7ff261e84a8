package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"go-user-template/internal/client/userapi"
	"go-user-template/internal/model"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) FindByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) FindOneByID(ctx context.Context, id int64) (model.UserGroup, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.UserGroup), args.Error(1)
}

func (m *mockUserStore) FindByUsernameActive(ctx context.Context, username string) (model.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserStore) Create(ctx context.Context, u model.User) (model.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) Save(ctx context.Context, u model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserStore) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) (int64, error) {
	args := m.Called(ctx, id, balance)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserStore) SearchByName(ctx context.Context, name string) ([]model.User, error) {
	args := m.Called(ctx, name)
	return usersArg(args, 0), args.Error(1)
}

func (m *mockUserStore) SearchByCpf(ctx context.Context, cpf string) ([]model.User, error) {
	args := m.Called(ctx, cpf)
	return usersArg(args, 0), args.Error(1)
}

func (m *mockUserStore) FindByGroup(ctx context.Context, groupID int64) ([]model.User, error) {
	args := m.Called(ctx, groupID)
	return usersArg(args, 0), args.Error(1)
}

func (m *mockUserStore) FindAllActive(ctx context.Context, page model.PageRequest) ([]model.User, int, error) {
	args := m.Called(ctx, page)
	return usersArg(args, 0), args.Int(1), args.Error(2)
}

func (m *mockUserStore) FindAll(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	return usersArg(args, 0), args.Error(1)
}

func usersArg(args mock.Arguments, idx int) []model.User {
	if args.Get(idx) == nil {
		return nil
	}
	return args.Get(idx).([]model.User)
}

type mockRoleStore struct {
	mock.Mock
}

func (m *mockRoleStore) FindAllByUserID(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockRoleStore) FindAllByGroupID(ctx context.Context, groupID int64) ([]model.Role, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Role), args.Error(1)
}

func (m *mockRoleStore) ReplaceForUser(ctx context.Context, userID int64, roleIDs []int64) error {
	args := m.Called(ctx, userID, roleIDs)
	return args.Error(0)
}

type mockGroupStore struct {
	mock.Mock
}

func (m *mockGroupStore) FindByID(ctx context.Context, id int64) (model.Group, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Group), args.Error(1)
}

func (m *mockGroupStore) FindAll(ctx context.Context) ([]model.Group, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Group), args.Error(1)
}

type mockBalanceAPI struct {
	mock.Mock
}

func (m *mockBalanceAPI) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) (*userapi.Response, error) {
	args := m.Called(ctx, id, balance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userapi.Response), args.Error(1)
}

func (m *mockBalanceAPI) GetByID(ctx context.Context, id int64) (*userapi.Response, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userapi.Response), args.Error(1)
}

type mockAuditLogger struct {
	mock.Mock
}

func (m *mockAuditLogger) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, before any, after any, errText string) {
	m.Called(ctx, action, actor, status, resource, before, after, errText)
}

// inlineTx runs the callback directly and records how often a transaction was requested.
type inlineTx struct {
	calls int
}

func (t *inlineTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}
