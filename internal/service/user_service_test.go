package service

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-user-template/internal/client/userapi"
	"go-user-template/internal/model"
)

type userServiceDeps struct {
	users  *mockUserStore
	roles  *mockRoleStore
	tx     *inlineTx
	remote *mockBalanceAPI
	audit  *mockAuditLogger
}

func newTestUserService() (*UserService, userServiceDeps) {
	deps := userServiceDeps{
		users:  &mockUserStore{},
		roles:  &mockRoleStore{},
		tx:     &inlineTx{},
		remote: &mockBalanceAPI{},
		audit:  &mockAuditLogger{},
	}
	return NewUserService(deps.users, deps.roles, deps.tx, deps.remote, deps.audit), deps
}

func expectAudit(a *mockAuditLogger, action string, status string) {
	a.On("Log", mock.Anything, action, mock.Anything, status, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
}

var admin = model.TokenUser{ID: 1, Name: "Admin", Username: "admin@x.com", GroupID: 1, Roles: []int64{1}}

func TestUserService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	req := model.CreateUserRequest{
		Name: " Bruno ", Email: "bruno@x.com", Password: "password123", Cpf: "12345678901",
		GroupID: 2, Roles: []int64{3, 1, 3},
	}

	t.Run("persists active user with hashed password and roles", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("ExistsByUsername", mock.Anything, "bruno@x.com").Return(false, nil)
		deps.users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Name == "Bruno" && u.Email == "bruno@x.com" && u.Active && u.GroupID == 2 &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")) == nil
		})).Return(model.User{ID: 10, Name: "Bruno", Email: "bruno@x.com", GroupID: 2, Active: true}, nil)
		deps.roles.On("ReplaceForUser", mock.Anything, int64(10), []int64{1, 3}).Return(nil)
		expectAudit(deps.audit, "user.create", "success")

		created, err := svc.Create(ctx, admin, req)
		require.NoError(t, err)

		assert.Equal(t, int64(10), created.ID)
		assert.Equal(t, []int64{1, 3}, created.Roles)
		assert.Equal(t, 1, deps.tx.calls)
		deps.users.AssertExpectations(t)
		deps.roles.AssertExpectations(t)
		deps.audit.AssertExpectations(t)
	})

	t.Run("duplicate email persists nothing", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("ExistsByUsername", mock.Anything, "bruno@x.com").Return(true, nil)
		expectAudit(deps.audit, "user.create", "failure")

		_, err := svc.Create(ctx, admin, req)
		require.ErrorIs(t, err, model.ErrUsernameAlreadyExists)

		deps.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		deps.roles.AssertNotCalled(t, "ReplaceForUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unique violation from store surfaces as duplicate", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("ExistsByUsername", mock.Anything, "bruno@x.com").Return(false, nil)
		deps.users.On("Create", mock.Anything, mock.Anything).Return(model.User{}, model.ErrUsernameAlreadyExists)
		expectAudit(deps.audit, "user.create", "failure")

		_, err := svc.Create(ctx, admin, req)
		require.ErrorIs(t, err, model.ErrUsernameAlreadyExists)
	})
}

func TestUserService_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	req := model.UpdateUserRequest{Name: "Carla Dias", Password: "newpassword", Cpf: "98765432100", GroupID: 3, Roles: []int64{4}}

	t.Run("overwrites mutable fields only", func(t *testing.T) {
		svc, deps := newTestUserService()
		existing := model.User{
			ID: 5, Name: "Carla", Email: "carla@x.com", PasswordHash: "old", GroupID: 2,
			Active: true, Balance: decimal.RequireFromString("10"),
		}
		deps.users.On("FindByID", mock.Anything, int64(5)).Return(existing, nil)
		deps.users.On("Save", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.ID == 5 && u.Name == "Carla Dias" && u.Email == "carla@x.com" && u.Cpf == "98765432100" &&
				u.GroupID == 3 && u.Active && u.Balance.Equal(decimal.RequireFromString("10")) &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("newpassword")) == nil
		})).Return(nil)
		deps.roles.On("ReplaceForUser", mock.Anything, int64(5), []int64{4}).Return(nil)
		expectAudit(deps.audit, "user.update", "success")

		updated, err := svc.Update(ctx, admin, 5, req)
		require.NoError(t, err)
		assert.Equal(t, []int64{4}, updated.Roles)
		assert.Equal(t, 1, deps.tx.calls)
		deps.users.AssertExpectations(t)
		deps.roles.AssertExpectations(t)
	})

	t.Run("unknown id is item not found", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("FindByID", mock.Anything, int64(99)).Return(model.User{}, model.ErrUserNotFound)
		expectAudit(deps.audit, "user.update", "failure")

		_, err := svc.Update(ctx, admin, 99, req)
		require.ErrorIs(t, err, model.ErrItemNotFound)
		deps.users.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("role failure aborts the transaction", func(t *testing.T) {
		svc, deps := newTestUserService()
		boom := errors.New("fk violation")
		deps.users.On("FindByID", mock.Anything, int64(5)).Return(model.User{ID: 5}, nil)
		deps.users.On("Save", mock.Anything, mock.Anything).Return(nil)
		deps.roles.On("ReplaceForUser", mock.Anything, int64(5), []int64{4}).Return(boom)
		expectAudit(deps.audit, "user.update", "failure")

		_, err := svc.Update(ctx, admin, 5, req)
		require.ErrorIs(t, err, boom)
	})
}

func TestUserService_UpdateBalance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	balance := decimal.RequireFromString("250.75")

	t.Run("one row affected succeeds", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("UpdateBalance", mock.Anything, int64(7), balance).Return(int64(1), nil)
		expectAudit(deps.audit, "user.balance", "success")

		require.NoError(t, svc.UpdateBalance(ctx, admin, 7, balance))
	})

	t.Run("zero rows affected is item not found", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("UpdateBalance", mock.Anything, int64(404), balance).Return(int64(0), nil)
		expectAudit(deps.audit, "user.balance", "failure")

		require.ErrorIs(t, svc.UpdateBalance(ctx, admin, 404, balance), model.ErrItemNotFound)
	})
}

func TestUserService_UpdateBalanceAPI(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	balance := decimal.RequireFromString("100")

	tests := []struct {
		name    string
		resp    *userapi.Response
		err     error
		wantErr error
	}{
		{name: "success", resp: &userapi.Response{StatusCode: http.StatusNoContent}},
		{name: "404 is not found", resp: &userapi.Response{StatusCode: http.StatusNotFound}, wantErr: model.ErrNotFound},
		{name: "400 is api error", resp: &userapi.Response{StatusCode: http.StatusBadRequest}, wantErr: model.ErrAPIError},
		{name: "503 is api error", resp: &userapi.Response{StatusCode: http.StatusServiceUnavailable}, wantErr: model.ErrAPIError},
		{name: "transport failure is api error", err: errors.New("dial tcp: refused"), wantErr: model.ErrAPIError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, deps := newTestUserService()
			deps.remote.On("UpdateBalance", mock.Anything, int64(3), balance).Return(tc.resp, tc.err)

			err := svc.UpdateBalanceAPI(ctx, 3, balance)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestUserService_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("self delete is forbidden without touching storage", func(t *testing.T) {
		svc, deps := newTestUserService()
		expectAudit(deps.audit, "user.delete", "failure")

		require.ErrorIs(t, svc.Delete(ctx, admin, admin.ID), model.ErrForbidden)
		deps.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		assert.Zero(t, deps.tx.calls)
	})

	t.Run("soft deletes another user", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("FindByID", mock.Anything, int64(8)).Return(model.User{ID: 8, Email: "d@x.com", Active: true}, nil)
		deps.users.On("Save", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.ID == 8 && !u.Active && u.Email == "d@x.com"
		})).Return(nil)
		expectAudit(deps.audit, "user.delete", "success")

		require.NoError(t, svc.Delete(ctx, admin, 8))
		assert.Equal(t, 1, deps.tx.calls)
		deps.users.AssertExpectations(t)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.users.On("FindByID", mock.Anything, int64(77)).Return(model.User{}, model.ErrUserNotFound)
		expectAudit(deps.audit, "user.delete", "failure")

		require.ErrorIs(t, svc.Delete(ctx, admin, 77), model.ErrNotFound)
	})
}

func TestUserService_FindByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, deps := newTestUserService()
	deps.users.On("FindOneByID", mock.Anything, int64(1)).Return(model.UserGroup{ID: 1, GroupName: "finance"}, nil)
	deps.users.On("FindOneByID", mock.Anything, int64(2)).Return(model.UserGroup{}, model.ErrUserNotFound)

	ug, err := svc.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "finance", ug.GroupName)

	_, err = svc.FindByID(ctx, 2)
	require.ErrorIs(t, err, model.ErrItemNotFound)
}

func TestUserService_FindByIDAPI(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("decodes data envelope", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.remote.On("GetByID", mock.Anything, int64(1)).Return(&userapi.Response{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"data":{"id":1,"name":"Ana","email":"ana@x.com"}}`),
		}, nil)

		user, err := svc.FindByIDAPI(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, model.RemoteUser{ID: 1, Name: "Ana", Email: "ana@x.com"}, user)
	})

	t.Run("404 is not found", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.remote.On("GetByID", mock.Anything, int64(2)).Return(&userapi.Response{StatusCode: http.StatusNotFound}, nil)

		_, err := svc.FindByIDAPI(ctx, 2)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("500 is api error", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.remote.On("GetByID", mock.Anything, int64(3)).Return(&userapi.Response{StatusCode: http.StatusInternalServerError}, nil)

		_, err := svc.FindByIDAPI(ctx, 3)
		require.ErrorIs(t, err, model.ErrAPIError)
	})

	t.Run("undecodable body is api error", func(t *testing.T) {
		svc, deps := newTestUserService()
		deps.remote.On("GetByID", mock.Anything, int64(4)).Return(&userapi.Response{StatusCode: http.StatusOK, Body: []byte("<html>")}, nil)

		_, err := svc.FindByIDAPI(ctx, 4)
		require.ErrorIs(t, err, model.ErrAPIError)
	})
}

func TestUserService_FindAllActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, deps := newTestUserService()
	deps.users.On("FindAllActive", mock.Anything, model.PageRequest{Page: 1, Size: 20}).
		Return([]model.User{{ID: 1}, {ID: 2}}, 45, nil)

	page, err := svc.FindAllActive(ctx, model.PageRequest{})
	require.NoError(t, err)

	assert.Len(t, page.Items, 2)
	assert.Equal(t, model.Meta{Page: 1, Limit: 20, Total: 45, TotalPages: 3}, page.Meta)
}

func TestUserService_FindAllActiveCapsPage(t *testing.T) {
	t.Parallel()

	svc, deps := newTestUserService()
	deps.users.On("FindAllActive", mock.Anything, model.PageRequest{Page: model.MaxPage, Size: 20}).
		Return([]model.User{}, 45, nil)

	page, err := svc.FindAllActive(context.Background(), model.PageRequest{Page: math.MaxInt})
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.Equal(t, model.MaxPage, page.Meta.Page)
	deps.users.AssertExpectations(t)
}

func TestUserService_Reads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, deps := newTestUserService()
	deps.users.On("SearchByName", mock.Anything, "an").Return([]model.User{{ID: 1}}, nil)
	deps.users.On("SearchByCpf", mock.Anything, "123").Return([]model.User{}, nil)
	deps.users.On("FindByGroup", mock.Anything, int64(2)).Return([]model.User{{ID: 1}, {ID: 3}}, nil)
	deps.users.On("FindAll", mock.Anything).Return([]model.User{{ID: 1, Active: true}, {ID: 2}}, nil)

	byName, err := svc.SearchByName(ctx, "an")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	byCpf, err := svc.SearchByCpf(ctx, "12.3")
	require.NoError(t, err)
	assert.Empty(t, byCpf)

	// Nothing left to match on; the store is not queried.
	none, err := svc.SearchByCpf(ctx, "..-")
	require.NoError(t, err)
	assert.Empty(t, none)
	deps.users.AssertNumberOfCalls(t, "SearchByCpf", 1)

	byGroup, err := svc.FindByGroup(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, byGroup, 2)

	all, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNormalizeRoles(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int64{}, normalizeRoles(nil))
	assert.Equal(t, []int64{1, 2, 5}, normalizeRoles([]int64{5, 1, 2, 5, 1}))

	input := []int64{3, 1}
	normalizeRoles(input)
	assert.Equal(t, []int64{3, 1}, input)
}
