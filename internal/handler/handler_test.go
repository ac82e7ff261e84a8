package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-user-template/internal/middleware"
	"go-user-template/internal/model"
)

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Create(ctx context.Context, actor model.TokenUser, req model.CreateUserRequest) (model.User, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserService) Update(ctx context.Context, actor model.TokenUser, id int64, req model.UpdateUserRequest) (model.User, error) {
	args := m.Called(ctx, actor, id, req)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserService) UpdateBalance(ctx context.Context, actor model.TokenUser, id int64, balance decimal.Decimal) error {
	return m.Called(ctx, actor, id, balance).Error(0)
}

func (m *mockUserService) UpdateBalanceAPI(ctx context.Context, id int64, balance decimal.Decimal) error {
	return m.Called(ctx, id, balance).Error(0)
}

func (m *mockUserService) Delete(ctx context.Context, actor model.TokenUser, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockUserService) FindByID(ctx context.Context, id int64) (model.UserGroup, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.UserGroup), args.Error(1)
}

func (m *mockUserService) FindByIDAPI(ctx context.Context, id int64) (model.RemoteUser, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.RemoteUser), args.Error(1)
}

func (m *mockUserService) SearchByName(ctx context.Context, name string) ([]model.User, error) {
	args := m.Called(ctx, name)
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserService) SearchByCpf(ctx context.Context, cpf string) ([]model.User, error) {
	args := m.Called(ctx, cpf)
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserService) FindByGroup(ctx context.Context, groupID int64) ([]model.User, error) {
	args := m.Called(ctx, groupID)
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserService) FindAllActive(ctx context.Context, page model.PageRequest) (model.Page[model.User], error) {
	args := m.Called(ctx, page)
	return args.Get(0).(model.Page[model.User]), args.Error(1)
}

func (m *mockUserService) FindAll(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.User), args.Error(1)
}

var admin = model.TokenUser{ID: 1, Name: "Admin", Username: "admin@x.com", GroupID: 1, Roles: []int64{1}}

func userRoutes(svc userService) http.Handler {
	h := NewUserHandler(svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.ContextWithUser(r.Context(), admin)))
		})
	})
	r.Post("/users", h.Create)
	r.Get("/users/active", h.ListActive)
	r.Get("/users/search", h.Search)
	r.Get("/users/{id}", h.Get)
	r.Patch("/users/{id}/balance", h.UpdateBalance)
	r.Delete("/users/{id}", h.Delete)
	r.Get("/users/{id}/api", h.GetRemote)
	return r
}

func do(t *testing.T, h http.Handler, method string, target string, body string) (*httptest.ResponseRecorder, model.APIResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp model.APIResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestUserHandler_Create(t *testing.T) {
	svc := &mockUserService{}
	req := model.CreateUserRequest{Name: "Ana", Email: "ana@x.com", Password: "secret123", GroupID: 2, Roles: []int64{3}}
	svc.On("Create", mock.Anything, admin, req).Return(model.User{ID: 7, Name: "Ana", Email: "ana@x.com", GroupID: 2}, nil)

	rec, resp := do(t, userRoutes(svc), http.MethodPost, "/users",
		`{"name":"Ana","email":"ana@x.com","password":"secret123","group_id":2,"roles":[3]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	svc.AssertExpectations(t)
}

func TestUserHandler_CreateValidation(t *testing.T) {
	svc := &mockUserService{}

	rec, resp := do(t, userRoutes(svc), http.MethodPost, "/users",
		`{"name":"","email":"not-an-email","password":"short","group_id":0}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "email must be a valid email")
	assert.Contains(t, resp.Error.Details, "group_id is required")
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_CreateRejectsUnknownFields(t *testing.T) {
	rec, resp := do(t, userRoutes(&mockUserService{}), http.MethodPost, "/users", `{"nickname":"x"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestUserHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "item not found", err: model.ErrItemNotFound, wantStatus: http.StatusNotFound, wantCode: "ITEM_NOT_FOUND"},
		{name: "wrapped not found", err: fmt.Errorf("find: %w", model.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "upstream failure", err: fmt.Errorf("%w: status 500", model.ErrAPIError), wantStatus: http.StatusBadGateway, wantCode: "API_ERROR"},
		{name: "unexpected", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockUserService{}
			svc.On("FindByIDAPI", mock.Anything, int64(5)).Return(model.RemoteUser{}, tc.err)

			rec, resp := do(t, userRoutes(svc), http.MethodGet, "/users/5/api", "")

			require.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}

func TestUserHandler_InvalidID(t *testing.T) {
	rec, resp := do(t, userRoutes(&mockUserService{}), http.MethodGet, "/users/abc", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestUserHandler_UpdateBalance(t *testing.T) {
	svc := &mockUserService{}
	svc.On("UpdateBalance", mock.Anything, admin, int64(3), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("150.25"))
	})).Return(nil)

	rec, _ := do(t, userRoutes(svc), http.MethodPatch, "/users/3/balance", `{"balance":"150.25"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, resp := do(t, userRoutes(svc), http.MethodPatch, "/users/3/balance", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	svc.AssertNumberOfCalls(t, "UpdateBalance", 1)
}

func TestUserHandler_DeleteForbidden(t *testing.T) {
	svc := &mockUserService{}
	svc.On("Delete", mock.Anything, admin, int64(1)).Return(model.ErrForbidden)

	rec, resp := do(t, userRoutes(svc), http.MethodDelete, "/users/1", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestUserHandler_Search(t *testing.T) {
	svc := &mockUserService{}
	svc.On("SearchByName", mock.Anything, "ana").Return([]model.User{{ID: 1, Name: "Ana"}}, nil)
	svc.On("SearchByCpf", mock.Anything, "123").Return([]model.User{}, nil)
	h := userRoutes(svc)

	rec, _ := do(t, h, http.MethodGet, "/users/search?name=ana", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/users/search?cpf=123", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, h, http.MethodGet, "/users/search", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)

	rec, _ = do(t, h, http.MethodGet, "/users/search?name=a&cpf=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestUserHandler_ListActive(t *testing.T) {
	svc := &mockUserService{}
	page := model.PageRequest{Page: 2, Size: 5}
	svc.On("FindAllActive", mock.Anything, page).Return(model.Page[model.User]{
		Items: []model.User{{ID: 6}},
		Meta:  model.Meta{Page: 2, Limit: 5, Total: 6, TotalPages: 2},
	}, nil)

	rec, resp := do(t, userRoutes(svc), http.MethodGet, "/users/active?page=2&size=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 6, resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
}

type stubAuthService struct {
	pair     model.TokenPair
	identity model.TokenUser
	err      error
}

func (s stubAuthService) Authenticate(context.Context, string, string) (model.TokenPair, error) {
	return s.pair, s.err
}

func (s stubAuthService) Refresh(context.Context, string) (model.TokenPair, error) {
	return s.pair, s.err
}

func (s stubAuthService) ResolveIdentity(context.Context, string) (model.TokenUser, error) {
	return s.identity, s.err
}

func TestAuthHandler_Login(t *testing.T) {
	ok := NewAuthHandler(stubAuthService{pair: model.TokenPair{TokenType: "Bearer", AccessToken: "a", RefreshToken: "r"}})
	rec, resp := do(t, http.HandlerFunc(ok.Login), http.MethodPost, "/auth/login", `{"username":"ana@x.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	bad := NewAuthHandler(stubAuthService{err: model.ErrInvalidCredentials})
	rec, resp = do(t, http.HandlerFunc(bad.Login), http.MethodPost, "/auth/login", `{"username":"ana@x.com","password":"nope"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", resp.Error.Code)

	rec, _ = do(t, http.HandlerFunc(ok.Login), http.MethodPost, "/auth/login", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_MeRequiresUser(t *testing.T) {
	h := NewAuthHandler(stubAuthService{identity: admin})

	rec, resp := do(t, http.HandlerFunc(h.Me), http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), admin))
	out := httptest.NewRecorder()
	h.Me(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

type stubPinger struct{ err error }

func (s stubPinger) Health(context.Context) error { return s.err }

func TestHealthHandler_Ready(t *testing.T) {
	rec, _ := do(t, http.HandlerFunc(NewHealthHandler(stubPinger{}).Ready), http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, http.HandlerFunc(NewHealthHandler(stubPinger{err: errors.New("down")}).Ready), http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", resp.Error.Code)
}
