package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"go-user-template/internal/client/userapi"
	"go-user-template/internal/metrics"
	"go-user-template/internal/model"
	"go-user-template/internal/util"
)

const (
	auditActionCreate  = "user.create"
	auditActionUpdate  = "user.update"
	auditActionBalance = "user.balance"
	auditActionDelete  = "user.delete"

	auditStatusSuccess = "success"
	auditStatusFailure = "failure"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindOneByID(ctx context.Context, id int64) (model.UserGroup, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	Save(ctx context.Context, u model.User) error
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) (int64, error)
	SearchByName(ctx context.Context, name string) ([]model.User, error)
	SearchByCpf(ctx context.Context, cpf string) ([]model.User, error)
	FindByGroup(ctx context.Context, groupID int64) ([]model.User, error)
	FindAllActive(ctx context.Context, page model.PageRequest) ([]model.User, int, error)
	FindAll(ctx context.Context) ([]model.User, error)
}

type RoleStore interface {
	FindAllByUserID(ctx context.Context, userID int64) ([]int64, error)
	ReplaceForUser(ctx context.Context, userID int64, roleIDs []int64) error
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type BalanceAPI interface {
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) (*userapi.Response, error)
	GetByID(ctx context.Context, id int64) (*userapi.Response, error)
}

type AuditLogger interface {
	Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, before any, after any, errText string)
}

type UserService struct {
	users  UserStore
	roles  RoleStore
	tx     TxRunner
	remote BalanceAPI
	audit  AuditLogger
}

func NewUserService(users UserStore, roles RoleStore, tx TxRunner, remote BalanceAPI, audit AuditLogger) *UserService {
	return &UserService{users: users, roles: roles, tx: tx, remote: remote, audit: audit}
}

// Create registers a new active user. The email doubles as the login name
// and must not belong to any user, active or not.
func (s *UserService) Create(ctx context.Context, actor model.TokenUser, req model.CreateUserRequest) (model.User, error) {
	email := strings.TrimSpace(req.Email)
	roles := normalizeRoles(req.Roles)

	hash, err := HashPassword(req.Password)
	if err != nil {
		return model.User{}, err
	}

	var created model.User
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		exists, err := s.users.ExistsByUsername(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return model.ErrUsernameAlreadyExists
		}

		created, err = s.users.Create(ctx, model.User{
			Name:         util.SanitizeName(req.Name),
			Email:        email,
			PasswordHash: hash,
			Cpf:          strings.TrimSpace(req.Cpf),
			GroupID:      req.GroupID,
			Active:       true,
			Balance:      decimal.Zero,
		})
		if err != nil {
			return err
		}

		if err := s.roles.ReplaceForUser(ctx, created.ID, roles); err != nil {
			return err
		}
		created.Roles = roles
		return nil
	})

	s.record(ctx, "create", auditActionCreate, actor, userResource(created.ID, email), nil, created, err)
	if err != nil {
		return model.User{}, err
	}

	slog.Info("user created", "user_id", created.ID, "actor_id", actor.ID)
	return created, nil
}

// Update overwrites name, cpf, password, group and roles of an existing
// user. Email, active flag and balance are left as they are.
func (s *UserService) Update(ctx context.Context, actor model.TokenUser, id int64, req model.UpdateUserRequest) (model.User, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return model.User{}, err
	}
	roles := normalizeRoles(req.Roles)

	var before, after model.User
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.users.FindByID(ctx, id)
		if errors.Is(err, model.ErrUserNotFound) {
			return model.ErrItemNotFound
		}
		if err != nil {
			return err
		}
		before = current

		current.Name = util.SanitizeName(req.Name)
		current.Cpf = strings.TrimSpace(req.Cpf)
		current.PasswordHash = hash
		current.GroupID = req.GroupID
		current.Roles = roles

		if err := s.users.Save(ctx, current); err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				return model.ErrItemNotFound
			}
			return err
		}
		if err := s.roles.ReplaceForUser(ctx, current.ID, roles); err != nil {
			return err
		}

		after = current
		return nil
	})

	s.record(ctx, "update", auditActionUpdate, actor, userResource(id, ""), before, after, err)
	if err != nil {
		return model.User{}, err
	}
	return after, nil
}

// UpdateBalance sets the local balance in one statement. Zero affected rows
// is reported as ErrItemNotFound.
func (s *UserService) UpdateBalance(ctx context.Context, actor model.TokenUser, id int64, balance decimal.Decimal) error {
	affected, err := s.users.UpdateBalance(ctx, id, balance)
	if err == nil && affected == 0 {
		err = model.ErrItemNotFound
	}

	s.record(ctx, "balance", auditActionBalance, actor, userResource(id, ""), nil, map[string]any{"balance": balance}, err)
	return err
}

// UpdateBalanceAPI forwards the balance to the upstream user API.
func (s *UserService) UpdateBalanceAPI(ctx context.Context, id int64, balance decimal.Decimal) error {
	resp, err := s.remote.UpdateBalance(ctx, id, balance)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrAPIError, err)
	}

	return remoteStatusError(resp)
}

// Delete deactivates a user. Callers can never deactivate themselves.
func (s *UserService) Delete(ctx context.Context, actor model.TokenUser, id int64) error {
	if actor.ID == id {
		s.record(ctx, "delete", auditActionDelete, actor, userResource(id, ""), nil, nil, model.ErrForbidden)
		return model.ErrForbidden
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.users.FindByID(ctx, id)
		if errors.Is(err, model.ErrUserNotFound) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}

		current.Active = false
		if err := s.users.Save(ctx, current); err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				return model.ErrNotFound
			}
			return err
		}
		return nil
	})

	s.record(ctx, "delete", auditActionDelete, actor, userResource(id, ""), nil, map[string]any{"active": false}, err)
	return err
}

func (s *UserService) FindByID(ctx context.Context, id int64) (model.UserGroup, error) {
	ug, err := s.users.FindOneByID(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserGroup{}, model.ErrItemNotFound
	}
	return ug, err
}

// FindByIDAPI reads a user from the upstream user API.
func (s *UserService) FindByIDAPI(ctx context.Context, id int64) (model.RemoteUser, error) {
	resp, err := s.remote.GetByID(ctx, id)
	if err != nil {
		return model.RemoteUser{}, fmt.Errorf("%w: %v", model.ErrAPIError, err)
	}
	if err := remoteStatusError(resp); err != nil {
		return model.RemoteUser{}, err
	}

	var envelope userapi.Envelope[model.RemoteUser]
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return model.RemoteUser{}, fmt.Errorf("%w: decode user: %v", model.ErrAPIError, err)
	}
	return envelope.Data, nil
}

func (s *UserService) SearchByName(ctx context.Context, name string) ([]model.User, error) {
	return s.users.SearchByName(ctx, util.SanitizeName(name))
}

// SearchByCpf matches by prefix; formatting such as "123.456" is ignored.
func (s *UserService) SearchByCpf(ctx context.Context, cpf string) ([]model.User, error) {
	digits := util.DigitsOnly(cpf)
	if digits == "" {
		return []model.User{}, nil
	}
	return s.users.SearchByCpf(ctx, digits)
}

func (s *UserService) FindByGroup(ctx context.Context, groupID int64) ([]model.User, error) {
	return s.users.FindByGroup(ctx, groupID)
}

func (s *UserService) FindAllActive(ctx context.Context, page model.PageRequest) (model.Page[model.User], error) {
	page = page.Normalize()

	users, total, err := s.users.FindAllActive(ctx, page)
	if err != nil {
		return model.Page[model.User]{}, err
	}

	return model.Page[model.User]{Items: users, Meta: model.NewMeta(page, total)}, nil
}

func (s *UserService) FindAll(ctx context.Context) ([]model.User, error) {
	return s.users.FindAll(ctx)
}

func (s *UserService) record(ctx context.Context, operation string, action string, actor model.TokenUser, resource string, before any, after any, err error) {
	status := auditStatusSuccess
	errText := ""
	if err != nil {
		status = auditStatusFailure
		errText = err.Error()
		after = nil
	}

	metrics.UserWritesTotal.WithLabelValues(operation, status).Inc()

	if s.audit != nil {
		s.audit.Log(ctx, action, auditActorOf(ctx, actor), status, resource, before, after, errText)
	}
}

func remoteStatusError(resp *userapi.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.ErrNotFound
	case resp.IsError():
		return fmt.Errorf("%w: upstream status %d", model.ErrAPIError, resp.StatusCode)
	default:
		return nil
	}
}

// HashPassword bcrypts a plain-text password with the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// normalizeRoles sorts and de-duplicates role ids.
func normalizeRoles(roles []int64) []int64 {
	out := slices.Clone(roles)
	if out == nil {
		out = []int64{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func userResource(id int64, fallback string) string {
	if id == 0 {
		return "users/" + fallback
	}
	return "users/" + strconv.FormatInt(id, 10)
}
