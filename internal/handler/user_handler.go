package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"go-user-template/internal/model"
	"go-user-template/pkg/apierror"
)

type userService interface {
	Create(ctx context.Context, actor model.TokenUser, req model.CreateUserRequest) (model.User, error)
	Update(ctx context.Context, actor model.TokenUser, id int64, req model.UpdateUserRequest) (model.User, error)
	UpdateBalance(ctx context.Context, actor model.TokenUser, id int64, balance decimal.Decimal) error
	UpdateBalanceAPI(ctx context.Context, id int64, balance decimal.Decimal) error
	Delete(ctx context.Context, actor model.TokenUser, id int64) error
	FindByID(ctx context.Context, id int64) (model.UserGroup, error)
	FindByIDAPI(ctx context.Context, id int64) (model.RemoteUser, error)
	SearchByName(ctx context.Context, name string) ([]model.User, error)
	SearchByCpf(ctx context.Context, cpf string) ([]model.User, error)
	FindByGroup(ctx context.Context, groupID int64) ([]model.User, error)
	FindAllActive(ctx context.Context, page model.PageRequest) (model.Page[model.User], error)
	FindAll(ctx context.Context) ([]model.User, error)
}

type UserHandler struct {
	service userService
}

func NewUserHandler(service userService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.CreateUserRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Create(requestContext(r), actor, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.FindAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.UserList{Users: users}, nil)
}

func (h *UserHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.service.FindAllActive(r.Context(), model.PageRequest{
		Page: parseIntOrDefault(query.Get("page"), 1),
		Size: parseIntOrDefault(query.Get("size"), 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.UserList{Users: page.Items}, &page.Meta)
}

// Search accepts exactly one of name or cpf.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := strings.TrimSpace(query.Get("name"))
	cpf := strings.TrimSpace(query.Get("cpf"))

	var (
		users []model.User
		err   error
	)
	switch {
	case name != "" && cpf != "":
		err = apierror.BadRequest("use either name or cpf, not both", "")
	case name != "":
		users, err = h.service.SearchByName(r.Context(), name)
	case cpf != "":
		users, err = h.service.SearchByCpf(r.Context(), cpf)
	default:
		err = apierror.BadRequest("name or cpf query parameter is required", "")
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.UserList{Users: users}, nil)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateUserRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Update(requestContext(r), actor, id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateBalanceRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.UpdateBalance(requestContext(r), actor, id, *payload.Balance); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(requestContext(r), actor, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) GetRemote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.FindByIDAPI(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) UpdateBalanceRemote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateBalanceRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.UpdateBalanceAPI(r.Context(), id, *payload.Balance); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
