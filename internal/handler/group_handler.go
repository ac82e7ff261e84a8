package handler

import (
	"context"
	"net/http"

	"go-user-template/internal/model"
)

type groupService interface {
	List(ctx context.Context) ([]model.Group, error)
	Roles(ctx context.Context, groupID int64) ([]model.Role, error)
}

type groupMembers interface {
	FindByGroup(ctx context.Context, groupID int64) ([]model.User, error)
}

type GroupHandler struct {
	groups  groupService
	members groupMembers
}

func NewGroupHandler(groups groupService, members groupMembers) *GroupHandler {
	return &GroupHandler{groups: groups, members: members}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"groups": groups}, nil)
}

func (h *GroupHandler) Users(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.members.FindByGroup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.UserList{Users: users}, nil)
}

func (h *GroupHandler) Roles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	roles, err := h.groups.Roles(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"roles": roles}, nil)
}
