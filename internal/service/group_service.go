package service

import (
	"context"
	"errors"

	"go-user-template/internal/model"
)

type GroupStore interface {
	FindByID(ctx context.Context, id int64) (model.Group, error)
	FindAll(ctx context.Context) ([]model.Group, error)
}

type GroupRoleLister interface {
	FindAllByGroupID(ctx context.Context, groupID int64) ([]model.Role, error)
}

// GroupService exposes the read-only group and role catalog.
type GroupService struct {
	groups GroupStore
	roles  GroupRoleLister
}

func NewGroupService(groups GroupStore, roles GroupRoleLister) *GroupService {
	return &GroupService{groups: groups, roles: roles}
}

func (s *GroupService) List(ctx context.Context) ([]model.Group, error) {
	return s.groups.FindAll(ctx)
}

func (s *GroupService) Roles(ctx context.Context, groupID int64) ([]model.Role, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, model.ErrGroupNotFound) {
			return nil, model.ErrItemNotFound
		}
		return nil, err
	}

	return s.roles.FindAllByGroupID(ctx, groupID)
}
