package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-user-template/internal/database"
	"go-user-template/internal/model"
)

type GroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

func (r *GroupRepository) FindByID(ctx context.Context, id int64) (model.Group, error) {
	var g model.Group
	err := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name FROM groups WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Group{}, model.ErrGroupNotFound
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("find group by id: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) FindAll(ctx context.Context) ([]model.Group, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `SELECT id, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]model.Group, 0)
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
