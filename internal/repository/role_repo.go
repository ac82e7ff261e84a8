package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-user-template/internal/database"
	"go-user-template/internal/model"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// FindAllByUserID returns the role ids linked to a user in ascending order.
func (r *RoleRepository) FindAllByUserID(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("find roles by user: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan role id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *RoleRepository) FindAllByGroupID(ctx context.Context, groupID int64) ([]model.Role, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, group_id FROM roles WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("find roles by group: %w", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0)
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.GroupID); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ReplaceForUser swaps the role links of a user. Callers run it inside a transaction.
func (r *RoleRepository) ReplaceForUser(ctx context.Context, userID int64, roleIDs []int64) error {
	q := database.Conn(ctx, r.pool)

	if _, err := q.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user roles: %w", err)
	}

	if len(roleIDs) == 0 {
		return nil
	}

	_, err := q.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, role_id FROM unnest($2::bigint[]) AS role_id
		 ON CONFLICT DO NOTHING`, userID, roleIDs)
	if err != nil {
		return translateWriteError("link user roles", err)
	}
	return nil
}
