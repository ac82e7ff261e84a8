package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultGroupName = "administrators"
	defaultRoleName  = "admin"
)

// SeedAdmin creates the default group, role and administrator when the users
// table is empty. It is a no-op when password is blank.
func (db *DB) SeedAdmin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		slog.Info("admin seed skipped; ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}

	return db.WithTx(ctx, func(ctx context.Context) error {
		q := Conn(ctx, db.Pool)

		var count int
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if count > 0 {
			return nil
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}

		var groupID int64
		if err := q.QueryRow(ctx,
			`INSERT INTO groups (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, defaultGroupName).Scan(&groupID); err != nil {
			return fmt.Errorf("seed group: %w", err)
		}

		var roleID int64
		if err := q.QueryRow(ctx,
			`INSERT INTO roles (name, group_id) VALUES ($1, $2)
			 ON CONFLICT (group_id, name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, defaultRoleName, groupID).Scan(&roleID); err != nil {
			return fmt.Errorf("seed role: %w", err)
		}

		var userID int64
		if err := q.QueryRow(ctx,
			`INSERT INTO users (name, email, password_hash, group_id)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			"Administrator", email, string(hash), groupID).Scan(&userID); err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
			return fmt.Errorf("seed admin role: %w", err)
		}

		slog.Info("default administrator created", "email", email, "user_id", userID)
		return nil
	})
}
