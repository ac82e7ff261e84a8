package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"go-user-template/internal/database"
	"go-user-template/internal/model"
	"go-user-template/pkg/apierror"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const userColumns = `u.id, u.name, u.email, u.password_hash, u.cpf, u.group_id, u.active,
	u.balance::text, u.created_at, u.updated_at,
	COALESCE((SELECT array_agg(ur.role_id ORDER BY ur.role_id)
	          FROM user_roles ur WHERE ur.user_id = u.id), '{}'::bigint[])`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) q(ctx context.Context) database.Querier {
	return database.Conn(ctx, r.pool)
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.q(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindOneByID returns the user joined with its group.
func (r *UserRepository) FindOneByID(ctx context.Context, id int64) (model.UserGroup, error) {
	var (
		ug      model.UserGroup
		balance string
	)
	err := r.q(ctx).QueryRow(ctx,
		`SELECT u.id, u.name, u.email, u.cpf, u.group_id, g.name, u.active, u.balance::text,
		        COALESCE((SELECT array_agg(ur.role_id ORDER BY ur.role_id)
		                  FROM user_roles ur WHERE ur.user_id = u.id), '{}'::bigint[])
		 FROM users u
		 JOIN groups g ON g.id = u.group_id
		 WHERE u.id = $1`, id).
		Scan(&ug.ID, &ug.Name, &ug.Email, &ug.Cpf, &ug.GroupID, &ug.GroupName, &ug.Active, &balance, &ug.Roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.UserGroup{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.UserGroup{}, fmt.Errorf("find user with group: %w", err)
	}

	ug.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return model.UserGroup{}, fmt.Errorf("parse balance: %w", err)
	}
	return ug, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.q(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE lower(u.email) = lower($1)`,
		strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByUsernameActive(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.q(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE lower(u.email) = lower($1) AND u.active`,
		strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find active user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.q(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		strings.TrimSpace(username)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// Create inserts the user row and returns it with the generated id and timestamps.
func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, cpf, group_id, active, balance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)
		 RETURNING id, created_at, updated_at`,
		u.Name, strings.TrimSpace(u.Email), u.PasswordHash, u.Cpf, u.GroupID, u.Active, u.Balance.String()).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, translateWriteError("create user", err)
	}
	return u, nil
}

// Save overwrites the mutable columns of an existing user. Email and balance are untouched.
func (r *UserRepository) Save(ctx context.Context, u model.User) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE users
		 SET name = $2, password_hash = $3, cpf = $4, group_id = $5, active = $6, updated_at = now()
		 WHERE id = $1`,
		u.ID, u.Name, u.PasswordHash, u.Cpf, u.GroupID, u.Active)
	if err != nil {
		return translateWriteError("save user", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// UpdateBalance sets the balance in a single statement and reports the rows affected.
func (r *UserRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) (int64, error) {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE users SET balance = $2::numeric, updated_at = now() WHERE id = $1`,
		id, balance.String())
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) SearchByName(ctx context.Context, name string) ([]model.User, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.name ILIKE '%' || $1 || '%' ESCAPE '\'
		 ORDER BY u.name, u.id`, escapeLike(strings.TrimSpace(name)))
	if err != nil {
		return nil, fmt.Errorf("search users by name: %w", err)
	}
	return collectUsers(rows)
}

func (r *UserRepository) SearchByCpf(ctx context.Context, cpf string) ([]model.User, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.cpf LIKE $1 || '%' ESCAPE '\'
		 ORDER BY u.cpf, u.id`, escapeLike(strings.TrimSpace(cpf)))
	if err != nil {
		return nil, fmt.Errorf("search users by cpf: %w", err)
	}
	return collectUsers(rows)
}

func (r *UserRepository) FindByGroup(ctx context.Context, groupID int64) ([]model.User, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.group_id = $1 ORDER BY u.name, u.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("find users by group: %w", err)
	}
	return collectUsers(rows)
}

// FindAllActive returns one page of active users and the total number of active users.
func (r *UserRepository) FindAllActive(ctx context.Context, page model.PageRequest) ([]model.User, int, error) {
	page = page.Normalize()

	var total int
	if err := r.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count active users: %w", err)
	}

	rows, err := r.q(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.active
		 ORDER BY u.id
		 LIMIT $1 OFFSET $2`, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list active users: %w", err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]model.User, error) {
	rows, err := r.q(ctx).Query(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		u       model.User
		balance string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Cpf, &u.GroupID, &u.Active,
		&balance, &u.CreatedAt, &u.UpdatedAt, &u.Roles); err != nil {
		return model.User{}, err
	}

	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return model.User{}, fmt.Errorf("parse balance: %w", err)
	}
	u.Balance = parsed
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]model.User, error) {
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func translateWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return model.ErrUsernameAlreadyExists
		case pgForeignKeyViolation:
			return apierror.BadRequest("referenced group or role does not exist", pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
