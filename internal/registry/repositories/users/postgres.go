package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conanshim/registry/internal/common"
	"github.com/conanshim/registry/internal/dbx"
	"github.com/conanshim/registry/internal/registry/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT username, password_hash, password, token, role, last_login FROM users
		 WHERE username = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.Username, &user.PasswordHash, &user.Password, &user.Token, &user.Role, &user.LastLogin)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	query :=
		`SELECT username, password_hash, password, token, role, last_login FROM users
		 WHERE token = $1 AND token <> ''
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&user.Username, &user.PasswordHash, &user.Password, &user.Token, &user.Role, &user.LastLogin)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) UpdateToken(ctx context.Context, username, token string, lastLogin int64) error {
	query :=
		`UPDATE users SET token = $2, last_login = $3
		 WHERE username = $1
		 `

	res, err := r.db.ExecContext(ctx, query, username, token, lastLogin)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (username, password_hash, password, token, role, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (username) DO UPDATE SET
		   password_hash = EXCLUDED.password_hash,
		   password = EXCLUDED.password,
		   role = EXCLUDED.role
		 `

	_, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.Password, user.Token, user.Role, user.LastLogin)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
