package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, name, password_hash, email_verified, two_factor_enabled,
		        is_blocked, preferred_lang, is_admin, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, email, name, password_hash, email_verified, two_factor_enabled,
		                    is_blocked, preferred_lang, is_admin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at
		 `

	u := *user
	u.ID = uuid.NewString()

	err := r.db.QueryRowContext(ctx, query,
		u.ID, u.Email, u.Name, u.PasswordHash, u.EmailVerified, u.TwoFactorEnabled,
		u.IsBlocked, u.PreferredLang, u.IsAdmin).Scan(&u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &u, nil
}

// GetByID returns common.ErrorNotFound for ids that are not UUIDs without
// querying, so malformed client input never surfaces as a db error.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.EmailVerified, &u.TwoFactorEnabled,
		&u.IsBlocked, &u.PreferredLang, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash)
}

func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	return r.update(ctx, `UPDATE users SET email_verified = $2, updated_at = $3 WHERE id = $1`, id, verified)
}

func (r *PostgresRepository) SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error {
	return r.update(ctx, `UPDATE users SET two_factor_enabled = $2, updated_at = $3 WHERE id = $1`, id, enabled)
}

func (r *PostgresRepository) update(ctx context.Context, query string, id string, value any) error {
	res, err := r.db.ExecContext(ctx, query, id, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
