package authtokens

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

// PostgresRepository implements Repository for a single token table.
type PostgresRepository struct {
	db    dbx.DBTX
	table Table
}

// NewPostgresRepository binds a repository to db and one of the Table
// constants.
func NewPostgresRepository(db dbx.DBTX, table Table) *PostgresRepository {
	switch table {
	case PasswordResetTokens, EmailVerificationTokens:
	default:
		panic(fmt.Sprintf("authtokens: unknown table %q", table))
	}
	return &PostgresRepository{db: db, table: table}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.AuthToken) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.table)

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.AuthToken, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM %s
		WHERE token_hash = $1
	`, r.table)

	t := &models.AuthToken{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) DeleteByHash(ctx context.Context, hash string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE token_hash = $1`, r.table)
	if _, err := r.db.ExecContext(ctx, query, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.table)
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, r.table)
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
