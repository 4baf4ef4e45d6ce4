package oauthaccounts

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

const (
	accountColumns = `id, user_id, provider, provider_user_id, access_token_encrypted,
		       refresh_token_encrypted, expires_at, created_at, updated_at`

	identityConstraint = "oauth_accounts_provider_identity_key"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (r *PostgresRepository) Upsert(ctx context.Context, a *models.OAuthAccount) error {
	query := `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_user_id, access_token_encrypted,
		                            refresh_token_encrypted, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id, provider) DO UPDATE
		SET provider_user_id = EXCLUDED.provider_user_id,
		    access_token_encrypted = EXCLUDED.access_token_encrypted,
		    refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, query,
		id, a.UserID, a.Provider, a.ProviderUserID, a.AccessTokenEncrypted,
		a.RefreshTokenEncrypted, nullTime(a.ExpiresAt), time.Now().UTC()).Scan(&a.ID)
	if err != nil {
		if name, ok := dbx.UniqueViolation(err); ok && name == identityConstraint {
			return common.ErrOAuthLinkedElsewhere
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByProviderUserID(ctx context.Context, provider, providerUserID string) (*models.OAuthAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM oauth_accounts WHERE provider = $1 AND provider_user_id = $2`
	return scanOne(r.db.QueryRowContext(ctx, query, provider, providerUserID))
}

func (r *PostgresRepository) FindByUserAndProvider(ctx context.Context, userID, provider string) (*models.OAuthAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM oauth_accounts WHERE user_id = $1 AND provider = $2`
	return scanOne(r.db.QueryRowContext(ctx, query, userID, provider))
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.OAuthAccount, error) {
	a := &models.OAuthAccount{}
	var exp sql.NullTime
	if err := s.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderUserID, &a.AccessTokenEncrypted,
		&a.RefreshTokenEncrypted, &exp, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if exp.Valid {
		a.ExpiresAt = exp.Time
	}
	return a, nil
}

func scanOne(row *sql.Row) (*models.OAuthAccount, error) {
	a, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.OAuthAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM oauth_accounts WHERE user_id = $1 ORDER BY provider`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.OAuthAccount
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM oauth_accounts WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, provider string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oauth_accounts WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
