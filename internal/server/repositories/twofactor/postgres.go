package twofactor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX. Backup code hashes
// are stored as a JSON array in a TEXT column so the compare-and-swap can
// match on the exact serialized list.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func encodeCodes(codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.TwoFactorAuth, error) {
	query := `
		SELECT user_id, secret_encrypted, backup_codes, created_at, updated_at
		FROM two_factor_auth
		WHERE user_id = $1
	`
	tf := &models.TwoFactorAuth{}
	var codes string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&tf.UserID, &tf.SecretEncrypted, &codes, &tf.CreatedAt, &tf.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal([]byte(codes), &tf.BackupCodes); err != nil {
		return nil, fmt.Errorf("decode backup codes: %w", err)
	}
	return tf, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, tf *models.TwoFactorAuth) error {
	query := `
		INSERT INTO two_factor_auth (user_id, secret_encrypted, backup_codes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET secret_encrypted = EXCLUDED.secret_encrypted,
		    backup_codes = EXCLUDED.backup_codes,
		    updated_at = EXCLUDED.updated_at
	`
	codes, err := encodeCodes(tf.BackupCodes)
	if err != nil {
		return fmt.Errorf("encode backup codes: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, tf.UserID, tf.SecretEncrypted, codes, time.Now().UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReplaceBackupCodes(ctx context.Context, userID string, expected, next []string) (bool, error) {
	query := `
		UPDATE two_factor_auth
		SET backup_codes = $3, updated_at = $4
		WHERE user_id = $1 AND backup_codes = $2
	`
	exp, err := encodeCodes(expected)
	if err != nil {
		return false, fmt.Errorf("encode backup codes: %w", err)
	}
	nxt, err := encodeCodes(next)
	if err != nil {
		return false, fmt.Errorf("encode backup codes: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, userID, exp, nxt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_auth WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
