package securitylogs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over dbx.DBTX. Metadata is kept
// as a JSON object in a TEXT column.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.SecurityLog) error {
	query := `
		INSERT INTO security_logs (id, user_id, event, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.Event, string(b), e.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountSince(ctx context.Context, userID, event string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM security_logs
		WHERE user_id = $1 AND event = $2 AND created_at >= $3
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, userID, event, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.SecurityLog, error) {
	query := `
		SELECT id, user_id, event, metadata, created_at
		FROM security_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.SecurityLog
	for rows.Next() {
		var (
			e    models.SecurityLog
			meta string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Event, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
