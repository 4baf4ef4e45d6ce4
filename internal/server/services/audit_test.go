package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/metrics"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityLogWriter_Record(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w := NewSecurityLogWriter(nil, repomanager.NewMemoryRepositoryManager(store), logging.Nop(), metrics.New())

	w.Record(ctx, "u1", "login_success", "ip", "10.0.0.1", "dangling")
	w.Record(ctx, "u1", "logout")

	entries, err := store.SecurityLogs().ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byEvent := map[string]map[string]string{}
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
		byEvent[e.Event] = e.Metadata
	}
	assert.Equal(t, map[string]string{"ip": "10.0.0.1"}, byEvent["login_success"])
	assert.Empty(t, byEvent["logout"])
}

func TestSecurityLogWriter_FailureIsLoggedNotReturned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger, err := logging.New(&buf, logging.Options{Format: "json"})
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO security_logs`).WillReturnError(errors.New("disk full"))

	w := NewSecurityLogWriter(db, repomanager.NewPostgresRepositoryManager(), logger, nil)
	assert.NotPanics(t, func() { w.Record(context.Background(), "u1", "logout") })

	assert.Contains(t, buf.String(), "security log write failed")
	assert.Contains(t, buf.String(), "disk full")
	assert.Contains(t, buf.String(), `"event":"logout"`)
	require.NoError(t, mock.ExpectationsWereMet())
}
