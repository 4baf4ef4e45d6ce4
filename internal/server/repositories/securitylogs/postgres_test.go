package securitylogs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+security_logs\s*\(id,\s*user_id,\s*event,\s*metadata,\s*created_at\)`).
		WithArgs(sqlmock.AnyArg(), "u1", "login_success", `{"ip":"1.2.3.4"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := &models.SecurityLog{UserID: "u1", Event: "login_success", Metadata: map[string]string{"ip": "1.2.3.4"}}
	require.NoError(t, repo.Create(context.Background(), e))
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestCreate_NilMetadata(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT\s+INTO\s+security_logs`).
		WithArgs(sqlmock.AnyArg(), "u1", "logout", `{}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), &models.SecurityLog{UserID: "u1", Event: "logout"}))
}

func TestCountSince(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+security_logs\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+event\s*=\s*\$2\s+AND\s+created_at\s*>=\s*\$3$`).
		WithArgs("u1", "verification_email_sent", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := repo.CountSince(context.Background(), "u1", "verification_email_sent", since)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestCountSince_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM\s+security_logs`).WillReturnError(errors.New("db down"))

	_, err := repo.CountSince(context.Background(), "u1", "x", time.Now())
	require.Error(t, err)
}

func TestListByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+security_logs\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$2$`).
		WithArgs("u1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "event", "metadata", "created_at"}).
			AddRow("l2", "u1", "logout", `{}`, now).
			AddRow("l1", "u1", "login_success", `{"method":"password"}`, now.Add(-time.Minute)))

	list, err := repo.ListByUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "password", list[1].Metadata["method"])
}

func TestListByUser_NoLimit(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)ORDER\s+BY\s+created_at\s+DESC$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "event", "metadata", "created_at"}))

	list, err := repo.ListByUser(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
