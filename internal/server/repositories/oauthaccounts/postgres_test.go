package oauthaccounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/numeria/internal/common"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
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

var cols = []string{"id", "user_id", "provider", "provider_user_id", "access_token_encrypted",
	"refresh_token_encrypted", "expires_at", "created_at", "updated_at"}

const upsertQ = `(?s)^INSERT\s+INTO\s+oauth_accounts.*ON\s+CONFLICT\s+\(user_id,\s*provider\)\s+DO\s+UPDATE.*RETURNING\s+id$`

func TestUpsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	exp := time.Now().Add(time.Hour)

	mock.ExpectQuery(upsertQ).
		WithArgs(sqlmock.AnyArg(), "u1", "google", "g-1", "acc", "", sql.NullTime{Time: exp, Valid: true}, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	a := &models.OAuthAccount{UserID: "u1", Provider: "google", ProviderUserID: "g-1", AccessTokenEncrypted: "acc", ExpiresAt: exp}
	require.NoError(t, repo.Upsert(context.Background(), a))
	assert.Equal(t, "existing-id", a.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_LinkedElsewhere(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(upsertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: identityConstraint})

	err := repo.Upsert(context.Background(), &models.OAuthAccount{UserID: "u2", Provider: "google", ProviderUserID: "g-1"})
	assert.ErrorIs(t, err, common.ErrOAuthLinkedElsewhere)
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(upsertQ).WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), &models.OAuthAccount{UserID: "u2"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrOAuthLinkedElsewhere)
}

func TestFindByProviderUserID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+oauth_accounts\s+WHERE\s+provider\s*=\s*\$1\s+AND\s+provider_user_id\s*=\s*\$2$`).
		WithArgs("github", "42").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("a1", "u1", "github", "42", "acc", "ref", nil, now, now))

	a, err := repo.FindByProviderUserID(context.Background(), "github", "42")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UserID)
	assert.True(t, a.ExpiresAt.IsZero())
}

func TestFindByUserAndProvider_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)FROM\s+oauth_accounts\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+provider\s*=\s*\$2$`).
		WithArgs("u1", "github").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUserAndProvider(context.Background(), "u1", "github")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+oauth_accounts\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+provider$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "u1", "github", "42", "acc", "", nil, now, now).
			AddRow("a2", "u1", "google", "g", "acc", "ref", now, now, now))

	list, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "github", list[0].Provider)
	assert.False(t, list[1].ExpiresAt.IsZero())
}

func TestCountByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)\s+FROM\s+oauth_accounts\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := repo.CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`^DELETE\s+FROM\s+oauth_accounts\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+provider\s*=\s*\$2$`).
		WithArgs("u1", "github").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+oauth_accounts`).
		WithArgs("u1", "github").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), "u1", "github")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(context.Background(), "u1", "github")
	require.NoError(t, err)
	assert.False(t, ok)
}
