package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/memstore"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ RepositoryManager = (*PostgresRepositoryManager)(nil)
	_ RepositoryManager = (*MemoryRepositoryManager)(nil)
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgresFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	assert.NotNil(t, m.Users(db))
	assert.NotNil(t, m.Sessions(db))
	assert.NotNil(t, m.PasswordResetTokens(db))
	assert.NotNil(t, m.EmailVerificationTokens(db))
	assert.NotNil(t, m.TwoFactor(db))
	assert.NotNil(t, m.OAuthAccounts(db))
	assert.NotNil(t, m.SecurityLogs(db))
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db))
}

func TestRunMigrations_Error(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	assert.EqualError(t, err, "boom")
}

func TestMemoryManager_SharesStore(t *testing.T) {
	store := memstore.New()
	m := NewMemoryRepositoryManager(store)
	ctx := context.Background()

	require.NoError(t, m.RunMigrations(ctx, nil))

	u, err := m.Users(nil).Create(ctx, &models.User{Email: "a@x.com"})
	require.NoError(t, err)

	got, err := store.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	assert.NotNil(t, m.Sessions(nil))
	assert.Equal(t, 0, store.Tokens(authtokens.PasswordResetTokens).Len())
	assert.NotNil(t, NewMemoryRepositoryManager(nil).Store)
}
