package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/migrations"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/oauthaccounts"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/securitylogs"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/twofactor"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) PasswordResetTokens(db dbx.DBTX) authtokens.Repository {
	return authtokens.NewPostgresRepository(db, authtokens.PasswordResetTokens)
}

func (m *PostgresRepositoryManager) EmailVerificationTokens(db dbx.DBTX) authtokens.Repository {
	return authtokens.NewPostgresRepository(db, authtokens.EmailVerificationTokens)
}

func (m *PostgresRepositoryManager) TwoFactor(db dbx.DBTX) twofactor.Repository {
	return twofactor.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) OAuthAccounts(db dbx.DBTX) oauthaccounts.Repository {
	return oauthaccounts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) SecurityLogs(db dbx.DBTX) securitylogs.Repository {
	return securitylogs.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
