// Package repomanager vends repository implementations bound to a DBTX and
// owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/oauthaccounts"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/securitylogs"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/twofactor"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/users"
)

// RepositoryManager is the factory services use to obtain repositories for
// either the shared pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	PasswordResetTokens(db dbx.DBTX) authtokens.Repository
	EmailVerificationTokens(db dbx.DBTX) authtokens.Repository
	TwoFactor(db dbx.DBTX) twofactor.Repository
	OAuthAccounts(db dbx.DBTX) oauthaccounts.Repository
	SecurityLogs(db dbx.DBTX) securitylogs.Repository
}
