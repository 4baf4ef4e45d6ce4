package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/oauthaccounts"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/securitylogs"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/twofactor"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/users"
)

// MemoryRepositoryManager serves every repository from one memstore.Store.
// The DBTX arguments are ignored.
type MemoryRepositoryManager struct {
	Store *memstore.Store
}

// NewMemoryRepositoryManager wraps store, or a fresh one when store is nil.
func NewMemoryRepositoryManager(store *memstore.Store) *MemoryRepositoryManager {
	if store == nil {
		store = memstore.New()
	}
	return &MemoryRepositoryManager{Store: store}
}

// RunMigrations is a no-op; the in-memory schema needs none.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.Store.Users() }

func (m *MemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository { return m.Store.Sessions() }

func (m *MemoryRepositoryManager) PasswordResetTokens(dbx.DBTX) authtokens.Repository {
	return m.Store.Tokens(authtokens.PasswordResetTokens)
}

func (m *MemoryRepositoryManager) EmailVerificationTokens(dbx.DBTX) authtokens.Repository {
	return m.Store.Tokens(authtokens.EmailVerificationTokens)
}

func (m *MemoryRepositoryManager) TwoFactor(dbx.DBTX) twofactor.Repository { return m.Store.TwoFactor() }

func (m *MemoryRepositoryManager) OAuthAccounts(dbx.DBTX) oauthaccounts.Repository {
	return m.Store.OAuthAccounts()
}

func (m *MemoryRepositoryManager) SecurityLogs(dbx.DBTX) securitylogs.Repository {
	return m.Store.SecurityLogs()
}
