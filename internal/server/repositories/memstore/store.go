// Package memstore implements every repository contract in process memory.
// It backs the server when DatabaseDSN is "memory" and the service tests.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/authtokens"
)

// Store holds all tables. Values are copied on the way in and out so callers
// never share memory with the store.
type Store struct {
	// txMu serializes WithinTx callers, standing in for row locks.
	txMu sync.Mutex

	mu        sync.RWMutex
	users     map[string]models.User
	sessions  map[string]models.Session
	tokens    map[authtokens.Table]map[string]models.AuthToken
	twoFactor map[string]models.TwoFactorAuth
	oauth     map[string]models.OAuthAccount
	logs      []models.SecurityLog

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:     make(map[string]models.User),
		sessions:  make(map[string]models.Session),
		tokens:    map[authtokens.Table]map[string]models.AuthToken{authtokens.PasswordResetTokens: {}, authtokens.EmailVerificationTokens: {}},
		twoFactor: make(map[string]models.TwoFactorAuth),
		oauth:     make(map[string]models.OAuthAccount),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// tables is a point-in-time copy of every table except the security log.
// Row values are replaced, never mutated in place, so shallow map copies are
// enough.
type tables struct {
	users     map[string]models.User
	sessions  map[string]models.Session
	tokens    map[authtokens.Table]map[string]models.AuthToken
	twoFactor map[string]models.TwoFactorAuth
	oauth     map[string]models.OAuthAccount
}

func (s *Store) snapshot() tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := tables{
		users:     maps.Clone(s.users),
		sessions:  maps.Clone(s.sessions),
		tokens:    make(map[authtokens.Table]map[string]models.AuthToken, len(s.tokens)),
		twoFactor: maps.Clone(s.twoFactor),
		oauth:     maps.Clone(s.oauth),
	}
	for table, rows := range s.tokens {
		t.tokens[table] = maps.Clone(rows)
	}
	return t
}

func (s *Store) restore(t tables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.sessions, s.tokens, s.twoFactor, s.oauth = t.users, t.sessions, t.tokens, t.twoFactor, t.oauth
}

// WithinTx implements dbx.Transactor. Transactions run one at a time. When fn
// fails every table except the security log is restored to its state before
// fn ran; writes made outside WithinTx meanwhile are undone too.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	before := s.snapshot()
	if err := fn(ctx, nil); err != nil {
		s.restore(before)
		return err
	}
	return nil
}

func (s *Store) Users() *UserRepo                 { return &UserRepo{s: s} }
func (s *Store) Sessions() *SessionRepo           { return &SessionRepo{s: s} }
func (s *Store) TwoFactor() *TwoFactorRepo        { return &TwoFactorRepo{s: s} }
func (s *Store) OAuthAccounts() *OAuthAccountRepo { return &OAuthAccountRepo{s: s} }
func (s *Store) SecurityLogs() *SecurityLogRepo   { return &SecurityLogRepo{s: s} }

// Tokens returns the repository for one token family.
func (s *Store) Tokens(table authtokens.Table) *TokenRepo {
	return &TokenRepo{s: s, table: table}
}

var _ dbx.Transactor = (*Store)(nil)

func cloneCodes(codes []string) []string {
	if codes == nil {
		return nil
	}
	return slices.Clone(codes)
}
