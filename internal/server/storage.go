package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/server/config"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
)

// MemoryDSN selects the in-memory store instead of PostgreSQL.
const MemoryDSN = config.MemoryDSN

// Storage bundles the database handle with the matching repository manager
// and transactor.
type Storage struct {
	DB    *sql.DB
	Repos repomanager.RepositoryManager
	Tx    dbx.Transactor
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// OpenStorage connects to dsn and applies migrations. MemoryDSN yields an
// empty in-memory store.
func OpenStorage(ctx context.Context, dsn string) (*Storage, error) {
	if dsn == MemoryDSN {
		store := memstore.New()
		return &Storage{Repos: repomanager.NewMemoryRepositoryManager(store), Tx: store}, nil
	}

	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return &Storage{DB: db, Repos: m, Tx: dbx.NewSQLTransactor(db, nil)}, nil
}

// DBTX returns the handle services run queries on; nil for the in-memory
// store.
func (s *Storage) DBTX() dbx.DBTX {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

// Close releases the database connection, if any.
func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
