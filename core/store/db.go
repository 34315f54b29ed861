package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"aegis-grc/config"
	"aegis-grc/core/utils"
)

// NewDB opens the configured database. A non-empty DBPath (or db_driver
// "sqlite") selects the embedded sqlite runtime used by tests and small
// installs; otherwise the postgres pool at DBURL is used.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if strings.TrimSpace(cfg.DBPath) != "" || cfg.DBDriver == "sqlite" {
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			path = "data/aegis.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// The whole-collection replace semantics of the legacy store become
		// per-row writes here; a single writer connection keeps sqlite happy.
		db.SetMaxOpenConns(1)
		usePgPlaceholders = false
		if logger != nil {
			logger.Printf("sqlite database at %s", path)
		}
		return db, nil
	}
	db, err := sql.Open("pgx", cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	usePgPlaceholders = true
	if logger != nil {
		logger.Printf("postgres database at %s", redactDSN(cfg.DBURL))
	}
	return db, nil
}

func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if scheme := strings.Index(dsn, "://"); scheme > 0 {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
