package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"aegis-grc/core/utils"
)

//go:embed all:pgmigrations
var pgMigrations embed.FS

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS controls (
		id INTEGER PRIMARY KEY,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS soa_entries (
		id INTEGER PRIMARY KEY,
		control_id INTEGER NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Planned',
		justification TEXT NOT NULL DEFAULT '',
		document_ref TEXT NOT NULL DEFAULT '[]',
		control_ids TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		soa_id INTEGER,
		control_id INTEGER,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS gaps (
		id INTEGER PRIMARY KEY,
		doc_id INTEGER NOT NULL UNIQUE,
		doc_name TEXT NOT NULL DEFAULT '',
		missing_sections TEXT NOT NULL DEFAULT '[]',
		forbidden_phrases_found TEXT NOT NULL DEFAULT '[]',
		missing_keywords TEXT NOT NULL DEFAULT '[]',
		score INTEGER NOT NULL DEFAULT 0,
		label TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Open',
		checked_at TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS risks (
		risk_id TEXT PRIMARY KEY,
		department TEXT NOT NULL DEFAULT '',
		risk_type TEXT NOT NULL DEFAULT '',
		asset_type TEXT NOT NULL DEFAULT '',
		asset TEXT NOT NULL DEFAULT '',
		risk_description TEXT NOT NULL DEFAULT '',
		vulnerability TEXT NOT NULL DEFAULT '[]',
		confidentiality INTEGER NOT NULL DEFAULT 0,
		integrity INTEGER NOT NULL DEFAULT 0,
		availability INTEGER NOT NULL DEFAULT 0,
		probability INTEGER NOT NULL DEFAULT 0,
		risk_score INTEGER NOT NULL DEFAULT 0,
		risk_level TEXT NOT NULL DEFAULT '',
		treatment_option TEXT NOT NULL DEFAULT '',
		likelihood_after_treatment INTEGER NOT NULL DEFAULT 0,
		impact_after_treatment INTEGER NOT NULL DEFAULT 0,
		residual_risk_score INTEGER NOT NULL DEFAULT 0,
		residual_risk_level TEXT NOT NULL DEFAULT '',
		control_reference TEXT NOT NULL DEFAULT '[]',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		number_of_days INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'Active',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS risk_reg_counters (
		year INTEGER PRIMARY KEY,
		seq INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS risk_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		department TEXT NOT NULL DEFAULT '',
		risk_type TEXT NOT NULL DEFAULT '',
		asset_type TEXT NOT NULL DEFAULT '',
		asset TEXT NOT NULL DEFAULT '',
		risk_description TEXT NOT NULL DEFAULT '',
		vulnerability TEXT NOT NULL DEFAULT '[]',
		confidentiality INTEGER NOT NULL DEFAULT 0,
		integrity INTEGER NOT NULL DEFAULT 0,
		availability INTEGER NOT NULL DEFAULT 0,
		probability INTEGER NOT NULL DEFAULT 0,
		treatment_option TEXT NOT NULL DEFAULT '',
		likelihood_after_treatment INTEGER NOT NULL DEFAULT 0,
		impact_after_treatment INTEGER NOT NULL DEFAULT 0,
		control_reference TEXT NOT NULL DEFAULT '[]',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		number_of_days INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT NOT NULL,
		risk_id TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		employee TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Pending',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (risk_id, task_id)
	);`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_soa_entries_control ON soa_entries(control_id);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_soa ON documents(soa_id);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_control ON documents(control_id);`,
	`CREATE INDEX IF NOT EXISTS idx_risks_department ON risks(department);`,
	`CREATE INDEX IF NOT EXISTS idx_risks_status ON risks(status);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_risk ON tasks(risk_id);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);`,
}

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	isPG, err := isPostgresDB(ctx, db)
	if err != nil {
		return err
	}
	if isPG {
		return applyGooseMigrations(ctx, db, logger)
	}
	return applySQLiteMigrations(ctx, db, logger)
}

func applySQLiteMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if logger != nil {
		logger.Printf("applying sqlite migrations")
	}
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	return nil
}

func applyGooseMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	goose.SetBaseFS(pgMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if logger != nil {
		logger.Printf("applying postgres migrations")
	}
	return goose.UpContext(ctx, db, "pgmigrations")
}

func isPostgresDB(ctx context.Context, db *sql.DB) (bool, error) {
	var version string
	if err := db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&version); err != nil {
		if strings.Contains(err.Error(), "sqlite_version") || strings.Contains(err.Error(), "does not exist") {
			return true, nil
		}
		return false, err
	}
	return false, nil
}
