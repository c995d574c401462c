package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"eve-hubcompare/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection holding the small persistent maps:
// resolved locations, page ETags, refresh leases and the history cache.
type DB struct {
	sql *sql.DB
	now func() time.Time
}

func (d *DB) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh database leaves version at 0.
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS location_cache (
				location_id INTEGER PRIMARY KEY,
				system_id   INTEGER,
				updated_at  TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS page_etag (
				region_id INTEGER NOT NULL,
				type_id   INTEGER NOT NULL,
				page      INTEGER NOT NULL,
				etag      TEXT NOT NULL,
				PRIMARY KEY (region_id, type_id, page)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS market_history (
				region_id   INTEGER NOT NULL,
				type_id     INTEGER NOT NULL,
				date        TEXT NOT NULL,
				average     REAL,
				highest     REAL,
				lowest      REAL,
				volume      INTEGER,
				order_count INTEGER,
				PRIMARY KEY (region_id, type_id, date)
			);

			CREATE TABLE IF NOT EXISTS market_history_meta (
				region_id  INTEGER NOT NULL,
				type_id    INTEGER NOT NULL,
				fetched_at INTEGER NOT NULL, -- unix ms
				PRIMARY KEY (region_id, type_id)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (market history)")
	}

	if version < 3 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS refresh_lease (
				key        TEXT PRIMARY KEY,
				owner      TEXT NOT NULL,
				expires_at INTEGER NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (3);
		`)
		if err != nil {
			return fmt.Errorf("migration v3: %w", err)
		}
		logger.Info("DB", "Applied migration v3 (leases)")
	}

	return nil
}

// ClearMarketState wipes resolved locations, ETags, leases and cached history.
func (d *DB) ClearMarketState() error {
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	defer tx.Rollback()
	for _, table := range []string{"location_cache", "page_etag", "market_history", "market_history_meta", "refresh_lease"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
