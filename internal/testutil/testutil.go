package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"streamhub/pkg/database"
	"streamhub/pkg/logger"
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.NewNop()
}

// DB opens a migrated sqlite database in a per-test temp dir.
func DB(tb testing.TB) *sql.DB {
	tb.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(tb.TempDir(), "catalog.db")})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return db
}

// Count returns the number of rows in table.
func Count(tb testing.TB, db *sql.DB, table string) int {
	tb.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}
