// Package testutil provides helpers for integration tests that need a real
// Postgres instance.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/casthouse/streamgate/backend/db"
)

// SetupTestDB creates a test database connection and runs migrations.
// It skips the test if TEST_PG_DSN environment variable is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// ResetModerationTables truncates the moderation tables so each test starts
// from a clean slate.
func ResetModerationTables(t *testing.T, database *sql.DB) {
	t.Helper()
	ctx := context.Background()
	for _, table := range []string{"banned_users", "muted_users", "activity_logs", "chat_messages"} {
		if _, err := database.ExecContext(ctx, `TRUNCATE TABLE `+table+` RESTART IDENTITY`); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}
