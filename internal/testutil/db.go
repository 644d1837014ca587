package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/vectors/internal/config"
	"github.com/xxxsen/vectors/internal/db"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// OpenTestDB connects to the postgres named by TEST_DB_* variables, applies
// migrations and empties the vector memo table. Tests are skipped when
// TEST_DB_HOST is unset.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     envOr("TEST_DB_USER", "vectors"),
		Password: envOr("TEST_DB_PASSWORD", "vectors_pass"),
		DBName:   envOr("TEST_DB_NAME", "vectors_test"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.Exec("TRUNCATE embedding_cache"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return conn
}
