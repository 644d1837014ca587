package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/vectors/internal/config"
)

func TestDSN(t *testing.T) {
	require.Equal(t, "postgres://u@h/db", DSN(config.DatabaseConfig{DSN: "postgres://u@h/db", Host: "ignored"}))
	require.Equal(t,
		"host=pg port=5432 user=vec password=pw dbname=vectors sslmode=disable",
		DSN(config.DatabaseConfig{Host: "pg", User: "vec", Password: "pw", DBName: "vectors"}),
	)
}

func TestMigrationFiles(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"001_embedding_cache.sql"}, files)

	content, err := migrationsFS.ReadFile("migrations/" + files[0])
	require.NoError(t, err)
	stmts := splitStatements(string(content))
	require.Len(t, stmts, 3)
	require.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS embedding_cache")
}

func TestSplitStatements(t *testing.T) {
	require.Equal(t, []string{"SELECT 1", "SELECT 2"}, splitStatements(" SELECT 1;\n\n;SELECT 2;\n"))
	require.Empty(t, splitStatements("  \n"))
}
