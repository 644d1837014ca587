package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"port": 8089, "vector_cache": {"lru_size": 100}}`))
	require.NoError(t, err)
	require.Equal(t, 8089, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "local", cfg.Backend.Text)
	require.Equal(t, "local", cfg.Backend.Image)
	require.Equal(t, 3600, cfg.VectorCache.LRUTTLSeconds)
	require.Equal(t, 30, cfg.VectorCache.MaxAgeDays)
	require.Equal(t, "0 3 * * *", cfg.VectorCache.CleanupCron)
	require.Equal(t, 720, cfg.Auth.TokenTTLHours)
	require.False(t, cfg.Batch.Strict)
}

func TestLoad_BackendData(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"backend": {"text": " OpenAI ", "data": {"base_url": "http://tei:8082"}}, "batch": {"strict": true}}`))
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.Backend.Text)
	require.Equal(t, map[string]interface{}{"base_url": "http://tei:8082"}, cfg.Backend.Data)
	require.True(t, cfg.Batch.Strict)
}

func TestLoad_DBCacheNeedsDatabase(t *testing.T) {
	_, err := Load(writeConfig(t, `{"vector_cache": {"db": true}}`))
	require.Error(t, err)

	cfg, err := Load(writeConfig(t, `{"vector_cache": {"db": true}, "database": {"host": "pg"}}`))
	require.NoError(t, err)
	require.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	_, err = Load(writeConfig(t, `{not json`))
	require.Error(t, err)
}
