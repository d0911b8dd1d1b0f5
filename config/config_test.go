package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, defaultPostgresDSN, cfg.DBSource)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 8, cfg.BatchConcurrency)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "DB_DRIVER=sqlite\nJWT_ACCESS_TTL=1h\nALLOWED_ORIGINS=https://a.example, https://b.example\nBATCH_CONCURRENCY=nope\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"DB_DRIVER", "JWT_ACCESS_TTL", "ALLOWED_ORIGINS", "BATCH_CONCURRENCY"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "cafe.db", cfg.DBSource)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, []string{"http://localhost:3000", "https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 8, cfg.BatchConcurrency)
}

func TestLoadRequiresJWTSecretInProduction(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load(missing)
	assert.ErrorIs(t, err, ErrJWTSecretRequired)

	t.Setenv("JWT_SECRET", devJWTSecret)
	_, err = Load(missing)
	assert.ErrorIs(t, err, ErrJWTSecretRequired)

	t.Setenv("JWT_SECRET", "s3cr3t-from-vault")
	cfg, err := Load(missing)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-from-vault", cfg.JWTSecret)
}
