package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://localhost/reservations
jwt:
  secret_key: file-secret
reservations:
  timezone: Europe/Paris
feed:
  ping_interval: 10s
admin:
  prevent_self_demotion: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/reservations", cfg.Database.URL)
	assert.Equal(t, "file-secret", cfg.JWT.SecretKey)
	assert.Equal(t, "Europe/Paris", cfg.Reservations.Timezone)
	assert.Equal(t, 10*time.Second, cfg.Feed.PingInterval)
	assert.True(t, cfg.Admin.PreventSelfDemotion)

	// untouched defaults survive
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 64, cfg.Feed.BufferSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  url: postgres://file/reservations
jwt:
  secret_key: file-secret
`)
	t.Setenv("APP_DATABASE__URL", "postgres://env/reservations")
	t.Setenv("APP_SERVER__PORT", "9000")
	t.Setenv("APP_REDIS__ENABLED", "true")
	t.Setenv("APP_CORS__ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/reservations", cfg.Database.URL)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("APP_DATABASE__URL", "postgres://env/reservations")
	t.Setenv("APP_JWT__SECRET_KEY", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.SecretKey)
}

func TestLoad_ValidationErrors(t *testing.T) {
	path := writeConfigFile(t, `
reservations:
  timezone: Mars/Olympus
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url is required")
	assert.Contains(t, err.Error(), "jwt.secret_key is required")
	assert.Contains(t, err.Error(), "reservations.timezone")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.url", envKey("APP_DATABASE__URL"))
	assert.Equal(t, "rate_limit.submit_rps", envKey("APP_RATE_LIMIT__SUBMIT_RPS"))
}
