package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.False(t, cfg.Capacity.Strict)
	assert.Equal(t, 24*time.Hour, cfg.Notifications.TTL)
	assert.Equal(t, 2*time.Hour, cfg.Chat.FreezeAfter)
}

func TestLoadParsesYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reservely.yaml")
	body := strings.TrimSpace(`
store: memory
server:
  port: "9090"
capacity:
  strict: true
notifications:
  ttl: 12h
  retention: 240h
  purge_interval: 6h
chat:
  enabled: true
  freeze_after: 3h
`)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Capacity.Strict)
	assert.Equal(t, 12*time.Hour, cfg.Notifications.TTL)
	assert.Equal(t, 240*time.Hour, cfg.Notifications.Retention)
	assert.True(t, cfg.Chat.Enabled)
	assert.Equal(t, 3*time.Hour, cfg.Chat.FreezeAfter)
	assert.Equal(t, time.Hour, cfg.Chat.FreezeInterval, "unset keys keep their defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reservely.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("DB_NAME", "events_test")
	t.Setenv("CAPACITY_STRICT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "events_test", cfg.Database.DBName)
	assert.True(t, cfg.Capacity.Strict)
	assert.Contains(t, cfg.Database.DSN(), "dbname=events_test")
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE", "firestore")

	_, err := Load("")
	assert.ErrorContains(t, err, "unknown store")
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse")
}
