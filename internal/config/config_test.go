package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "https://example.test")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, BackendREST, cfg.Remote.Backend)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Sync.StatusWindow)
	assert.Equal(t, "*/5 * * * *", cfg.Sync.CronSchedule)
	assert.Equal(t, 10*time.Second, cfg.Connectivity.ProbeInterval)
	assert.False(t, cfg.Sheets.Enabled())
	assert.Empty(t, cfg.Sync.BusinessIDs)
}

func TestLoad_FromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "REMOTE_BACKEND=MongoDB\n" +
		"MONGODB_URI=mongodb://localhost:27017\n" +
		"SYNC_STATUS_WINDOW=3\n" +
		"REMOTE_TIMEOUT=2s\n" +
		"BUSINESS_IDS= biz-1, ,biz-2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv never overrides variables that are already set, so make sure
	// the keys are clean for this test.
	for _, key := range []string{"REMOTE_BACKEND", "MONGODB_URI", "SYNC_STATUS_WINDOW", "REMOTE_TIMEOUT", "BUSINESS_IDS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, BackendMongoDB, cfg.Remote.Backend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, 3*time.Second, cfg.Sync.StatusWindow)
	assert.Equal(t, 2*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, []string{"biz-1", "biz-2"}, cfg.Sync.BusinessIDs)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "https://example.test")
	t.Setenv("SYNC_STATUS_WINDOW", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.ErrorContains(t, err, "SYNC_STATUS_WINDOW")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: "8080"},
			Queue:        QueueConfig{Path: "queue.db"},
			Remote:       RemoteConfig{Backend: BackendREST, BaseURL: "https://example.test", Timeout: time.Second},
			Sync:         SyncConfig{CronSchedule: "* * * * *", StatusWindow: time.Second},
			Connectivity: ConnectivityConfig{ProbeInterval: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.Remote.BaseURL = "" }, wantErr: "REMOTE_BASE_URL"},
		{name: "unknown backend", mutate: func(c *Config) { c.Remote.Backend = "ftp" }, wantErr: "REMOTE_BACKEND"},
		{name: "mongo without uri", mutate: func(c *Config) { c.Remote.Backend = BackendMongoDB }, wantErr: "MONGODB_URI"},
		{name: "zero window", mutate: func(c *Config) { c.Sync.StatusWindow = 0 }, wantErr: "SYNC_STATUS_WINDOW"},
		{name: "sheets without id", mutate: func(c *Config) { c.Sheets.CredentialsPath = "creds.json" }, wantErr: "GOOGLE_SHEET_DATABASE_ID"},
		{name: "empty queue path", mutate: func(c *Config) { c.Queue.Path = "" }, wantErr: "QUEUE_DB_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
