package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Remote backends supported for entry submission.
const (
	BackendREST    = "rest"
	BackendMongoDB = "mongodb"
)

// Config represents the full application configuration surface.
type Config struct {
	Server       ServerConfig
	Queue        QueueConfig
	Remote       RemoteConfig
	MongoDB      MongoDBConfig
	Sync         SyncConfig
	Connectivity ConnectivityConfig
	Sheets       SheetsConfig
	Log          LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// QueueConfig points at the on-device queue database file.
type QueueConfig struct {
	Path string
}

// RemoteConfig selects and configures the remote data collaborator.
type RemoteConfig struct {
	Backend string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SyncConfig holds scheduler and status settings for the drain loop.
type SyncConfig struct {
	CronSchedule          string
	ReferenceCronSchedule string
	StatusWindow          time.Duration
	BusinessIDs           []string
}

// ConnectivityConfig controls how online state is probed.
type ConnectivityConfig struct {
	ProbeInterval time.Duration
}

// SheetsConfig contains configuration required to export settlements to Google Sheets.
// Export is disabled when CredentialsPath is empty.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	SettlementRange string
}

// Enabled reports whether a spreadsheet export target is configured.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != ""
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	remoteTimeout, err := getenvDuration("REMOTE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	statusWindow, err := getenvDuration("SYNC_STATUS_WINDOW", 5*time.Second)
	if err != nil {
		return nil, err
	}
	probeInterval, err := getenvDuration("CONNECTIVITY_PROBE_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Queue: QueueConfig{
			Path: getenvWithDefault("QUEUE_DB_PATH", "daybook-queue.db"),
		},
		Remote: RemoteConfig{
			Backend: strings.ToLower(getenvWithDefault("REMOTE_BACKEND", BackendREST)),
			BaseURL: os.Getenv("REMOTE_BASE_URL"),
			APIKey:  os.Getenv("REMOTE_API_KEY"),
			Timeout: remoteTimeout,
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "daybook"),
		},
		Sync: SyncConfig{
			CronSchedule:          getenvWithDefault("SYNC_CRON_SCHEDULE", "*/5 * * * *"),
			ReferenceCronSchedule: getenvWithDefault("REFERENCE_CRON_SCHEDULE", "0 * * * *"),
			StatusWindow:          statusWindow,
			BusinessIDs:           splitList(os.Getenv("BUSINESS_IDS")),
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: probeInterval,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			SettlementRange: getenvWithDefault("SETTLEMENT_SHEET_RANGE", "Settlements!A:H"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Queue.Path == "" {
		return errors.New("QUEUE_DB_PATH must not be empty")
	}

	switch c.Remote.Backend {
	case BackendREST:
		if c.Remote.BaseURL == "" {
			return errors.New("REMOTE_BASE_URL must be provided for the rest backend")
		}
	case BackendMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided for the mongodb backend")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	default:
		return fmt.Errorf("REMOTE_BACKEND %q is not supported", c.Remote.Backend)
	}

	if c.Remote.Timeout <= 0 {
		return errors.New("REMOTE_TIMEOUT must be positive")
	}

	if c.Sync.CronSchedule == "" {
		return errors.New("SYNC_CRON_SCHEDULE must be provided")
	}

	if c.Sync.StatusWindow <= 0 {
		return errors.New("SYNC_STATUS_WINDOW must be positive")
	}

	if c.Connectivity.ProbeInterval <= 0 {
		return errors.New("CONNECTIVITY_PROBE_INTERVAL must be positive")
	}

	if c.Sheets.Enabled() && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_DATABASE_ID must be provided when sheets export is enabled")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}

	// Bare integers are read as seconds.
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %q", key, value)
	}
	return time.Duration(seconds) * time.Second, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
