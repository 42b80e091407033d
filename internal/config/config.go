// Package config loads the service configuration from a YAML file, .env files
// and environment variable overrides.
package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServerPort      = "8080"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 10 * time.Minute // batch scans answer after every probe
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second

	defaultDBDriver   = "mysql"
	defaultDBHost     = "localhost"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBName     = "link_health"
	defaultDBMaxOpen  = 25
	defaultDBMaxIdle  = 5
	defaultDBLifetime = 30 * time.Second

	defaultTokenDuration = 24 * time.Hour

	defaultProbeTimeout       = 10 * time.Second
	defaultProbeDelay         = 500 * time.Millisecond
	defaultAlertCooldown      = 24 * time.Hour
	defaultBatchLimit         = 50
	defaultUserAgent          = "LinkHealth/1.0"
	defaultSingleScanInterval = 5 * time.Second
	defaultScanLockTTL        = 45 * time.Minute

	defaultEmailFrom    = "AffHubPro <alerts@affhubpro.com>"
	defaultSupportEmail = "jules@affhubpro.com"
	defaultAppURL       = "https://affhubpro.com"

	defaultScheduleWorkers   = 2
	defaultScheduleQueueSize = 100

	defaultLogLevel = "info"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Redis    RedisConfig    `yaml:"redis"`
	Email    EmailConfig    `yaml:"email"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `env:"PORT"      yaml:"port"`
	Debug           bool          `env:"APP_DEBUG" yaml:"debug"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string        `env:"DB_DRIVER"      yaml:"driver"` // mysql|postgres|sqlite
	Host     string        `env:"DB_HOST"        yaml:"host"`
	Port     int           `env:"DB_PORT"        yaml:"port"`
	User     string        `env:"DB_USER"        yaml:"user"`
	Password string        `env:"DB_PASSWORD"    yaml:"password"`
	Database string        `env:"DB_NAME"        yaml:"database"`
	SSLMode  string        `env:"DB_SSLMODE"     yaml:"sslmode"`
	Path     string        `env:"DB_SQLITE_PATH" yaml:"path"`
	MaxOpen  int           `yaml:"max_open"`
	MaxIdle  int           `yaml:"max_idle"`
	Lifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"   yaml:"jwt_secret"`
	TokenDuration time.Duration `env:"JWT_DURATION" yaml:"token_duration"`
}

// ScannerConfig holds the link scanning tunables.
type ScannerConfig struct {
	ProbeTimeout       time.Duration `env:"SCAN_PROBE_TIMEOUT"  yaml:"probe_timeout"`
	ProbeDelay         time.Duration `env:"SCAN_PROBE_DELAY"    yaml:"probe_delay"`
	AlertCooldown      time.Duration `env:"SCAN_ALERT_COOLDOWN" yaml:"alert_cooldown"`
	BatchLimit         int           `env:"SCAN_BATCH_LIMIT"    yaml:"batch_limit"`
	UserAgent          string        `env:"SCAN_USER_AGENT"     yaml:"user_agent"`
	SingleScanInterval time.Duration `yaml:"single_scan_interval"`
	LockTTL            time.Duration `yaml:"lock_ttl"`
}

// RedisConfig holds the optional Redis connection used for scan locks.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// EmailConfig holds transactional email settings.
type EmailConfig struct {
	ResendAPIKey string `env:"RESEND_API_KEY" yaml:"resend_api_key"`
	From         string `env:"EMAIL_FROM"     yaml:"from"`
	SupportEmail string `env:"EMAIL_SUPPORT"  yaml:"support_email"`
	AppURL       string `env:"APP_URL"        yaml:"app_url"`
}

// ScheduleConfig holds periodic scan settings. An empty Cron disables them.
type ScheduleConfig struct {
	Cron      string `env:"SCAN_CRON" yaml:"cron"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Message)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	setServerDefaults(&cfg.Server)
	setDatabaseDefaults(&cfg.Database)
	setAuthDefaults(&cfg.Auth)
	setScannerDefaults(&cfg.Scanner)
	setEmailDefaults(&cfg.Email)
	setScheduleDefaults(&cfg.Schedule)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
}

func setServerDefaults(s *ServerConfig) {
	if s.Port == "" {
		s.Port = defaultServerPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = defaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Driver == "" {
		db.Driver = defaultDBDriver
	}
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = "disable"
	}
	if db.Path == "" {
		db.Path = "link_health.db"
	}
	if db.MaxOpen == 0 {
		db.MaxOpen = defaultDBMaxOpen
	}
	if db.MaxIdle == 0 {
		db.MaxIdle = defaultDBMaxIdle
	}
	if db.Lifetime == 0 {
		db.Lifetime = defaultDBLifetime
	}
}

func setAuthDefaults(a *AuthConfig) {
	if a.TokenDuration == 0 {
		a.TokenDuration = defaultTokenDuration
	}
}

func setScannerDefaults(s *ScannerConfig) {
	if s.ProbeTimeout == 0 {
		s.ProbeTimeout = defaultProbeTimeout
	}
	if s.ProbeDelay == 0 {
		s.ProbeDelay = defaultProbeDelay
	}
	if s.AlertCooldown == 0 {
		s.AlertCooldown = defaultAlertCooldown
	}
	if s.BatchLimit == 0 {
		s.BatchLimit = defaultBatchLimit
	}
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}
	if s.SingleScanInterval == 0 {
		s.SingleScanInterval = defaultSingleScanInterval
	}
	if s.LockTTL == 0 {
		s.LockTTL = defaultScanLockTTL
	}
}

func setEmailDefaults(e *EmailConfig) {
	if e.From == "" {
		e.From = defaultEmailFrom
	}
	if e.SupportEmail == "" {
		e.SupportEmail = defaultSupportEmail
	}
	if e.AppURL == "" {
		e.AppURL = defaultAppURL
	}
}

func setScheduleDefaults(s *ScheduleConfig) {
	if s.Workers == 0 {
		s.Workers = defaultScheduleWorkers
	}
	if s.QueueSize == 0 {
		s.QueueSize = defaultScheduleQueueSize
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return &ValidationError{Field: "database.driver", Message: "must be one of mysql, postgres, sqlite"}
	}
	if c.Scanner.ProbeTimeout < 0 {
		return &ValidationError{Field: "scanner.probe_timeout", Message: "must be positive"}
	}
	if c.Scanner.ProbeDelay < 0 {
		return &ValidationError{Field: "scanner.probe_delay", Message: "must not be negative"}
	}
	if c.Scanner.AlertCooldown < 0 {
		return &ValidationError{Field: "scanner.alert_cooldown", Message: "must not be negative"}
	}
	if c.Scanner.BatchLimit < 1 {
		return &ValidationError{Field: "scanner.batch_limit", Message: "must be at least 1"}
	}
	if c.Schedule.Workers < 1 {
		return &ValidationError{Field: "schedule.workers", Message: "must be at least 1"}
	}
	return nil
}
