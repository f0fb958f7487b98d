package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration. Values come from an optional
// JSON file and can always be overridden through environment variables.
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	AdminConfig    AdminConfig    `json:"admin"`
	LicenseConfig  LicenseConfig  `json:"license"`
	RedisConfig    RedisConfig    `json:"redis"`
	VaultConfig    VaultConfig    `json:"vault"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ProductionMode  bool          `json:"production_mode"`
	StaticFilesPath string        `json:"static_files_path"` // admin dashboard assets, empty disables
	RateLimit       int           `json:"rate_limit"`        // requests per window per client on license endpoints
	RateLimitWindow time.Duration `json:"rate_limit_window"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// AdminConfig holds the admin panel shared secret.
// When SecretHash (bcrypt) is set, login verifies against the hash and
// only JWT session tokens are accepted on admin calls, so the plaintext
// secret never has to live in the environment. Hash-only deployments
// must set SigningKey (any random string, unrelated to the password)
// because the session tokens need a signing key; when Secret is set it
// doubles as the signing key and SigningKey can stay empty.
type AdminConfig struct {
	Secret        string        `json:"secret"`
	SecretHash    string        `json:"secret_hash"`
	SigningKey    string        `json:"signing_key"`
	TokenDuration time.Duration `json:"token_duration"`
}

// LicenseConfig holds license issuance settings
type LicenseConfig struct {
	KeyPrefix             string        `json:"key_prefix"`         // e.g. "ORIG"
	KeyGenMaxRetries      int           `json:"keygen_max_retries"` // uniqueness retry cap
	SessionTTL            time.Duration `json:"session_ttl"`        // 0 disables session cleanup
	SessionSweepPeriod    time.Duration `json:"session_sweep_period"`
	DefaultPlan           string        `json:"default_plan"`
	DefaultMaxActivations int           `json:"default_max_activations"`
}

// RedisConfig holds optional Redis cache settings
type RedisConfig struct {
	Enabled  bool          `json:"enabled"`
	Address  string        `json:"address"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	PoolSize int           `json:"pool_size"`
	StatsTTL time.Duration `json:"stats_ttl"`
}

// VaultConfig holds optional HashiCorp Vault settings
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // console output when false
}

// Load reads configuration from config.json (when present) and applies
// environment overrides. A missing file is not an error; env vars alone
// are enough to run the service.
func Load() (*Config, error) {
	cfg := defaults()

	path := getEnvOrDefault("CONFIG_FILE", "config.json")
	if _, err := os.Stat(path); err == nil {
		loaded, err := loadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if cfg.AdminConfig.Secret == "" && cfg.AdminConfig.SecretHash == "" {
		return nil, fmt.Errorf("admin secret not configured: set ADMIN_SECRET or ADMIN_SECRET_HASH")
	}
	if cfg.AdminConfig.Secret == "" && cfg.AdminConfig.SigningKey == "" {
		return nil, fmt.Errorf("ADMIN_SECRET_HASH alone cannot sign session tokens: set ADMIN_SIGNING_KEY")
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			StaticFilesPath: "./web/admin",
			RateLimit:       60,
			RateLimitWindow: time.Minute,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "licenses",
			Database: "licenses",
			SSLMode:  "disable",
		},
		AdminConfig: AdminConfig{
			TokenDuration: 12 * time.Hour,
		},
		LicenseConfig: LicenseConfig{
			KeyPrefix:             "ORIG",
			KeyGenMaxRetries:      10,
			SessionTTL:            90 * 24 * time.Hour,
			SessionSweepPeriod:    24 * time.Hour,
			DefaultPlan:           "pro",
			DefaultMaxActivations: 1,
		},
		RedisConfig: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
			StatsTTL: 30 * time.Second,
		},
		VaultConfig: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "license-server",
		},
		LoggingConfig: LoggingConfig{
			Level:      "info",
			JSONFormat: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	// Server
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvBoolOrDefault("PRODUCTION_MODE", cfg.ServerConfig.ProductionMode)
	cfg.ServerConfig.StaticFilesPath = getEnvOrDefault("STATIC_FILES_PATH", cfg.ServerConfig.StaticFilesPath)
	cfg.ServerConfig.RateLimit = getEnvIntOrDefault("RATE_LIMIT", cfg.ServerConfig.RateLimit)
	cfg.ServerConfig.RateLimitWindow = getEnvDurationOrDefault("RATE_LIMIT_WINDOW", cfg.ServerConfig.RateLimitWindow)

	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Admin
	cfg.AdminConfig.Secret = getEnvOrDefault("ADMIN_SECRET", cfg.AdminConfig.Secret)
	cfg.AdminConfig.SecretHash = getEnvOrDefault("ADMIN_SECRET_HASH", cfg.AdminConfig.SecretHash)
	cfg.AdminConfig.SigningKey = getEnvOrDefault("ADMIN_SIGNING_KEY", cfg.AdminConfig.SigningKey)
	cfg.AdminConfig.TokenDuration = getEnvDurationOrDefault("ADMIN_TOKEN_DURATION", cfg.AdminConfig.TokenDuration)

	// License
	cfg.LicenseConfig.KeyPrefix = getEnvOrDefault("LICENSE_KEY_PREFIX", cfg.LicenseConfig.KeyPrefix)
	cfg.LicenseConfig.KeyGenMaxRetries = getEnvIntOrDefault("LICENSE_KEYGEN_MAX_RETRIES", cfg.LicenseConfig.KeyGenMaxRetries)
	cfg.LicenseConfig.SessionTTL = getEnvDurationOrDefault("LICENSE_SESSION_TTL", cfg.LicenseConfig.SessionTTL)
	cfg.LicenseConfig.SessionSweepPeriod = getEnvDurationOrDefault("LICENSE_SESSION_SWEEP_PERIOD", cfg.LicenseConfig.SessionSweepPeriod)
	cfg.LicenseConfig.DefaultPlan = getEnvOrDefault("LICENSE_DEFAULT_PLAN", cfg.LicenseConfig.DefaultPlan)
	cfg.LicenseConfig.DefaultMaxActivations = getEnvIntOrDefault("LICENSE_DEFAULT_MAX_ACTIVATIONS", cfg.LicenseConfig.DefaultMaxActivations)

	// Redis
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", cfg.RedisConfig.PoolSize)
	cfg.RedisConfig.StatsTTL = getEnvDurationOrDefault("REDIS_STATS_TTL", cfg.RedisConfig.StatsTTL)

	// Vault
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)
	cfg.VaultConfig.TLSEnabled = getEnvBoolOrDefault("VAULT_TLS_ENABLED", cfg.VaultConfig.TLSEnabled)
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CACERT", cfg.VaultConfig.CACert)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := defaults()
	if err := json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a config.json template with defaults
func GenerateSampleConfig(filename string) error {
	cfg := defaults()
	cfg.AdminConfig.Secret = "change-me"

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
