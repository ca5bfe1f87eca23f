// =============================================================================
// Skillhost configuration loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable overrides
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SKILLHOST").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables
// =============================================================================
package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/skillhost/state"
)

// =============================================================================
// Core configuration structures
// =============================================================================

// Config is the complete skillhost configuration.
type Config struct {
	// Server holds the HTTP server configuration.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Bot holds the root bot configuration.
	Bot BotConfig `yaml:"bot" env:"BOT"`

	// Skills lists the skill bots the host can route to.
	Skills []SkillConfig `yaml:"skills" env:"-"`

	// State holds the session store configuration.
	State StateConfig `yaml:"state" env:"STATE"`

	// Log holds the logging configuration.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	// HTTP port
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics port
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Rate limit: requests per second per client IP
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Rate limit burst
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// API keys accepted on channel endpoints. Empty disables the check.
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// HMAC secret for skill callback JWT auth. Empty disables the check.
	SkillJWTSecret string `yaml:"skill_jwt_secret" env:"SKILL_JWT_SECRET"`
}

// BotConfig holds the root bot settings.
type BotConfig struct {
	// AppID is the identity the host presents to skills.
	AppID string `yaml:"app_id" env:"APP_ID"`
	// TargetSkillID is the skill the keyword routes conversations to.
	TargetSkillID string `yaml:"target_skill_id" env:"TARGET_SKILL_ID"`
	// CallbackEndpoint is the URL skills post replies to.
	CallbackEndpoint string `yaml:"callback_endpoint" env:"CALLBACK_ENDPOINT"`
	// Skill client request timeout
	SkillTimeout time.Duration `yaml:"skill_timeout" env:"SKILL_TIMEOUT"`
	// Skill client retry count
	SkillRetryCount int `yaml:"skill_retry_count" env:"SKILL_RETRY_COUNT"`
	// Skill client retry delay
	SkillRetryDelay time.Duration `yaml:"skill_retry_delay" env:"SKILL_RETRY_DELAY"`
	// Outbox entries kept per conversation. Zero means unbounded.
	OutboxLimit int `yaml:"outbox_limit" env:"OUTBOX_LIMIT"`
}

// SkillConfig describes one skill bot.
type SkillConfig struct {
	// ID is the logical skill identifier.
	ID string `yaml:"id"`
	// AppID is the skill's application identity.
	AppID string `yaml:"app_id"`
	// Endpoint is the skill's activity endpoint URL.
	Endpoint string `yaml:"endpoint"`
}

// StateConfig holds the session store settings.
type StateConfig struct {
	// Backend type: memory, file, redis, sqlite
	Type string `yaml:"type" env:"TYPE"`
	// Base directory for the file backend
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// Redis settings
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// SQLite settings
	SQLite SQLiteConfig `yaml:"sqlite" env:"SQLITE"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Host
	Host string `yaml:"host" env:"HOST"`
	// Port
	Port int `yaml:"port" env:"PORT"`
	// Password
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number
	DB int `yaml:"db" env:"DB"`
	// Connection pool size
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// Key prefix
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// Session TTL. Zero means no expiry.
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	// Database file path
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// Include caller information
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// Include stack traces on errors
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// =============================================================================
// Configuration loader
// =============================================================================

// Loader loads configuration (builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SKILLHOST",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the configuration file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a configuration validator.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load loads the configuration.
// Precedence: defaults → YAML file → environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No file, defaults apply.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv applies environment variable overrides.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks struct fields recursively.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue assigns a string value to a struct field.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration gets duration syntax
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads the configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	if c.Bot.AppID == "" {
		errs = append(errs, "bot app_id is required")
	}
	if c.Bot.TargetSkillID == "" {
		errs = append(errs, "bot target_skill_id is required")
	}
	if c.Bot.CallbackEndpoint != "" {
		if _, err := url.ParseRequestURI(c.Bot.CallbackEndpoint); err != nil {
			errs = append(errs, "invalid callback endpoint")
		}
	}

	if len(c.Skills) == 0 {
		errs = append(errs, "at least one skill must be configured")
	}
	targetFound := false
	for _, s := range c.Skills {
		if s.ID == "" || s.AppID == "" || s.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("skill %q is missing id, app_id or endpoint", s.ID))
			continue
		}
		if _, err := url.ParseRequestURI(s.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("skill %q has an invalid endpoint", s.ID))
		}
		if s.ID == c.Bot.TargetSkillID {
			targetFound = true
		}
	}
	if c.Bot.TargetSkillID != "" && !targetFound {
		errs = append(errs, fmt.Sprintf("target skill %q is not in the skills list", c.Bot.TargetSkillID))
	}

	switch c.State.Type {
	case "", "memory", "file", "redis", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unknown state store type %q", c.State.Type))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// StoreConfig converts the state section into the store configuration.
func (c *Config) StoreConfig() state.StoreConfig {
	sc := state.DefaultStoreConfig()
	if c.State.Type != "" {
		sc.Type = state.StoreType(c.State.Type)
	}
	if c.State.BaseDir != "" {
		sc.BaseDir = c.State.BaseDir
	}
	if c.State.Redis.Host != "" {
		sc.Redis.Host = c.State.Redis.Host
	}
	if c.State.Redis.Port != 0 {
		sc.Redis.Port = c.State.Redis.Port
	}
	sc.Redis.Password = c.State.Redis.Password
	sc.Redis.DB = c.State.Redis.DB
	if c.State.Redis.PoolSize != 0 {
		sc.Redis.PoolSize = c.State.Redis.PoolSize
	}
	if c.State.Redis.KeyPrefix != "" {
		sc.Redis.KeyPrefix = c.State.Redis.KeyPrefix
	}
	sc.Redis.TTL = c.State.Redis.TTL
	if c.State.SQLite.Path != "" {
		sc.SQLite.Path = c.State.SQLite.Path
	}
	return sc
}
