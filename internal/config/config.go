// Package config wraps viper behind a small nil-safe accessor type and
// loads RackLedger settings from a YAML file, RACKLEDGER_ environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RACKLEDGER_SERVER_PORT.
const EnvPrefix = "RACKLEDGER"

// Config reads settings from a viper instance. The zero value and a Config
// built from a nil viper return zero values for every key.
type Config struct {
	v *viper.Viper
}

// New wraps v.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Viper returns the underlying viper instance, or nil.
func (c *Config) Viper() *viper.Viper {
	if c == nil {
		return nil
	}
	return c.v
}

func (c *Config) ok() bool { return c != nil && c.v != nil }

// GetString returns the string value of key.
func (c *Config) GetString(key string) string {
	if !c.ok() {
		return ""
	}
	return c.v.GetString(key)
}

// GetInt returns the int value of key.
func (c *Config) GetInt(key string) int {
	if !c.ok() {
		return 0
	}
	return c.v.GetInt(key)
}

// GetBool returns the bool value of key.
func (c *Config) GetBool(key string) bool {
	if !c.ok() {
		return false
	}
	return c.v.GetBool(key)
}

// GetFloat64 returns the float value of key.
func (c *Config) GetFloat64(key string) float64 {
	if !c.ok() {
		return 0
	}
	return c.v.GetFloat64(key)
}

// GetDuration returns the duration value of key.
func (c *Config) GetDuration(key string) time.Duration {
	if !c.ok() {
		return 0
	}
	return c.v.GetDuration(key)
}

// IsSet reports whether key has a value.
func (c *Config) IsSet(key string) bool {
	if !c.ok() {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the subtree under key. A missing subtree yields an empty
// Config, never nil.
func (c *Config) Sub(key string) *Config {
	if !c.ok() {
		return New(viper.New())
	}
	sub := c.v.Sub(key)
	if sub == nil {
		sub = viper.New()
	}
	return New(sub)
}

// Unmarshal decodes the whole config into target using mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	if !c.ok() {
		return nil
	}
	return c.v.Unmarshal(target)
}

// Settings is the typed view of the RackLedger configuration.
type Settings struct {
	Server   ServerSettings   `mapstructure:"server"`
	Database DatabaseSettings `mapstructure:"database"`
	Auth     AuthSettings     `mapstructure:"auth"`
	Log      LogSettings      `mapstructure:"log"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseSettings selects and configures the document store.
type DatabaseSettings struct {
	// Backend is "mongo" or "sqlite".
	Backend     string        `mapstructure:"backend"`
	URI         string        `mapstructure:"uri"`
	Path        string        `mapstructure:"path"`
	Name        string        `mapstructure:"name"`
	Mode        string        `mapstructure:"mode"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxPoolSize uint64        `mapstructure:"max_pool_size"`
}

// AuthSettings configures token issuing.
type AuthSettings struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("database.backend", "sqlite")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.path", "rackledger.db")
	v.SetDefault("database.name", "cmdb")
	v.SetDefault("database.mode", "single")
	v.SetDefault("database.timeout", "10s")
	v.SetDefault("database.max_pool_size", 50)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads path (if non-empty) on top of the defaults and environment.
// Without a path, rackledger.yaml is searched in the working directory and
// /etc/rackledger; not finding it is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rackledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rackledger")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}

// Settings decodes the typed settings and checks them.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	if err := c.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode config: %w", err)
	}
	switch s.Database.Backend {
	case "mongo", "sqlite":
	default:
		return s, fmt.Errorf("database.backend %q: want mongo or sqlite", s.Database.Backend)
	}
	if s.Database.Name == "" {
		return s, errors.New("database.name is required")
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return s, fmt.Errorf("server.port %d out of range", s.Server.Port)
	}
	return s, nil
}
