package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source modes.
const (
	ModePoll   = "poll"
	ModeStream = "stream"
	ModeMQTT   = "mqtt"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultLogLevel          = "info"
	DefaultStaleAfter        = 30 * time.Second
	DefaultBroadcastInterval = 5 * time.Second

	DefaultPath         = "sensorReadings"
	DefaultSecretEnv    = "RTDB_SECRET"
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 10 * time.Second

	DefaultMQTTTopic = "sensordash/readings"

	DefaultCacheKey = "sensordash:latest"
	DefaultCacheTTL = 10 * time.Minute
)

// Config is the dashboard configuration parsed from config.yaml.
// The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Source SourceConfig `yaml:"source"`
	Cache  CacheConfig  `yaml:"cache"`
}

// ServerConfig holds the HTTP surface and process settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error. Hot-reloadable.
	LogLevel string `yaml:"log_level"`

	// StaleAfter flags the latest list as stale once it is older than this.
	// Stale data is still served. Zero disables the flag.
	StaleAfter time.Duration `yaml:"stale_after"`

	// BroadcastInterval re-sends the current snapshot to WebSocket clients
	// even when nothing changed, so renderers can refresh relative times.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// SourceConfig selects and configures the ingestion adapter.
type SourceConfig struct {
	// Mode is one of: poll | stream | mqtt.
	Mode string `yaml:"mode"`

	// BaseURL is the realtime database root, e.g.
	// https://example-default-rtdb.firebasedatabase.app. Required for poll
	// and stream modes.
	BaseURL string `yaml:"base_url"`

	// Path is the document holding sensor readings.
	Path string `yaml:"path"`

	// SecretEnv names the environment variable holding the database secret.
	SecretEnv string `yaml:"secret_env"`

	// PollInterval is the pull period in poll mode (default 2s).
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each HTTP request to the database (default 10s).
	Timeout time.Duration `yaml:"timeout"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// Secret returns the database secret resolved from the environment.
func (s SourceConfig) Secret() string {
	if s.SecretEnv == "" {
		return ""
	}
	return os.Getenv(s.SecretEnv)
}

// MQTTConfig configures the MQTT subscriber used in mqtt mode.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string `yaml:"broker"`

	// Topic carries raw reading payloads (default sensordash/readings).
	Topic string `yaml:"topic"`

	// ClientID defaults to a random id when empty.
	ClientID string `yaml:"client_id"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// CacheConfig configures the redis mirror of the latest evaluated list.
type CacheConfig struct {
	// RedisAddr is host:port of the redis server. Empty disables the mirror.
	RedisAddr string `yaml:"redis_addr"`

	PasswordEnv string `yaml:"password_env"`

	// DB is the redis logical database index.
	DB int `yaml:"db"`

	// Key is the redis key the list is stored under.
	Key string `yaml:"key"`

	// TTL expires the mirrored list; zero keeps it forever.
	TTL time.Duration `yaml:"ttl"`
}

// Enabled reports whether the redis mirror is configured.
func (c CacheConfig) Enabled() bool { return c.RedisAddr != "" }

// Password returns the redis password resolved from the environment.
func (c CacheConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			LogLevel:          DefaultLogLevel,
			StaleAfter:        DefaultStaleAfter,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Source: SourceConfig{
			Mode:         ModePoll,
			Path:         DefaultPath,
			SecretEnv:    DefaultSecretEnv,
			PollInterval: DefaultPollInterval,
			Timeout:      DefaultTimeout,
			MQTT: MQTTConfig{
				Topic: DefaultMQTTTopic,
			},
		},
		Cache: CacheConfig{
			Key: DefaultCacheKey,
			TTL: DefaultCacheTTL,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if _, err := ParseLevel(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("server.log_level: %w", err)
	}
	if cfg.Server.StaleAfter < 0 {
		return fmt.Errorf("server.stale_after must not be negative")
	}
	if cfg.Server.BroadcastInterval < 0 {
		return fmt.Errorf("server.broadcast_interval must not be negative")
	}

	src := cfg.Source
	switch src.Mode {
	case ModePoll, ModeStream:
		if src.BaseURL == "" {
			return fmt.Errorf("source.base_url is required in %s mode", src.Mode)
		}
		u, err := url.Parse(src.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("source.base_url %q must be an http(s) URL", src.BaseURL)
		}
		if strings.Trim(src.Path, "/") == "" {
			return fmt.Errorf("source.path is required in %s mode", src.Mode)
		}
	case ModeMQTT:
		if src.MQTT.Broker == "" {
			return fmt.Errorf("source.mqtt.broker is required in mqtt mode")
		}
		if src.MQTT.Topic == "" {
			return fmt.Errorf("source.mqtt.topic is required in mqtt mode")
		}
	default:
		return fmt.Errorf("source.mode %q unknown: want poll|stream|mqtt", src.Mode)
	}
	if src.Mode == ModePoll && src.PollInterval <= 0 {
		return fmt.Errorf("source.poll_interval must be positive")
	}
	if src.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}

	if cfg.Cache.Enabled() && cfg.Cache.Key == "" {
		return fmt.Errorf("cache.key is required when cache.redis_addr is set")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	return nil
}

// ParseLevel maps a log_level string to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q: want debug|info|warn|error", s)
	}
}
