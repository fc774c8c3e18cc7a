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

// Shipping shapes. push, latest and array write to the realtime database;
// mqtt publishes to a broker.
const (
	ShapePush   = "push"
	ShapeLatest = "latest"
	ShapeArray  = "array"
	ShapeMQTT   = "mqtt"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval   = 2 * time.Second
	DefaultBufferSize = 100
	DefaultTimeout    = 10 * time.Second
	DefaultLogLevel   = "info"
	DefaultShape      = ShapePush
	DefaultPath       = "sensorReadings"
	DefaultSecretEnv  = "RTDB_SECRET"
	DefaultMQTTTopic  = "sensordash/readings"
)

// Config is the agent configuration parsed from config.yaml.
// The server's keys in the same file are ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all simulator-side settings.
type AgentConfig struct {
	// BaseURL is the realtime database root. Required unless Shape is mqtt.
	BaseURL string `yaml:"base_url"`

	// Path is the document readings are written to.
	Path string `yaml:"path"`

	// SecretEnv names the environment variable holding the database secret.
	SecretEnv string `yaml:"secret_env"`

	// Shape is one of: push | latest | array | mqtt.
	Shape string `yaml:"shape"`

	// Interval is how often a reading is generated. Hot-reloadable.
	Interval time.Duration `yaml:"interval"`

	// BufferSize is the maximum number of readings held in memory while the
	// backing store is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Timeout bounds each write.
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel is one of: debug | info | warn | error. Hot-reloadable.
	LogLevel string `yaml:"log_level"`

	// Seed fixes the simulator's random source. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// Secret returns the database secret resolved from the environment.
func (a AgentConfig) Secret() string {
	if a.SecretEnv == "" {
		return ""
	}
	return os.Getenv(a.SecretEnv)
}

// MQTTConfig configures the publisher used by the mqtt shape.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Topic       string `yaml:"topic"`
	ClientID    string `yaml:"client_id"`
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

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Path:       DefaultPath,
			SecretEnv:  DefaultSecretEnv,
			Shape:      DefaultShape,
			Interval:   DefaultInterval,
			BufferSize: DefaultBufferSize,
			Timeout:    DefaultTimeout,
			LogLevel:   DefaultLogLevel,
			MQTT: MQTTConfig{
				Topic: DefaultMQTTTopic,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	switch a.Shape {
	case ShapePush, ShapeLatest, ShapeArray:
		if a.BaseURL == "" {
			return fmt.Errorf("agent.base_url is required for shape %q", a.Shape)
		}
		u, err := url.Parse(a.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("agent.base_url %q must be an http(s) URL", a.BaseURL)
		}
		if strings.Trim(a.Path, "/") == "" {
			return fmt.Errorf("agent.path is required for shape %q", a.Shape)
		}
	case ShapeMQTT:
		if a.MQTT.Broker == "" {
			return fmt.Errorf("agent.mqtt.broker is required for shape mqtt")
		}
		if a.MQTT.Topic == "" {
			return fmt.Errorf("agent.mqtt.topic is required for shape mqtt")
		}
	default:
		return fmt.Errorf("agent.shape %q unknown: want push|latest|array|mqtt", a.Shape)
	}
	if a.Interval <= 0 {
		return fmt.Errorf("agent.interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be positive")
	}
	if _, err := ParseLevel(a.LogLevel); err != nil {
		return fmt.Errorf("agent.log_level: %w", err)
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
