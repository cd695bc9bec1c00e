// Package config loads the agent's YAML configuration file and resolves
// environment-variable overrides, following a load-then-override
// convention familiar from cell-based orchestration configs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document for one agent process.
type Config struct {
	AppName string         `yaml:"app_name"`
	Debug   bool           `yaml:"debug"`
	Agent   AgentConfig    `yaml:"agent"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Router  RouterConfig   `yaml:"router"`
	Limits  LimitsConfig   `yaml:"limits"`
}

// AgentConfig identifies this agent and its capabilities for discovery.
type AgentConfig struct {
	ID           string   `yaml:"id"`
	Capabilities []string `yaml:"capabilities"`
	Description  string   `yaml:"description"`
}

// MQTTConfig configures the transport supervisor's broker connection.
type MQTTConfig struct {
	BrokerURL             string `yaml:"broker_url"`
	UsernameEnv           string `yaml:"username_env"`
	PasswordEnv           string `yaml:"password_env"`
	HeartbeatIntervalSecs int    `yaml:"heartbeat_interval_secs"`
	MaxReconnectAttempts  int    `yaml:"max_reconnect_attempts"` // 0 = unlimited
}

// RouterConfig selects and configures the v2 dynamic router, if any.
type RouterConfig struct {
	Kind           string           `yaml:"kind"` // "", "llm", or "gatekeeper"
	MaxIterations  int              `yaml:"max_iterations"`
	Gatekeeper     GatekeeperConfig `yaml:"gatekeeper"`
}

// GatekeeperConfig configures the HTTP-backed Gatekeeper router.
type GatekeeperConfig struct {
	Scheme        string `yaml:"scheme"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Path          string `yaml:"path"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	RetryAttempts int    `yaml:"retry_attempts"`
}

// LimitsConfig holds the pipeline's numeric bounds, all with protocol
// defaults so an empty section is valid.
type LimitsConfig struct {
	MaxPipelineDepth int `yaml:"max_pipeline_depth"`
	MaxTaskCache     int `yaml:"max_task_cache"`
	MaxToolIterations int `yaml:"max_tool_iterations"`
	IntakeBufferSize int `yaml:"intake_buffer_size"`
}

// Defaults returns a Config with every protocol-mandated default applied.
func Defaults() Config {
	return Config{
		MQTT: MQTTConfig{
			HeartbeatIntervalSecs: 900,
		},
		Router: RouterConfig{
			MaxIterations: 10,
			Gatekeeper: GatekeeperConfig{
				Scheme:        "http",
				Path:          "/route",
				TimeoutMs:     5000,
				RetryAttempts: 3,
			},
		},
		Limits: LimitsConfig{
			MaxPipelineDepth:  16,
			MaxTaskCache:      10000,
			MaxToolIterations: 10,
			IntakeBufferSize:  100,
		},
	}
}

// Load reads and parses filename, applying defaults for anything the file
// leaves zero-valued.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	applyZeroDefaults(&cfg)
	return &cfg, nil
}

func applyZeroDefaults(cfg *Config) {
	defaults := Defaults()
	if cfg.MQTT.HeartbeatIntervalSecs == 0 {
		cfg.MQTT.HeartbeatIntervalSecs = defaults.MQTT.HeartbeatIntervalSecs
	}
	if cfg.Router.MaxIterations == 0 {
		cfg.Router.MaxIterations = defaults.Router.MaxIterations
	}
	if cfg.Router.Gatekeeper.Scheme == "" {
		cfg.Router.Gatekeeper.Scheme = defaults.Router.Gatekeeper.Scheme
	}
	if cfg.Router.Gatekeeper.Path == "" {
		cfg.Router.Gatekeeper.Path = defaults.Router.Gatekeeper.Path
	}
	if cfg.Router.Gatekeeper.TimeoutMs == 0 {
		cfg.Router.Gatekeeper.TimeoutMs = defaults.Router.Gatekeeper.TimeoutMs
	}
	if cfg.Router.Gatekeeper.RetryAttempts == 0 {
		cfg.Router.Gatekeeper.RetryAttempts = defaults.Router.Gatekeeper.RetryAttempts
	}
	if cfg.Limits.MaxPipelineDepth == 0 {
		cfg.Limits.MaxPipelineDepth = defaults.Limits.MaxPipelineDepth
	}
	if cfg.Limits.MaxTaskCache == 0 {
		cfg.Limits.MaxTaskCache = defaults.Limits.MaxTaskCache
	}
	if cfg.Limits.MaxToolIterations == 0 {
		cfg.Limits.MaxToolIterations = defaults.Limits.MaxToolIterations
	}
	if cfg.Limits.IntakeBufferSize == 0 {
		cfg.Limits.IntakeBufferSize = defaults.Limits.IntakeBufferSize
	}
}

// HeartbeatInterval returns the configured heartbeat interval as a
// time.Duration.
func (c *MQTTConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSecs) * time.Second
}

// ResolveCredentials reads the broker username/password from the
// environment variables named in config, following the RFC's requirement
// that credentials never live in the config file itself.
func (c *MQTTConfig) ResolveCredentials() (username, password string) {
	if c.UsernameEnv != "" {
		username = os.Getenv(c.UsernameEnv)
	}
	if c.PasswordEnv != "" {
		password = os.Getenv(c.PasswordEnv)
	}
	return username, password
}

// GetEnvConfig checks an AGENT_-prefixed environment variable first, then
// the bare name, then falls back to defaultValue.
func GetEnvConfig(key, defaultValue string) string {
	if value := os.Getenv("AGENT_" + key); value != "" {
		return value
	}
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses an integer environment override, falling back to
// defaultValue if unset or unparsable.
func GetEnvInt(key string, defaultValue int) int {
	raw := GetEnvConfig(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
