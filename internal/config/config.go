// Package config handles AgriSmart configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from --config) is checked first by FindConfig.
// Then: ./config.yaml, ~/.config/agrismart/config.yaml,
// /etc/agrismart/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agrismart", "config.yaml"))
	}

	paths = append(paths, "/etc/agrismart/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all AgriSmart configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Agent     AgentConfig     `yaml:"agent"`
	Inventory InventoryConfig `yaml:"inventory"`
	Audit     AuditConfig     `yaml:"audit"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"` // text or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
	// AllowedOrigins lists browser origins, besides the server's own,
	// that may open the chat WebSocket.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the host:port the API server binds to.
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Address, l.Port)
}

// GeminiConfig defines the model backend. The same API key serves
// both tiers; SecondaryModel is the tool-less fallback tried when the
// primary model is unavailable.
type GeminiConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	PrimaryModel   string        `yaml:"primary_model"`
	SecondaryModel string        `yaml:"secondary_model"`
	Timeout        time.Duration `yaml:"timeout"`
	Temperature    *float32      `yaml:"temperature"`
}

// Configured reports whether a model backend can be reached at all.
func (g GeminiConfig) Configured() bool {
	return strings.TrimSpace(g.APIKey) != ""
}

// AgentConfig tunes the conversation engine.
type AgentConfig struct {
	// MaxToolRounds bounds tool-call rounds per turn (default 8).
	MaxToolRounds int `yaml:"max_tool_rounds"`
	// ParallelTools bounds concurrent tool executions within one
	// round (default 4).
	ParallelTools int `yaml:"parallel_tools"`
	// OfflineEnabled controls the canned-reply tier. Defaults to true.
	OfflineEnabled *bool `yaml:"offline_enabled"`
	// SystemPrompt replaces the built-in system instruction.
	SystemPrompt string `yaml:"system_prompt"`
	// Greeting replaces the built-in opening assistant message.
	Greeting string `yaml:"greeting"`
}

// Offline reports whether the offline tier is enabled.
func (a AgentConfig) Offline() bool {
	return a.OfflineEnabled == nil || *a.OfflineEnabled
}

// InventoryConfig points at an optional YAML equipment catalog. When
// CatalogFile is empty the built-in catalog is used.
type InventoryConfig struct {
	CatalogFile string `yaml:"catalog_file"`
}

// AuditConfig defines where tool calls and turn outcomes are recorded.
// An empty DSN disables the audit trail.
type AuditConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (default) or postgres
	DSN    string `yaml:"dsn"`
}

// Enabled reports whether an audit store should be opened.
func (a AuditConfig) Enabled() bool { return a.DSN != "" }

// MQTTConfig defines the broker that receives booking events. An
// empty Broker disables publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. mqtt://broker:1883 or mqtts://broker:8883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Load reads configuration from a YAML file, expanding ${VAR}
// references from the environment, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration that runs without a file. The API
// key falls back to GEMINI_API_KEY.
func Default() *Config {
	cfg := &Config{
		Gemini: GeminiConfig{APIKey: os.Getenv("GEMINI_API_KEY")},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Gemini.PrimaryModel == "" {
		c.Gemini.PrimaryModel = "gemini-2.0-flash"
	}
	if c.Gemini.SecondaryModel == "" {
		c.Gemini.SecondaryModel = "gemini-2.0-flash"
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = 30 * time.Second
	}
	if c.Agent.MaxToolRounds == 0 {
		c.Agent.MaxToolRounds = 8
	}
	if c.Agent.ParallelTools == 0 {
		c.Agent.ParallelTools = 4
	}
	if c.Audit.Driver == "" {
		c.Audit.Driver = "sqlite3"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "agrismart"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Agent.MaxToolRounds < 0 {
		errs = append(errs, fmt.Errorf("agent.max_tool_rounds must be positive, got %d", c.Agent.MaxToolRounds))
	}
	if c.Agent.ParallelTools < 0 {
		errs = append(errs, fmt.Errorf("agent.parallel_tools must be positive, got %d", c.Agent.ParallelTools))
	}
	if c.Gemini.Timeout < 0 {
		errs = append(errs, fmt.Errorf("gemini.timeout must be positive, got %s", c.Gemini.Timeout))
	}
	switch c.Audit.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("audit.driver %q not supported (valid: sqlite3, postgres)", c.Audit.Driver))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q not supported (valid: text, json)", c.LogFormat))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
