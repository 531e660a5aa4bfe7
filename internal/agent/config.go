package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv overrides the config path given on the command line.
const ConfigPathEnv = "COLONY_CONFIG_PATH"

// Config represents the agent's runtime configuration.
type Config struct {
	AgentID      string        `yaml:"agent_id"`
	MQTTBroker   string        `yaml:"mqtt_broker"`
	ScenarioPath string        `yaml:"scenario_path"`
	TickInterval time.Duration `yaml:"tick_interval"`
	SaveInterval time.Duration `yaml:"save_interval"` // 0 disables periodic saves
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"` // "text" or "json"
}

// DefaultConfig returns the values used for anything a config file leaves out.
func DefaultConfig() Config {
	host, _ := os.Hostname()
	if host == "" {
		host = "colony"
	}
	return Config{
		AgentID:      host,
		ScenarioPath: "scenario.yaml",
		TickInterval: 100 * time.Millisecond,
		SaveInterval: time.Minute,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// ResolveConfigPath prefers the COLONY_CONFIG_PATH environment variable.
func ResolveConfigPath(flagPath string) string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}
	return flagPath
}

// LoadConfig reads and parses a YAML config file and fills in defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s not found", path)
		}
		return Config{}, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if strings.TrimSpace(c.AgentID) == "" {
		c.AgentID = def.AgentID
	}
	if c.ScenarioPath == "" {
		c.ScenarioPath = def.ScenarioPath
	}
	if c.TickInterval == 0 {
		c.TickInterval = def.TickInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
}

func (c Config) Validate() error {
	if strings.ContainsAny(c.AgentID, "/+#") {
		return fmt.Errorf("agent id %q contains MQTT topic characters", c.AgentID)
	}
	if c.TickInterval < 0 || c.SaveInterval < 0 {
		return errors.New("intervals must not be negative")
	}
	return nil
}
