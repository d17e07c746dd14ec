package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	API       APIConfig       `yaml:"api"`
	Broker    BrokerConfig    `yaml:"broker"`
	Engine    EngineConfig    `yaml:"engine"`
	Sync      SyncConfig      `yaml:"sync"`
	Database  DatabaseConfig  `yaml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
}

type DeviceConfig struct {
	UserID    int    `yaml:"user_id"`
	StorePath string `yaml:"store_path"`
}

type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type BrokerConfig struct {
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
}

// EngineConfig carries the tunable engine thresholds. Zero values fall back
// to the defaults documented on each field.
type EngineConfig struct {
	TargetIntensity   float64 `yaml:"target_intensity"`    // default 98
	StrainCeiling     float64 `yaml:"strain_ceiling"`      // default 88
	TickIntervalMS    int     `yaml:"tick_interval_ms"`    // default 100
	FeedbackWindowSec int     `yaml:"feedback_window_sec"` // default 20
	PromptWindowSec   int     `yaml:"prompt_window_sec"`   // default 15
	InvertPhaseOrder  bool    `yaml:"invert_phase_order"`  // eccentric-first exercises
}

type SyncConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	IntervalSec int    `yaml:"interval_sec"` // default 300
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// DSN returns a PostgreSQL connection string for the sync server database.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix SETFORGE_ and underscore-separated paths:
//
//	SETFORGE_API_HOST, SETFORGE_API_PORT, SETFORGE_BROKER_URL,
//	SETFORGE_STORE_PATH, SETFORGE_SYNC_URL, SETFORGE_SYNC_API_KEY,
//	SETFORGE_DB_HOST, SETFORGE_DB_PORT, SETFORGE_DB_NAME,
//	SETFORGE_DB_USER, SETFORGE_DB_PASSWORD, SETFORGE_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SETFORGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SETFORGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("SETFORGE_BROKER_URL"); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv("SETFORGE_STORE_PATH"); v != "" {
		cfg.Device.StorePath = v
	}
	if v := os.Getenv("SETFORGE_SYNC_URL"); v != "" {
		cfg.Sync.URL = v
	}
	if v := os.Getenv("SETFORGE_SYNC_API_KEY"); v != "" {
		cfg.Sync.APIKey = v
	}
	if v := os.Getenv("SETFORGE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SETFORGE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SETFORGE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SETFORGE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SETFORGE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SETFORGE_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Device.UserID == 0 {
		c.Device.UserID = 1
	}
	if c.Engine.TargetIntensity == 0 {
		c.Engine.TargetIntensity = 98
	}
	if c.Engine.StrainCeiling == 0 {
		c.Engine.StrainCeiling = 88
	}
	if c.Engine.TickIntervalMS == 0 {
		c.Engine.TickIntervalMS = 100
	}
	if c.Engine.FeedbackWindowSec == 0 {
		c.Engine.FeedbackWindowSec = 20
	}
	if c.Engine.PromptWindowSec == 0 {
		c.Engine.PromptWindowSec = 15
	}
	if c.Sync.IntervalSec == 0 {
		c.Sync.IntervalSec = 300
	}
}

// ValidateDevice checks the fields the on-device engine daemon needs.
func (c *Config) ValidateDevice() error {
	if c.API.Port == 0 {
		return fmt.Errorf("api.port is required")
	}
	if c.Device.StorePath == "" {
		return fmt.Errorf("device.store_path is required")
	}
	if c.Broker.URL == "" {
		return fmt.Errorf("broker.url is required")
	}
	if c.Sync.Enabled && (c.Sync.URL == "" || c.Sync.APIKey == "") {
		return fmt.Errorf("sync.url and sync.api_key are required when sync is enabled")
	}
	return nil
}

// ValidateSyncServer checks the fields the sync server binary needs.
func (c *Config) ValidateSyncServer() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if !c.Tailscale.Enabled && c.API.Port == 0 {
		return fmt.Errorf("api.port is required when tailscale is disabled")
	}
	return nil
}
