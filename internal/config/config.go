package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Config is the immutable configuration snapshot consumed by every
// component. A reconfiguration builds a fresh snapshot and replaces the
// previous one wholesale; in-flight operations keep the snapshot they
// were started with.
type Config struct {
	AccountSID      string            `json:"account_sid"`
	AuthToken       string            `json:"auth_token"`
	DefaultFrom     string            `json:"default_from"`
	MediaServiceSID string            `json:"media_sid"`
	Presets         map[string]string `json:"presets"`
	EnforcePresets  bool              `json:"enforce_presets"`

	StoreInTelemetry bool      `json:"store_in_telemetry"`
	Telemetry        Telemetry `json:"telemetry"`

	HTTPPort        int           `json:"http_port"`
	PostgresDSN     string        `json:"postgres_dsn"`
	RedisAddr       string        `json:"redis_addr"`
	SyncIntervalStr string        `json:"sync_interval"`
	SyncInterval    time.Duration `json:"-"`
}

// Telemetry holds the credentials and identity used when mirroring
// messages into the external telemetry store.
type Telemetry struct {
	APIKeyID       string `json:"api_key_id"`
	APIKeySecret   string `json:"api_key_secret"`
	OrganizationID string `json:"organization_id"`
	PartID         string `json:"part_id"`
	ComponentName  string `json:"component_name"`
}

// Complete reports whether every field needed to reach the telemetry
// store is present.
func (t Telemetry) Complete() bool {
	return t.APIKeyID != "" && t.APIKeySecret != "" &&
		t.OrganizationID != "" && t.ComponentName != ""
}

// Load reads json formatted configuration from the given file, applies
// environment overrides for secrets, fills defaults and validates.
func Load(configFile string) (*Config, error) {
	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)
	if err = json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.SyncIntervalStr != "" {
		cfg.SyncInterval, err = time.ParseDuration(cfg.SyncIntervalStr)
		if err != nil {
			return nil, fmt.Errorf("invalid sync_interval: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	overlay := map[string]*string{
		"TWILIO_ACCOUNT_SID":       &c.AccountSID,
		"TWILIO_AUTH_TOKEN":        &c.AuthToken,
		"TELEMETRY_API_KEY_ID":     &c.Telemetry.APIKeyID,
		"TELEMETRY_API_KEY_SECRET": &c.Telemetry.APIKeySecret,
	}
	for key, dst := range overlay {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.SyncIntervalStr == "" {
		c.SyncInterval = 2 * time.Second
	}
	if c.Telemetry.ComponentName == "" {
		c.Telemetry.ComponentName = "sms"
	}
}

// Validate enforces the configuration invariants.
func (c *Config) Validate() error {
	if c.AccountSID == "" {
		return errors.New("an account_sid must be defined")
	}
	if c.AuthToken == "" {
		return errors.New("an auth_token must be defined")
	}
	if c.EnforcePresets && len(c.Presets) == 0 {
		return errors.New("enforce_presets requires a non-empty preset mapping")
	}
	if c.SyncInterval < 0 {
		return errors.New("sync_interval must not be negative")
	}
	return nil
}

// PresetBody resolves a preset name against the mapping by exact key.
func (c *Config) PresetBody(name string) (string, bool) {
	body, ok := c.Presets[name]
	return body, ok
}
