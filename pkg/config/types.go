package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Relay       RelayConfig       `yaml:"relay"`
	Bridge      BridgeConfig      `yaml:"bridge"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig holds the token record store location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// RelayConfig holds the automation behavior knobs.
type RelayConfig struct {
	// Domain is the public base URL advertised in webhook announcements,
	// e.g. "https://relay.example.com".
	Domain string `yaml:"domain"`
	// Commands are inbound message texts that trigger a webhook
	// announcement for the sender.
	Commands []string `yaml:"commands"`
	// Announcement is the text posted to a room when the account is added.
	Announcement   string   `yaml:"announcement"`
	AcceptDelayMin Duration `yaml:"accept_delay_min"`
	AcceptDelayMax Duration `yaml:"accept_delay_max"`
	SendTimeout    Duration `yaml:"send_timeout"`
}

// BridgeConfig locates the puppet bridge the relay speaks through.
type BridgeConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// GatewayConfig holds webhook gateway settings.
type GatewayConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig caps requests per token within a window.
type RateLimitConfig struct {
	Max    int      `yaml:"max"`
	Window Duration `yaml:"window"`
}

// MaintenanceConfig holds configuration for the scheduled store sweep.
type MaintenanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration that unmarshals from yaml strings like
// "1.2s" or "60s", or from bare numbers interpreted as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := value.Value
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
