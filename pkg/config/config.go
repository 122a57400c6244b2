package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither flags, env nor config file provide a value.
const (
	DefaultAddr        = ":3000"
	DefaultDBPath      = "./data/tokens"
	DefaultRateMax     = 10
	DefaultRateWindow  = 60 * time.Second
	DefaultSendTimeout = 15 * time.Second
	DefaultDelayMin    = 1200 * time.Millisecond
	DefaultDelayMax    = 3200 * time.Millisecond
)

// DefaultCommands are the inbound texts that trigger a webhook
// announcement. "推送地址" is the legacy keyword kept for existing users.
var DefaultCommands = []string{"webhook", "推送地址"}

// DefaultAnnouncement is posted to a room right after the account joins.
const DefaultAnnouncement = "Hi, I am the relay bot. Messages posted to my webhook endpoint are delivered to this group."

// EffectiveConfigResult is the merged view of flags, env and config file.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "env" or "config"
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 3000
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", DefaultAddr, "HTTP listen address")
	dbPtr := flag.String("db", DefaultDBPath, "token store path")
	cfgPtr := flag.String("config", "./chatrelay.yaml", "path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath picks the config file path: an explicit flag wins over
// the CHATRELAY_CONFIG env var, which wins over the flag default.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if v := os.Getenv("CHATRELAY_CONFIG"); v != "" {
		return v
	}
	return flagPath
}

// LoadEnvOverrides applies CHATRELAY_* environment overrides onto cfg and
// reports whether any were present.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	if v := os.Getenv("CHATRELAY_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("CHATRELAY_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CHATRELAY_DOMAIN"); v != "" {
		envUsed = true
		cfg.Relay.Domain = v
	}
	if v := os.Getenv("CHATRELAY_BRIDGE_URL"); v != "" {
		envUsed = true
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("CHATRELAY_BRIDGE_TOKEN"); v != "" {
		envUsed = true
		cfg.Bridge.Token = v
	}
	if v := os.Getenv("CHATRELAY_RATE_MAX"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Gateway.RateLimit.Max = n
		}
	}
	if v := os.Getenv("CHATRELAY_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Gateway.RateLimit.Window = Duration(d)
		}
	}
	if v := os.Getenv("CHATRELAY_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// LoadEffective merges config file, env and flags into the effective
// configuration. Precedence: flags > env > file > defaults.
func LoadEffective(cfgPath, addrFlag, dbFlag string, setFlags map[string]bool) (EffectiveConfigResult, error) {
	cfg := &Config{}
	source := "flags"
	if c, err := Load(cfgPath); err == nil {
		cfg = c
		source = "config"
	} else if !os.IsNotExist(err) {
		return EffectiveConfigResult{}, err
	}

	if LoadEnvOverrides(cfg) {
		source = "env"
	}

	applyDefaults(cfg)

	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrFlag
		source = "flags"
	}
	dbPath := cfg.Storage.DBPath
	if setFlags["db"] || dbPath == "" {
		dbPath = dbFlag
	}
	return EffectiveConfigResult{Config: cfg, Addr: addr, DBPath: dbPath, Source: source}, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Relay.Commands) == 0 {
		cfg.Relay.Commands = append([]string{}, DefaultCommands...)
	}
	if cfg.Relay.Announcement == "" {
		cfg.Relay.Announcement = DefaultAnnouncement
	}
	if cfg.Relay.AcceptDelayMin == 0 {
		cfg.Relay.AcceptDelayMin = Duration(DefaultDelayMin)
	}
	if cfg.Relay.AcceptDelayMax == 0 {
		cfg.Relay.AcceptDelayMax = Duration(DefaultDelayMax)
	}
	if cfg.Relay.SendTimeout == 0 {
		cfg.Relay.SendTimeout = Duration(DefaultSendTimeout)
	}
	if cfg.Gateway.RateLimit.Max == 0 {
		cfg.Gateway.RateLimit.Max = DefaultRateMax
	}
	if cfg.Gateway.RateLimit.Window == 0 {
		cfg.Gateway.RateLimit.Window = Duration(DefaultRateWindow)
	}
}
