package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the agent configuration (YAML or JSON file, env, flags).
type Config struct {
	Endpoint     string          `yaml:"endpoint" json:"endpoint"` // base URL; reports go to <endpoint>/network-info
	AppKey       string          `yaml:"app_key" json:"app_key"`   // scopes the hashed device identifier
	Reachability ReachabilityCfg `yaml:"reachability" json:"reachability"`
	Timeouts     TimeoutsCfg     `yaml:"timeouts" json:"timeouts"`
	PathWatch    PathWatchCfg    `yaml:"path_watch" json:"path_watch"`
}

type ReachabilityCfg struct {
	Host       string `yaml:"host" json:"host"`               // host:port dialed by the prober
	CaptiveURL string `yaml:"captive_url" json:"captive_url"` // optional, empty disables
}

type TimeoutsCfg struct {
	RequestSec  int `yaml:"request_sec" json:"request_sec"`
	QuerySec    int `yaml:"query_sec" json:"query_sec"`
	MockDelayMs int `yaml:"mock_delay_ms" json:"mock_delay_ms"`
	ResetSec    int `yaml:"reset_sec" json:"reset_sec"` // terminal status lifetime, clamped to 2..3
}

type PathWatchCfg struct {
	Disabled    bool `yaml:"disabled" json:"disabled"`
	IntervalSec int  `yaml:"interval_sec" json:"interval_sec"`
}

// Load reads config from path. Supports .yaml, .yml, .json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := new(Config)
	switch filepath.Ext(path) {
	case ".json":
		return c, json.Unmarshal(data, c)
	default:
		return c, yaml.Unmarshal(data, c)
	}
}

// LoadDotEnv loads .env from the working directory when present.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// ApplyEnv overrides fields from NETREPORT_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NETREPORT_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("NETREPORT_APP_KEY"); v != "" {
		c.AppKey = v
	}
	if v := os.Getenv("NETREPORT_REACHABILITY_HOST"); v != "" {
		c.Reachability.Host = v
	}
	if v := os.Getenv("NETREPORT_CAPTIVE_URL"); v != "" {
		c.Reachability.CaptiveURL = v
	}
	if n, err := strconv.Atoi(os.Getenv("NETREPORT_REQUEST_TIMEOUT_SEC")); err == nil {
		c.Timeouts.RequestSec = n
	}
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.AppKey == "" {
		c.AppKey = "netreport"
	}
	if c.Reachability.Host == "" {
		c.Reachability.Host = "www.apple.com:443"
	}
	if c.Timeouts.RequestSec <= 0 {
		c.Timeouts.RequestSec = 30
	}
	if c.Timeouts.QuerySec <= 0 {
		c.Timeouts.QuerySec = 3
	}
	if c.Timeouts.MockDelayMs <= 0 {
		c.Timeouts.MockDelayMs = 1000
	}
	// terminal statuses stay visible for 2 to 3 seconds
	switch {
	case c.Timeouts.ResetSec <= 0, c.Timeouts.ResetSec > 3:
		c.Timeouts.ResetSec = 3
	case c.Timeouts.ResetSec < 2:
		c.Timeouts.ResetSec = 2
	}
	if c.PathWatch.IntervalSec <= 0 {
		c.PathWatch.IntervalSec = 5
	}
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeouts.RequestSec) * time.Second
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Timeouts.QuerySec) * time.Second
}

func (c *Config) MockDelay() time.Duration {
	return time.Duration(c.Timeouts.MockDelayMs) * time.Millisecond
}

func (c *Config) ResetDelay() time.Duration {
	return time.Duration(c.Timeouts.ResetSec) * time.Second
}

func (c *Config) PathWatchInterval() time.Duration {
	return time.Duration(c.PathWatch.IntervalSec) * time.Second
}
