// ABOUTME: YAML configuration with environment-variable overrides for credentials.
// ABOUTME: Missing credentials are not startup failures; they surface when a run first needs the provider.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Addr    string `yaml:"addr"`     // HTTP listen address
	DataDir string `yaml:"data_dir"` // base directory for the memory store and screenshots

	Scrape struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		DelayMs int    `yaml:"delay_ms"`
	} `yaml:"scrape"`

	Reasoning struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"` // empty = default OpenAI endpoint
		Model   string `yaml:"model"`
	} `yaml:"reasoning"`

	Manual struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"manual"`

	Browser struct {
		Headless     bool   `yaml:"headless"`
		NavTimeoutMs int    `yaml:"nav_timeout_ms"`
		Bin          string `yaml:"bin"`
	} `yaml:"browser"`

	Pipeline struct {
		MaxCompetitors   int                `yaml:"max_competitors"`
		CheckConcurrency int                `yaml:"check_concurrency"`
		CallTimeoutSecs  int                `yaml:"call_timeout_secs"`
		RunTimeoutMins   int                `yaml:"run_timeout_mins"`
		RegistryTTLHours int                `yaml:"registry_ttl_hours"`
		Competitors      []CompetitorConfig `yaml:"competitors"`
	} `yaml:"pipeline"`
}

// CompetitorConfig names one configured competitor target.
type CompetitorConfig struct {
	Name string   `yaml:"name"`
	URLs []string `yaml:"urls"`
}

// Default returns the configuration defaults applied before file and env values.
func Default() Config {
	var c Config
	c.Addr = "127.0.0.1:8390"
	c.DataDir = "./data"
	c.Browser.Headless = true
	c.Browser.NavTimeoutMs = 15000
	c.Scrape.DelayMs = 500
	c.Reasoning.Model = "gpt-4o-mini"
	c.Pipeline.MaxCompetitors = 3
	c.Pipeline.CheckConcurrency = 2
	c.Pipeline.CallTimeoutSecs = 20
	c.Pipeline.RunTimeoutMins = 30
	c.Pipeline.RegistryTTLHours = 24
	return c
}

// Load reads the YAML file at path (missing file is fine, defaults apply),
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides credentials and endpoints from the environment.
// Env wins over the file so deployments can keep secrets out of YAML.
func (c *Config) applyEnv() {
	setIfEnv(&c.Scrape.APIKey, "SCRAPE_API_KEY")
	setIfEnv(&c.Scrape.BaseURL, "SCRAPE_BASE_URL")
	setIfEnv(&c.Reasoning.APIKey, "OPENAI_API_KEY")
	setIfEnv(&c.Reasoning.BaseURL, "OPENAI_BASE_URL")
	setIfEnv(&c.Reasoning.Model, "OPENAI_MODEL")
	setIfEnv(&c.Manual.APIKey, "MANUAL_API_KEY")
	setIfEnv(&c.Manual.BaseURL, "MANUAL_BASE_URL")
	setIfEnv(&c.Addr, "NICHESCOUT_ADDR")
	setIfEnv(&c.DataDir, "NICHESCOUT_DATA_DIR")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// CallTimeout returns the per-call timeout as a duration.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.Pipeline.CallTimeoutSecs) * time.Second
}

// RunTimeout returns the run-level timeout as a duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Pipeline.RunTimeoutMins) * time.Minute
}

// RegistryTTL returns how long finished runs stay in the registry.
func (c Config) RegistryTTL() time.Duration {
	return time.Duration(c.Pipeline.RegistryTTLHours) * time.Hour
}

// ScrapeDelay returns the polite delay between scrape provider calls.
func (c Config) ScrapeDelay() time.Duration {
	return time.Duration(c.Scrape.DelayMs) * time.Millisecond
}

// NavTimeout returns the browser navigation timeout.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutMs) * time.Millisecond
}
