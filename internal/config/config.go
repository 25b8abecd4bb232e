// Package config loads the daemon's environment-driven configuration,
// with an optional YAML file for values not sensibly passed as env
// vars (override cron, city list path).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/matopiba/forecast-pipeline/internal/cities"
	"github.com/matopiba/forecast-pipeline/internal/schedule"
)

// Config holds everything the daemon needs to wire its dependencies.
type Config struct {
	KVURL           string `yaml:"-"`
	DBURL           string `yaml:"-"`
	ProviderBaseURL string `yaml:"-"`
	ScheduleCron    string `yaml:"schedule_cron,omitempty"`
	CityListPath    string `yaml:"city_list_path,omitempty"`
}

// Load reads KV_URL, DB_URL, and PROVIDER_BASE_URL from the process
// environment (already populated by godotenv.Load in dev mode, by the
// caller), applies defaults, and overlays configFile if non-empty.
func Load(configFile string) (Config, error) {
	cfg := Config{
		KVURL:           os.Getenv("KV_URL"),
		DBURL:           os.Getenv("DB_URL"),
		ProviderBaseURL: os.Getenv("PROVIDER_BASE_URL"),
		ScheduleCron:    envOrDefault("SCHEDULE_CRON", schedule.DefaultCron),
	}
	if cfg.KVURL == "" {
		return Config{}, fmt.Errorf("config: KV_URL is required")
	}
	if cfg.ProviderBaseURL == "" {
		return Config{}, fmt.Errorf("config: PROVIDER_BASE_URL is required")
	}

	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
		var overlay Config
		if err := yaml.Unmarshal(raw, &overlay); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", configFile, err)
		}
		if overlay.ScheduleCron != "" {
			cfg.ScheduleCron = overlay.ScheduleCron
		}
		if overlay.CityListPath != "" {
			cfg.CityListPath = overlay.CityListPath
		}
	}

	return cfg, nil
}

// LoadRoster returns the roster at cfg.CityListPath, or the bundled
// default roster if CityListPath is unset.
func (cfg Config) LoadRoster() (*cities.Roster, error) {
	if cfg.CityListPath == "" {
		return cities.Default()
	}
	f, err := os.Open(cfg.CityListPath)
	if err != nil {
		return nil, fmt.Errorf("config: opening city list: %w", err)
	}
	defer f.Close()
	roster, err := cities.Load(f)
	if err != nil {
		return nil, fmt.Errorf("config: city list invalid: %w", err)
	}
	return roster, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
