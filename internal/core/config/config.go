package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

type Config struct {
	Version       int           `toml:"version"`
	Vault         Vault         `toml:"vault"`
	Watch         Watch         `toml:"watch"`
	Exclude       Exclude       `toml:"exclude"`
	History       History       `toml:"history"`
	Ledger        Ledger        `toml:"ledger"`
	Layout        Layout        `toml:"layout"`
	Intake        Intake        `toml:"intake"`
	Observability Observability `toml:"observability"`
}

type Vault struct {
	Root      string `toml:"root"`
	Extension string `toml:"extension"`
}

type Watch struct {
	Debounce         time.Duration `toml:"debounce"`
	PositionDebounce time.Duration `toml:"position_debounce"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type History struct {
	Capacity int `toml:"capacity"`
}

type Ledger struct {
	MaxEntries int           `toml:"max_entries"`
	MaxAge     time.Duration `toml:"max_age"`
}

type Layout struct {
	Radius float64 `toml:"radius"`
}

type Intake struct {
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateVault(&cfg); err != nil {
		return nil, err
	}
	if err := validateExclude(&cfg); err != nil {
		return nil, err
	}
	if err := validateLimits(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a ready-to-use configuration for the given vault root,
// used when no config file exists on disk.
func Default(root string) *Config {
	cfg := &Config{Vault: Vault{Root: root}}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Vault.Extension) == "" {
		cfg.Vault.Extension = ".md"
	}
	if !strings.HasPrefix(cfg.Vault.Extension, ".") {
		cfg.Vault.Extension = "." + cfg.Vault.Extension
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
	if cfg.Watch.PositionDebounce == 0 {
		cfg.Watch.PositionDebounce = 2 * time.Second
	}

	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", ".obsidian", ".trash"}
	}

	if cfg.History.Capacity <= 0 {
		cfg.History.Capacity = 100
	}

	if cfg.Ledger.MaxEntries <= 0 {
		cfg.Ledger.MaxEntries = 256
	}
	if cfg.Ledger.MaxAge <= 0 {
		cfg.Ledger.MaxAge = time.Minute
	}

	if cfg.Layout.Radius <= 0 {
		cfg.Layout.Radius = 200
	}

	if cfg.Intake.Rate <= 0 {
		cfg.Intake.Rate = 100
	}
	if cfg.Intake.Burst <= 0 {
		cfg.Intake.Burst = 200
	}

	if strings.TrimSpace(cfg.Observability.MetricsAddr) == "" {
		cfg.Observability.MetricsAddr = "127.0.0.1:9190"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateVault(cfg *Config) error {
	if strings.TrimSpace(cfg.Vault.Root) == "" {
		return fmt.Errorf("vault.root must not be empty")
	}
	if cfg.Vault.Extension == "." {
		return fmt.Errorf("vault.extension must not be a bare dot")
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.dirs pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("exclude.files pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateLimits(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.PositionDebounce < 0 {
		return fmt.Errorf("watch.position_debounce must not be negative")
	}
	if cfg.History.Capacity > 10000 {
		return fmt.Errorf("history.capacity must be <= 10000, got %d", cfg.History.Capacity)
	}
	return nil
}
