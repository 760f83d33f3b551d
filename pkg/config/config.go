package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

type Config struct {
	// StoreURL identifies the storefront to the search API; every request
	// is scoped to it.
	StoreURL string `toml:"store_url"`

	// APIBase is the base URL of the remote search API.
	APIBase string `toml:"api_base"`

	// ListenAddr is the address the widget API server binds to.
	ListenAddr string `toml:"listen_addr"`

	// HistoryDB is the path of the recent-searches database. Empty uses
	// the default data directory.
	HistoryDB string `toml:"history_db"`

	PageSize          int     `toml:"page_size"`
	InitialFacetLimit int     `toml:"initial_facet_limit"`
	DefaultMaxPrice   float64 `toml:"default_max_price"`

	QueryDebounce  Duration `toml:"query_debounce"`
	FilterDebounce Duration `toml:"filter_debounce"`
	RequestTimeout Duration `toml:"request_timeout"`

	// FallbackSort orders the zero-result fallback and the initial
	// recommendations.
	FallbackSort string `toml:"fallback_sort"`

	// NoResultsMessage overrides the zero-result fallback copy. It must
	// contain one %s verb receiving the filter description.
	NoResultsMessage string `toml:"no_results_message,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	historyDB, err := GetDefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("getting default history database path: %w", err)
	}
	cfg := &Config{HistoryDB: historyDB}
	cfg.applyDefaults()
	return cfg, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.HistoryDB == "" {
		historyDB, err := GetDefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("getting default history database path: %w", err)
		}
		config.HistoryDB = historyDB
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.APIBase == "" {
		c.APIBase = "https://api.kalifinder.com"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "localhost:8087"
	}
	if c.PageSize <= 0 {
		c.PageSize = 12
	}
	if c.InitialFacetLimit <= 0 {
		c.InitialFacetLimit = 1000
	}
	if c.DefaultMaxPrice <= 0 {
		c.DefaultMaxPrice = 1000
	}
	if c.QueryDebounce.Duration == 0 {
		c.QueryDebounce = Duration{800 * time.Millisecond}
	}
	if c.FilterDebounce.Duration == 0 {
		c.FilterDebounce = Duration{500 * time.Millisecond}
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = Duration{30 * time.Second}
	}
	if c.FallbackSort == "" {
		c.FallbackSort = "featured"
	}
}

// Validate reports configuration errors that would prevent the engine
// from operating at all.
func (c *Config) Validate() error {
	if c.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if c.NoResultsMessage != "" && !strings.Contains(c.NoResultsMessage, "%s") {
		return fmt.Errorf("no_results_message must contain a %%s placeholder")
	}
	return nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	historyDB := c.HistoryDB
	if historyDB == "" {
		var err error
		historyDB, err = GetDefaultDBPath()
		if err != nil {
			return "", fmt.Errorf("getting default history database path: %w", err)
		}
	}

	// Replace the placeholder history_db with the actual path
	template := strings.Replace(configTemplate, "/home/user/.local/share/kalifinder/history.db", historyDB, 1)
	return template, nil
}

// GetDefaultStorageDir returns the default data directory for databases
func GetDefaultStorageDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	widgetDir := filepath.Join(dataDir, "kalifinder")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(widgetDir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", widgetDir, err)
	}

	return widgetDir, nil
}

// GetDefaultDBPath returns the default history database path in the
// user's data directory
func GetDefaultDBPath() (string, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(storageDir, "history.db"), nil
}

// GetConfigDir returns the configuration directory for the widget
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	widgetConfigDir := filepath.Join(configDir, "kalifinder")

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(widgetConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", widgetConfigDir, err)
	}

	return widgetConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
