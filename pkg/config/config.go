package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ethwallet/pkg/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = ".ethwallet.json"
	EnvPrefix      = "ethwallet"
)

// Config is the immutable session configuration. It is built once at startup
// and handed to every component that needs it.
type Config struct {
	Networks         []models.NetworkDescriptor
	ExplorerProxyURL string
	ExplorerAPIKey   string
	ExplorerRPS      float64
	MarketURL        string
	CoinGeckoURL     string

	FetchMaxAttempts    int
	FetchBaseDelay      time.Duration
	FetchAttemptTimeout time.Duration
	NetworkTimeout      time.Duration
	DetectTimeout       time.Duration
	HistoryLimit        int

	FiatDecimals  int
	TokenDecimals int
	LogLevel      string
	LogFile       string
	Port          int
}

// fileConfig mirrors the on-disk layout. Pointer fields distinguish "absent"
// from zero so defaults survive partial files.
type fileConfig struct {
	Networks           []models.NetworkDescriptor `json:"networks" yaml:"networks"`
	ExplorerProxyURL   *string                    `json:"explorer_proxy_url,omitempty" yaml:"explorer_proxy_url,omitempty"`
	ExplorerAPIKey     *string                    `json:"explorer_api_key,omitempty" yaml:"explorer_api_key,omitempty"`
	ExplorerRPS        *float64                   `json:"explorer_rps,omitempty" yaml:"explorer_rps,omitempty"`
	MarketURL          *string                    `json:"market_url,omitempty" yaml:"market_url,omitempty"`
	CoinGeckoURL       *string                    `json:"coingecko_url,omitempty" yaml:"coingecko_url,omitempty"`
	FetchMaxAttempts   *int                       `json:"fetch_max_attempts,omitempty" yaml:"fetch_max_attempts,omitempty"`
	FetchBaseDelayMs   *int                       `json:"fetch_base_delay_ms,omitempty" yaml:"fetch_base_delay_ms,omitempty"`
	FetchAttemptTimeMs *int                       `json:"fetch_attempt_timeout_ms,omitempty" yaml:"fetch_attempt_timeout_ms,omitempty"`
	NetworkTimeoutMs   *int                       `json:"network_timeout_ms,omitempty" yaml:"network_timeout_ms,omitempty"`
	DetectTimeoutMs    *int                       `json:"detect_timeout_ms,omitempty" yaml:"detect_timeout_ms,omitempty"`
	HistoryLimit       *int                       `json:"history_limit,omitempty" yaml:"history_limit,omitempty"`
	FiatDecimals       *int                       `json:"fiat_decimals,omitempty" yaml:"fiat_decimals,omitempty"`
	TokenDecimals      *int                       `json:"token_decimals,omitempty" yaml:"token_decimals,omitempty"`
	LogLevel           *string                    `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFile            *string                    `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Port               *int                       `json:"port,omitempty" yaml:"port,omitempty"`
}

// envOverrides is processed with the ETHWALLET_ prefix, e.g. ETHWALLET_EXPLORER_URL.
type envOverrides struct {
	ExplorerURL    string `envconfig:"EXPLORER_URL"`
	ExplorerAPIKey string `envconfig:"ETHERSCAN_API_KEY"`
	MarketURL      string `envconfig:"MARKET_URL"`
	MainnetRPCURL  string `envconfig:"MAINNET_RPC_URL"`
	SepoliaRPCURL  string `envconfig:"SEPOLIA_RPC_URL"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogFile        string `envconfig:"LOG_FILE"`
	Port           int    `envconfig:"PORT"`
}

// DefaultNetworks is the built-in catalog: mainnet first, then test networks.
func DefaultNetworks() []models.NetworkDescriptor {
	return []models.NetworkDescriptor{
		{
			ID:              models.Mainnet,
			DisplayName:     "Ethereum Mainnet",
			ChainID:         1,
			RPCURL:          "https://rpc.ankr.com/eth",
			ExplorerBaseURL: "https://api.etherscan.io/api",
			Symbol:          "ETH",
		},
		{
			ID:              models.Sepolia,
			DisplayName:     "Sepolia Testnet",
			ChainID:         11155111,
			RPCURL:          "https://ethereum-sepolia-rpc.publicnode.com",
			ExplorerBaseURL: "https://api-sepolia.etherscan.io/api",
			Symbol:          "SepoliaETH",
		},
	}
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Networks:            DefaultNetworks(),
		ExplorerRPS:         5,
		MarketURL:           "http://localhost:3000/api",
		CoinGeckoURL:        "https://api.coingecko.com/api/v3",
		FetchMaxAttempts:    3,
		FetchBaseDelay:      time.Second,
		FetchAttemptTimeout: 4 * time.Second,
		NetworkTimeout:      6 * time.Second,
		DetectTimeout:       7 * time.Second,
		HistoryLimit:        10,
		FiatDecimals:        2,
		TokenDecimals:       4,
		LogLevel:            "info",
		Port:                8080,
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// Load reads the file at path (missing file means defaults), then applies
// .env and ETHWALLET_* environment overrides, then validates.
func Load(path string) (Config, error) {
	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "load .env")
	}
	cfg, err = ApplyEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f, isYAML(path))
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func LoadConfig(r io.Reader, yamlFormat bool) (Config, error) {
	var fc fileConfig
	if yamlFormat {
		if err := yaml.NewDecoder(r).Decode(&fc); err != nil && err != io.EOF {
			return Config{}, errors.Wrap(err, "decode yaml config")
		}
	} else {
		if err := json.NewDecoder(r).Decode(&fc); err != nil {
			return Config{}, errors.Wrap(err, "decode json config")
		}
	}

	cfg := Default()
	if len(fc.Networks) > 0 {
		cfg.Networks = fc.Networks
	}
	setString(&cfg.ExplorerProxyURL, fc.ExplorerProxyURL)
	setString(&cfg.ExplorerAPIKey, fc.ExplorerAPIKey)
	setString(&cfg.MarketURL, fc.MarketURL)
	setString(&cfg.CoinGeckoURL, fc.CoinGeckoURL)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.ExplorerRPS != nil {
		cfg.ExplorerRPS = *fc.ExplorerRPS
	}
	setInt(&cfg.FetchMaxAttempts, fc.FetchMaxAttempts)
	setInt(&cfg.HistoryLimit, fc.HistoryLimit)
	setInt(&cfg.FiatDecimals, fc.FiatDecimals)
	setInt(&cfg.TokenDecimals, fc.TokenDecimals)
	setInt(&cfg.Port, fc.Port)
	setMillis(&cfg.FetchBaseDelay, fc.FetchBaseDelayMs)
	setMillis(&cfg.FetchAttemptTimeout, fc.FetchAttemptTimeMs)
	setMillis(&cfg.NetworkTimeout, fc.NetworkTimeoutMs)
	setMillis(&cfg.DetectTimeout, fc.DetectTimeoutMs)
	return cfg, nil
}

// ApplyEnv overlays ETHWALLET_* variables on cfg.
func ApplyEnv(cfg Config) (Config, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Config{}, errors.Wrap(err, "process environment")
	}
	if env.ExplorerURL != "" {
		cfg.ExplorerProxyURL = env.ExplorerURL
	}
	if env.ExplorerAPIKey != "" {
		cfg.ExplorerAPIKey = env.ExplorerAPIKey
	}
	if env.MarketURL != "" {
		cfg.MarketURL = env.MarketURL
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.LogFile != "" {
		cfg.LogFile = env.LogFile
	}
	if env.Port != 0 {
		cfg.Port = env.Port
	}

	networks := make([]models.NetworkDescriptor, len(cfg.Networks))
	copy(networks, cfg.Networks)
	for i := range networks {
		switch {
		case networks[i].ID == models.Mainnet && env.MainnetRPCURL != "":
			networks[i].RPCURL = env.MainnetRPCURL
		case networks[i].ID == models.Sepolia && env.SepoliaRPCURL != "":
			networks[i].RPCURL = env.SepoliaRPCURL
		}
	}
	cfg.Networks = networks
	return cfg, nil
}

// Validate checks the structural requirements of the catalog.
func (c Config) Validate() error {
	problems := c.StructureErrors()
	if len(problems) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// StructureErrors lists every structural problem instead of stopping at the first.
func (c Config) StructureErrors() []string {
	var problems []string
	if len(c.Networks) < 2 {
		problems = append(problems, "configuration must have mainnet and at least one test network")
	}
	seen := make(map[models.NetworkID]bool)
	for i, n := range c.Networks {
		if strings.TrimSpace(string(n.ID)) == "" {
			problems = append(problems, fmt.Sprintf("network at index %d has no id", i))
			continue
		}
		if seen[n.ID] {
			problems = append(problems, fmt.Sprintf("network %s is declared twice", n.ID))
		}
		seen[n.ID] = true
		if n.DisplayName == "" {
			problems = append(problems, fmt.Sprintf("network %s has no display name", n.ID))
		}
		if n.ChainID <= 0 {
			problems = append(problems, fmt.Sprintf("network %s has no chain id", n.ID))
		}
		if n.RPCURL == "" {
			problems = append(problems, fmt.Sprintf("network %s has no RPC URL", n.ID))
		}
		if n.ExplorerBaseURL == "" && c.ExplorerProxyURL == "" {
			problems = append(problems, fmt.Sprintf("network %s has no explorer URL", n.ID))
		}
	}
	if c.FetchMaxAttempts < 1 {
		problems = append(problems, "fetch_max_attempts must be at least 1")
	}
	return problems
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	fc := fileConfig{
		Networks:           cfg.Networks,
		ExplorerProxyURL:   optString(cfg.ExplorerProxyURL),
		ExplorerRPS:        &cfg.ExplorerRPS,
		MarketURL:          optString(cfg.MarketURL),
		CoinGeckoURL:       optString(cfg.CoinGeckoURL),
		FetchMaxAttempts:   &cfg.FetchMaxAttempts,
		FetchBaseDelayMs:   millis(cfg.FetchBaseDelay),
		FetchAttemptTimeMs: millis(cfg.FetchAttemptTimeout),
		NetworkTimeoutMs:   millis(cfg.NetworkTimeout),
		DetectTimeoutMs:    millis(cfg.DetectTimeout),
		HistoryLimit:       &cfg.HistoryLimit,
		FiatDecimals:       &cfg.FiatDecimals,
		TokenDecimals:      &cfg.TokenDecimals,
		LogLevel:           optString(cfg.LogLevel),
		LogFile:            optString(cfg.LogFile),
		Port:               &cfg.Port,
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(fc)
	} else {
		data, err = json.MarshalIndent(fc, "", "  ")
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Millisecond
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func millis(d time.Duration) *int {
	ms := int(d / time.Millisecond)
	return &ms
}
