package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"frizo/isolation_vaults/pkg/utils"
)

// Vault variants.
const (
	VariantBase        = "base"
	VariantPausable    = "pausable"
	VariantEOA         = "eoa"
	VariantPausableEOA = "pausable_eoa"
)

// Config holds the application configuration.
type Config struct {
	// Logging configuration
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Application configuration
	Environment string `toml:"environment"`

	Vault VaultConfig `toml:"vault"`
}

// VaultConfig describes the isolation vault deployment to bootstrap.
type VaultConfig struct {
	Variant          string   `toml:"variant"`
	Owner            string   `toml:"owner"`
	Liquidator       string   `toml:"liquidator"`
	UnderlyingSymbol string   `toml:"underlying_symbol"`
	TicketSymbol     string   `toml:"ticket_symbol"`
	OtherSymbols     []string `toml:"other_symbols"`
	// ExchangeRate is the desk price of one underlying in every other token.
	ExchangeRate string `toml:"exchange_rate"`
	DeskReserves uint64 `toml:"desk_reserves"`
	// Market symbols; empty means unrestricted.
	AllowableDebtMarkets       []string `toml:"allowable_debt_markets"`
	AllowableCollateralMarkets []string `toml:"allowable_collateral_markets"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Environment: "development",
		Vault: VaultConfig{
			Variant:          VariantBase,
			Owner:            "0x00000000000000000000000000000000000000a1",
			Liquidator:       "0x00000000000000000000000000000000000000b2",
			UnderlyingSymbol: "plvGLP",
			TicketSymbol:     "dplvGLP",
			OtherSymbols:     []string{"USDC", "WETH"},
			ExchangeRate:     "1",
			DeskReserves:     1_000_000,
		},
	}
}

// Load loads the configuration from environment variables.
func Load() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// LoadFile layers defaults, the TOML file at path when it exists, and
// environment variables, in that order.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" && utils.FileExists(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the log format and the vault section.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch c.Vault.Variant {
	case VariantBase, VariantPausable, VariantEOA, VariantPausableEOA:
	default:
		return fmt.Errorf("unknown vault variant %q", c.Vault.Variant)
	}
	if c.Vault.UnderlyingSymbol == "" {
		return fmt.Errorf("underlying symbol is required")
	}
	if len(c.Vault.OtherSymbols) == 0 {
		return fmt.Errorf("at least one other market is required")
	}
	seen := map[string]bool{c.Vault.UnderlyingSymbol: true}
	for _, sym := range c.Vault.OtherSymbols {
		if seen[sym] {
			return fmt.Errorf("duplicate token symbol %q", sym)
		}
		seen[sym] = true
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.Vault.Variant = getEnv("VAULT_VARIANT", cfg.Vault.Variant)
	cfg.Vault.UnderlyingSymbol = getEnv("UNDERLYING_SYMBOL", cfg.Vault.UnderlyingSymbol)
	cfg.Vault.DeskReserves = uint64(getEnvAsInt("DESK_RESERVES", int(cfg.Vault.DeskReserves)))
	if others := getEnv("OTHER_SYMBOLS", ""); others != "" {
		cfg.Vault.OtherSymbols = strings.Split(others, ",")
	}
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// getEnvAsInt gets an environment variable as integer with a default value.
func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}
