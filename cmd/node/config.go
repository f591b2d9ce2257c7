package main

import (
	"flag"
	"fmt"
	"math/big"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/capacity"
)

// envPrefix namespaces every environment variable read by the node.
const envPrefix = "RESERVEGATE_"

// Config holds the node configuration. Environment variables are read first,
// command-line flags override them.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string `env:"DATA" envDefault:"./data"`

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string `env:"HTTP" envDefault:":8080"`

	// ChainID identifies the network attestations are bound to.
	ChainID uint64 `env:"CHAIN_ID"`

	// Deployment is the hex address identifying this controller instance.
	Deployment string `env:"DEPLOYMENT"`

	// RolesPath is the YAML file with the initial role holders.
	RolesPath string `env:"ROLES"`

	// LogLevel is the minimum log level.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// InitialCapacity is the genesis capacity, in base units.
	InitialCapacity string `env:"INITIAL_CAPACITY" envDefault:"0"`

	// CollateralRatioBps is the genesis collateral ratio in basis points.
	CollateralRatioBps uint `env:"COLLATERAL_RATIO_BPS" envDefault:"10000"`

	// DailyLimit is the genesis daily increase limit, in base units.
	DailyLimit string `env:"DAILY_LIMIT" envDefault:"0"`

	// Threshold is the genesis signature threshold.
	Threshold uint `env:"THRESHOLD" envDefault:"1"`

	// UnpauseDelay is the timelock between unpause request and execution.
	UnpauseDelay time.Duration `env:"UNPAUSE_DELAY" envDefault:"24h"`

	// MaxAttestationAge rejects older attestations; 0 disables the check.
	MaxAttestationAge time.Duration `env:"MAX_ATTESTATION_AGE" envDefault:"1h"`

	// MaxClockSkew bounds how far in the future a timestamp may be.
	MaxClockSkew time.Duration `env:"MAX_CLOCK_SKEW" envDefault:"30s"`

	// ReplayCacheSize bounds the in-memory used-id cache.
	ReplayCacheSize int `env:"REPLAY_CACHE_SIZE" envDefault:"4096"`
}

// loadConfig reads the environment then applies flag overrides from args.
// A nil environ reads the process environment.
func loadConfig(args []string, environ map[string]string) (*Config, error) {
	cfg := &Config{}

	opts := env.Options{Prefix: envPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env:\n%w", err)
	}

	fs := flag.NewFlagSet("reservegate", flag.ContinueOnError)
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "Data directory path")
	fs.StringVar(&cfg.HTTPAddress, "http", cfg.HTTPAddress, "HTTP API address")
	fs.Uint64Var(&cfg.ChainID, "chain-id", cfg.ChainID, "Chain id attestations are bound to")
	fs.StringVar(&cfg.Deployment, "deployment", cfg.Deployment, "Deployment address (hex)")
	fs.StringVar(&cfg.RolesPath, "roles", cfg.RolesPath, "YAML file with initial role holders")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.InitialCapacity, "initial-capacity", cfg.InitialCapacity, "Genesis capacity")
	fs.UintVar(&cfg.CollateralRatioBps, "collateral-ratio", cfg.CollateralRatioBps, "Genesis collateral ratio in bps")
	fs.StringVar(&cfg.DailyLimit, "daily-limit", cfg.DailyLimit, "Genesis daily increase limit")
	fs.UintVar(&cfg.Threshold, "threshold", cfg.Threshold, "Genesis signature threshold")
	fs.DurationVar(&cfg.UnpauseDelay, "unpause-delay", cfg.UnpauseDelay, "Unpause timelock")
	fs.DurationVar(&cfg.MaxAttestationAge, "max-age", cfg.MaxAttestationAge, "Maximum attestation age (0 disables)")
	fs.DurationVar(&cfg.MaxClockSkew, "max-skew", cfg.MaxClockSkew, "Maximum future timestamp skew")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Controller converts the node configuration into controller parameters.
func (c *Config) Controller() (capacity.Config, error) {
	if !common.IsHexAddress(c.Deployment) {
		return capacity.Config{}, fmt.Errorf("invalid deployment address %q", c.Deployment)
	}

	initial, ok := new(big.Int).SetString(c.InitialCapacity, 10)
	if !ok {
		return capacity.Config{}, fmt.Errorf("invalid initial capacity %q", c.InitialCapacity)
	}

	limit, ok := new(big.Int).SetString(c.DailyLimit, 10)
	if !ok {
		return capacity.Config{}, fmt.Errorf("invalid daily limit %q", c.DailyLimit)
	}

	if c.CollateralRatioBps > 1<<32-1 || c.Threshold > 1<<32-1 {
		return capacity.Config{}, fmt.Errorf("ratio or threshold out of range")
	}

	cfg := capacity.Config{
		Domain: attestation.Domain{
			ChainID:    c.ChainID,
			Deployment: common.HexToAddress(c.Deployment),
		},
		UnpauseDelay:       c.UnpauseDelay,
		MaxAttestationAge:  c.MaxAttestationAge,
		MaxClockSkew:       c.MaxClockSkew,
		ReplayCacheSize:    c.ReplayCacheSize,
		InitialCapacity:    initial,
		CollateralRatioBps: uint32(c.CollateralRatioBps),
		DailyLimit:         limit,
		Threshold:          uint32(c.Threshold),
	}

	if err := cfg.Validate(); err != nil {
		return capacity.Config{}, fmt.Errorf("controller config:\n%w", err)
	}

	return cfg, nil
}
