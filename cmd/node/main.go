package main

import (
	"fmt"
	"os"

	"ReserveGate/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	cfg, err := loadConfig(os.Args[1:], nil)
	if err != nil {
		return fmt.Errorf("load config:\n%w", err)
	}

	logger.Init(logger.ParseLevel(cfg.LogLevel))

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(cfg *Config) {
	logger.Info("starting ReserveGate node",
		"http", cfg.HTTPAddress,
		"data", cfg.DataPath,
		"chain", cfg.ChainID,
		"deployment", cfg.Deployment,
	)
}
