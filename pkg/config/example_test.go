package config_test

import (
	"fmt"

	"github.com/wonny/canslim-screener/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Store: %s\n", cfg.Store)
	fmt.Printf("Benchmark: %s\n", cfg.Screener.BenchmarkSymbol)
	fmt.Printf("Market timezone: %s\n", cfg.Screener.MarketTimezone)
}
