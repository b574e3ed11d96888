// codecbridge polls a Tieline codec's REST API and republishes its state.
//
// The reconciled codec state is pushed to MQTT (retained overlay, state,
// health), written to InfluxDB, and served over HTTP and WebSocket for
// on-air overlays and operator dashboards. Control commands arrive on MQTT
// or the REST API and share one execution path.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM so serve can shut down gracefully
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path.
// The --config flag wins, then CODECBRIDGE_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("CODECBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
