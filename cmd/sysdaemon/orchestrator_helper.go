package main

import (
	"context"
	"fmt"
	"os"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/orchestrator"
)

// buildOrchestrator loads configuration from the global --config-dir
// flag and constructs every wired component. Callers are responsible
// for calling Shutdown.
func buildOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	cfg, err := config.Initialize(ctx, configDir())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	o, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("wire orchestrator: %w", err)
	}
	return o, nil
}

// dieUsage prints msg and exits with the usage-error exit code.
func dieUsage(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(exitUsage)
}

// dieRuntime prints msg and exits with the runtime-error exit code.
func dieRuntime(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(exitRuntime)
}
