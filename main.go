// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bpmtag/cmd"
	"bpmtag/internal/config"
	"bpmtag/internal/log"
	"bpmtag/pkg/build"
)

// main is the entry point of bpmtag. The program flow has three phases:
//
// 1. Startup:
//   - Initialize build information
//   - Parse command line arguments
//   - Load the config file, apply environment and flag overrides
//   - Configure logging
//
// 2. Run:
//   - Execute the selected command (interactive shell by default)
//
// 3. Shutdown:
//   - SIGINT/SIGTERM cancel the running batch between files
//   - Progress transports are closed by the command
func main() {
	os.Exit(run())
}

func run() int {
	// ==================== STARTUP PHASE ====================

	// Development builds carry no ldflags; the defaults are fine.
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v", err)
	}

	options, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", build.GetBuildFlags().Name)
		return 2
	}
	if options == nil {
		return 0
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := options.Apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}
	if err := log.Configure(cfg.EffectiveLogLevel()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// ==================== RUN PHASE ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cmd.NewApp(cfg, options, os.Stdout, os.Stderr)
	if err := app.Run(ctx); err != nil {
		log.Errorf("%v", err)
		return 1
	}

	// ==================== SHUTDOWN PHASE ====================

	if ctx.Err() != nil {
		log.Warnf("Interrupted")
		return 130
	}
	return 0
}
