// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"time"

	"bpmtag/internal/config"
	"bpmtag/pkg/build"

	"github.com/spf13/cobra"
)

// ParseArgs parses os.Args. It returns nil options when no command should
// run, e.g. after --help or --version.
func ParseArgs() (*config.Options, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (*config.Options, error) {
	buildInfo := build.GetBuildFlags()
	options := config.NewOptions()
	selected := false

	var (
		continueOnError bool
		duration        time.Duration
		wsAddr          string
		udpAddr         string
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [input-dir] [output-dir]",
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.MaximumNArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandShell
			if len(args) > 0 {
				options.InputDir = args[0]
			}
			if len(args) > 1 {
				options.OutputDir = args[1]
			}
			selected = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Analyze command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "analyze <input-dir>",
		Short: "Estimate BPM and key of every .mp3 file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandAnalyze
			options.InputDir = args[0]
			selected = true
			return nil
		},
	})

	// Tag command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tag <input-dir> <output-dir>",
		Short: "Analyze a directory, copy it into the output directory and tag the copies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandTag
			options.InputDir = args[0]
			options.OutputDir = args[1]
			selected = true
			return nil
		},
	})

	// Track command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "track <file>",
		Short: "Estimate BPM and key of a single audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandTrack
			options.File = args[0]
			selected = true
			return nil
		},
	})

	// Inspect command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the BPM and key tags of a single .mp3 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandInspect
			options.File = args[0]
			selected = true
			return nil
		},
	})

	flags := rootCmd.PersistentFlags()

	// Configuration
	flags.StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to a YAML config file. Defaults to config.yaml or bpmtag.yaml in the working directory")
	flags.DurationVarP(&duration, "duration", "d", 0,
		"Decode only this much audio from the start of each track (0 decodes everything)")
	flags.BoolVar(&continueOnError, "continue-on-error", false,
		"Skip undecodable tracks instead of stopping the analysis")

	// Progress reporting
	flags.StringVar(&wsAddr, "ws-addr", "",
		"Serve progress events to WebSocket clients on this address, e.g. localhost:8080")
	flags.StringVar(&udpAddr, "udp-addr", "",
		"Send progress snapshots as UDP datagrams to this address, e.g. 127.0.0.1:9999")
	flags.BoolVarP(&options.Quiet, "quiet", "q", false,
		"Do not draw progress bars")

	// Debug Configuration
	flags.StringVar(&options.LogLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if !selected {
		return nil, nil
	}

	// Only flags given on the command line override the config file.
	if flags.Changed("continue-on-error") {
		options.ContinueOnError = &continueOnError
	}
	if flags.Changed("duration") {
		options.Duration = &duration
	}
	if flags.Changed("ws-addr") {
		options.WebSocketAddr = &wsAddr
	}
	if flags.Changed("udp-addr") {
		options.UDPAddr = &udpAddr
	}

	return options, nil
}
