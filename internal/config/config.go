// SPDX-License-Identifier: MIT
package config

import "time"

// Commands selected on the command line.
const (
	CommandShell   = "shell"   // Interactive Analyze/Write screen (default).
	CommandAnalyze = "analyze" // Analyze a directory and print the records.
	CommandTag     = "tag"     // Analyze a directory, then back it up and write tags.
	CommandTrack   = "track"   // Analyze a single file.
	CommandInspect = "inspect" // Print the BPM and key tags of a single file.
)

// Options holds the values parsed from the command line. Flags that mirror a
// config file setting are pointers so that an unset flag leaves the file value
// alone.
type Options struct {
	Command    string
	ConfigPath string
	InputDir   string
	OutputDir  string
	File       string

	LogLevel        string
	Verbose         bool
	Quiet           bool
	ContinueOnError *bool
	Duration        *time.Duration
	WebSocketAddr   *string
	UDPAddr         *string
}

// NewOptions returns Options that start the interactive shell.
func NewOptions() *Options {
	return &Options{
		Command: CommandShell,
	}
}

// Apply overlays the command line options on the loaded configuration and
// validates the result.
func (o *Options) Apply(cfg *Config) error {
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Verbose {
		cfg.Debug = true
	}
	if o.Quiet {
		cfg.Progress.Bars = false
	}
	if o.ContinueOnError != nil {
		cfg.Batch.ContinueOnError = *o.ContinueOnError
	}
	if o.Duration != nil {
		cfg.Analysis.Duration = *o.Duration
	}
	if o.WebSocketAddr != nil {
		cfg.Progress.WebSocketAddr = *o.WebSocketAddr
	}
	if o.UDPAddr != nil {
		cfg.Progress.UDPTargetAddress = *o.UDPAddr
	}
	return cfg.Validate()
}
