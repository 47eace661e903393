// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bpmtag/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug    bool           `yaml:"debug"`     // Enable debug logging.
	LogLevel string         `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Analysis AnalysisConfig `yaml:"analysis"`  // Tempo and key estimation settings.
	Batch    BatchConfig    `yaml:"batch"`     // Directory batch settings.
	Tags     TagsConfig     `yaml:"tags"`      // ID3 tag writing settings.
	Progress ProgressConfig `yaml:"progress"`  // Progress reporting settings.
}

// AnalysisConfig holds the signal-processing parameters of the track analyzer.
type AnalysisConfig struct {
	SampleRate      int           `yaml:"sample_rate"`      // Rate the decoded audio is resampled to (Hz).
	Duration        time.Duration `yaml:"duration"`         // Only this much audio is decoded from the start of a track (0 decodes everything).
	FFTSize         int           `yaml:"fft_size"`         // STFT frame length in samples (power of 2).
	HopLength       int           `yaml:"hop_length"`       // STFT hop in samples.
	FFTWindow       string        `yaml:"fft_window"`       // Window function name ("Hann", "Hamming", ...).
	MelBands        int           `yaml:"n_mels"`           // Mel bands of the onset-strength spectrogram.
	HPSSKernel      int           `yaml:"hpss_kernel"`      // Median filter length for harmonic/percussive separation.
	HPSSPower       float64       `yaml:"hpss_power"`       // Soft mask exponent.
	StartBPM        float64       `yaml:"start_bpm"`        // Center of the tempo prior.
	StdBPM          float64       `yaml:"std_bpm"`          // Tempo prior deviation in octaves.
	MaxBPM          float64       `yaml:"max_bpm"`          // Tempos above this are never chosen.
	ACSize          time.Duration `yaml:"ac_size"`          // Autocorrelation window of the tempogram.
	ResampleQuality int           `yaml:"resample_quality"` // beep resampler quality (1-64).
}

// BatchConfig holds settings of the analyze and write phases.
type BatchConfig struct {
	BackupDir       string `yaml:"backup_dir"`        // Name of the copy created under the output directory.
	ContinueOnError bool   `yaml:"continue_on_error"` // Skip undecodable tracks instead of aborting the analysis.
}

// TagsConfig holds ID3v2 settings.
type TagsConfig struct {
	Version  int    `yaml:"version"`  // ID3v2 major version, 3 or 4.
	Encoding string `yaml:"encoding"` // Text frame encoding: "utf16", "utf16be", "utf8" or "latin1".
}

// ProgressConfig holds progress reporting settings.
type ProgressConfig struct {
	Bars             bool   `yaml:"bars"`               // Draw terminal progress bars in CLI mode.
	WebSocketAddr    string `yaml:"websocket_addr"`     // Listen address for progress WebSocket clients (empty disables).
	UDPTargetAddress string `yaml:"udp_target_address"` // Target of progress datagrams (empty disables).
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Analysis: AnalysisConfig{
			SampleRate:      22050,
			Duration:        10 * time.Second,
			FFTSize:         2048,
			HopLength:       512,
			FFTWindow:       "Hann",
			MelBands:        128,
			HPSSKernel:      31,
			HPSSPower:       2.0,
			StartBPM:        120,
			StdBPM:          1.0,
			MaxBPM:          320,
			ACSize:          8 * time.Second,
			ResampleQuality: 4,
		},
		Batch: BatchConfig{
			BackupDir:       "updated",
			ContinueOnError: false,
		},
		Tags: TagsConfig{
			Version:  4,
			Encoding: "utf16",
		},
		Progress: ProgressConfig{
			Bars: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"bpmtag.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Environment overrides apply after the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values the analyzer or tag writer
// cannot work with.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.SampleRate < 1000 {
		return fmt.Errorf("analysis.sample_rate must be at least 1000, got %d", a.SampleRate)
	}
	if a.Duration < 0 {
		return fmt.Errorf("analysis.duration must not be negative, got %s", a.Duration)
	}
	if !bitint.IsPowerOfTwo(a.FFTSize) {
		return fmt.Errorf("analysis.fft_size must be a power of 2, got %d", a.FFTSize)
	}
	if a.HopLength <= 0 || a.HopLength > a.FFTSize {
		return fmt.Errorf("analysis.hop_length must be in (0, fft_size], got %d", a.HopLength)
	}
	if a.MelBands <= 0 {
		return fmt.Errorf("analysis.n_mels must be positive, got %d", a.MelBands)
	}
	if a.HPSSKernel <= 0 {
		return fmt.Errorf("analysis.hpss_kernel must be positive, got %d", a.HPSSKernel)
	}
	if a.StartBPM <= 0 || a.StdBPM <= 0 || a.MaxBPM <= 0 {
		return fmt.Errorf("analysis tempo prior values must be positive")
	}
	if a.ACSize <= 0 {
		return fmt.Errorf("analysis.ac_size must be positive, got %s", a.ACSize)
	}
	if a.ResampleQuality < 1 || a.ResampleQuality > 64 {
		return fmt.Errorf("analysis.resample_quality must be in [1, 64], got %d", a.ResampleQuality)
	}

	if c.Batch.BackupDir == "" || strings.ContainsAny(c.Batch.BackupDir, `/\`) {
		return fmt.Errorf("batch.backup_dir must be a plain directory name, got %q", c.Batch.BackupDir)
	}

	if c.Tags.Version != 3 && c.Tags.Version != 4 {
		return fmt.Errorf("tags.version must be 3 or 4, got %d", c.Tags.Version)
	}
	switch strings.ToLower(c.Tags.Encoding) {
	case "utf16", "latin1":
	case "utf8", "utf16be":
		if c.Tags.Version != 4 {
			return fmt.Errorf("tags.encoding %q requires tags.version 4", c.Tags.Encoding)
		}
	default:
		return fmt.Errorf("unknown tags.encoding %q", c.Tags.Encoding)
	}

	if c.Progress.UDPTargetAddress != "" && !strings.Contains(c.Progress.UDPTargetAddress, ":") {
		return fmt.Errorf("progress.udp_target_address %q appears invalid (missing port?)", c.Progress.UDPTargetAddress)
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		cfg.LogLevel = val
	}
	// ENV_ANALYSIS_DURATION
	if val, ok := os.LookupEnv("ENV_ANALYSIS_DURATION"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Analysis.Duration = dur
		}
	}
	// ENV_TAGS_ENCODING
	if val, ok := os.LookupEnv("ENV_TAGS_ENCODING"); ok && val != "" {
		cfg.Tags.Encoding = val
	}
	// ENV_PROGRESS_WS_ADDR
	if val, ok := os.LookupEnv("ENV_PROGRESS_WS_ADDR"); ok {
		cfg.Progress.WebSocketAddr = val
	}
	// ENV_PROGRESS_UDP_ADDR
	if val, ok := os.LookupEnv("ENV_PROGRESS_UDP_ADDR"); ok {
		cfg.Progress.UDPTargetAddress = val
	}
}
