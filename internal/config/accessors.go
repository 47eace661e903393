// SPDX-License-Identifier: MIT
package config

// EffectiveLogLevel returns the level to configure the logger with; debug
// mode wins over log_level.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// FramesPerSecond is the STFT frame rate of the analysis.
func (a AnalysisConfig) FramesPerSecond() float64 {
	return float64(a.SampleRate) / float64(a.HopLength)
}

// TempogramFrames is the autocorrelation window of the tempogram, in frames.
func (a AnalysisConfig) TempogramFrames() int {
	n := int(a.ACSize.Seconds() * a.FramesPerSecond())
	if n < 2 {
		n = 2
	}
	return n
}
