// SPDX-License-Identifier: MIT

// Package analysis estimates the tempo and key of a track.
//
// Tempo comes from a mel spectral-flux onset envelope and an autocorrelation
// tempogram. Key comes from the tonal centroid (tonnetz) of the harmonic part
// of the spectrum, reduced to a single pitch class.
package analysis

import (
	"fmt"
	"math"

	"bpmtag/internal/audio"
	"bpmtag/internal/config"
	"bpmtag/internal/fft"
	"bpmtag/internal/log"
)

// Result is the outcome of analyzing one track.
type Result struct {
	Tempo      float64              // Unrounded tempo estimate (BPM).
	BPM        int                  // Tempo rounded half to even.
	Key        PitchClass           // Key name derived from the tonnetz.
	Tonnetz    [TonnetzDims]float64 // Tonnetz summed over frames.
	SampleRate int                  // Rate the samples were analyzed at.
	Samples    int                  // Number of mono samples analyzed.
}

// Analyzer runs the full analysis pipeline. It holds only read-only tables
// and is safe for concurrent use.
type Analyzer struct {
	cfg    config.AnalysisConfig
	window fft.WindowFunc
	mel    *MelFilterbank
	tempo  *TempoEstimator
	chroma *ChromaMapper
}

// NewAnalyzer precomputes the filterbanks and tempo prior for cfg.
func NewAnalyzer(cfg config.AnalysisConfig) (*Analyzer, error) {
	window, err := fft.ParseWindowFunc(cfg.FFTWindow)
	if err != nil {
		return nil, err
	}
	if cfg.HopLength <= 0 {
		return nil, fmt.Errorf("hop length must be positive, got %d", cfg.HopLength)
	}
	sr := float64(cfg.SampleRate)

	tempo, err := NewTempoEstimator(sr, cfg.HopLength, cfg.TempogramFrames(), cfg.StartBPM, cfg.StdBPM, cfg.MaxBPM)
	if err != nil {
		return nil, err
	}

	log.Debugf("Analysis: initializing analyzer (SampleRate: %d Hz, FFT: %d, Hop: %d, Window: %v, Mels: %d)",
		cfg.SampleRate, cfg.FFTSize, cfg.HopLength, window, cfg.MelBands)

	return &Analyzer{
		cfg:    cfg,
		window: window,
		mel:    NewMelFilterbank(sr, cfg.FFTSize, cfg.MelBands),
		tempo:  tempo,
		chroma: NewChromaMapper(sr, cfg.FFTSize),
	}, nil
}

// AudioOptions returns the decoding options matching the analyzer.
func (a *Analyzer) AudioOptions() audio.Options {
	return audio.Options{
		SampleRate:      a.cfg.SampleRate,
		Duration:        a.cfg.Duration,
		ResampleQuality: a.cfg.ResampleQuality,
	}
}

// AnalyzeFile decodes the file and analyzes it. Decoding failures wrap
// audio.ErrDecode.
func (a *Analyzer) AnalyzeFile(path string) (Result, error) {
	buf, err := audio.Load(path, a.AudioOptions())
	if err != nil {
		return Result{}, err
	}
	log.Debugf("Analysis: decoded %s of %s", audio.Duration(buf), path)
	res, err := a.AnalyzeSamples(buf.Data)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("Analysis: %s: tempo %.2f BPM -> %d, key %s, tonnetz %.3f", path, res.Tempo, res.BPM, res.Key, res.Tonnetz)
	return res, nil
}

// AnalyzeSamples analyzes mono samples at the configured sample rate.
func (a *Analyzer) AnalyzeSamples(samples []float64) (Result, error) {
	if len(samples) == 0 {
		return Result{}, fmt.Errorf("%w: no samples", audio.ErrDecode)
	}

	proc, err := fft.NewProcessor(a.cfg.FFTSize, float64(a.cfg.SampleRate), a.window)
	if err != nil {
		return Result{}, err
	}
	spec, err := proc.STFT(samples, a.cfg.HopLength)
	if err != nil {
		return Result{}, err
	}

	onset := OnsetStrengthFromSpectrogram(spec, a.mel)
	tempo := a.tempo.Estimate(onset)
	if math.IsInf(tempo, 0) || math.IsNaN(tempo) {
		return Result{}, fmt.Errorf("no tempo below %.0f BPM", a.cfg.MaxBPM)
	}

	harmonic, _, err := HPSS(spec.Frames, a.cfg.HPSSKernel, a.cfg.HPSSPower)
	if err != nil {
		return Result{}, err
	}
	tonnetz := Tonnetz(a.chroma.Chromagram(harmonic))

	return Result{
		Tempo:      tempo,
		BPM:        RoundBPM(tempo),
		Key:        KeyFromTonnetz(tonnetz),
		Tonnetz:    SumTonnetz(tonnetz),
		SampleRate: a.cfg.SampleRate,
		Samples:    len(samples),
	}, nil
}
