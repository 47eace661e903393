// SPDX-License-Identifier: MIT

/*
Package audio decodes audio files into mono sample buffers for analysis.

The pipeline is built from beep streamers:
- a format decoder picked by file extension (MP3 or WAV)
- beep.Take to keep only the leading part of the track
- beep.Resample to bring the stream to the analysis rate
- a mono mix-down into a go-audio FloatBuffer
*/
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// ErrDecode is returned when a file cannot be decoded or holds no samples.
var ErrDecode = errors.New("cannot decode audio")

const streamChunk = 1024

// Options control how a file is decoded.
type Options struct {
	SampleRate      int           // Output sample rate (Hz).
	Duration        time.Duration // Decode at most this much audio; 0 decodes everything.
	ResampleQuality int           // beep resampler quality, 1 to 64.
}

// DefaultOptions matches the analysis defaults: 22050 Hz, first 10 seconds.
func DefaultOptions() Options {
	return Options{
		SampleRate:      22050,
		Duration:        10 * time.Second,
		ResampleQuality: 4,
	}
}

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
	".wav": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
}

// Supported reports whether Load has a decoder for the file's extension.
func Supported(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load decodes the file at path into a mono buffer at opts.SampleRate.
// Every failure wraps ErrDecode.
func Load(path string, opts Options) (*goaudio.FloatBuffer, error) {
	decode, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unsupported file type", ErrDecode, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer f.Close()

	streamer, format, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	defer streamer.Close()

	buf, err := Decode(streamer, format, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return buf, nil
}

// Decode drains s, applying the duration limit and resampling from opts,
// and mixes the two beep channels down to mono.
func Decode(s beep.Streamer, format beep.Format, opts Options) (*goaudio.FloatBuffer, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", opts.SampleRate)
	}
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("stream has invalid sample rate %d", format.SampleRate)
	}

	var pipeline beep.Streamer = s
	if opts.Duration > 0 {
		pipeline = beep.Take(format.SampleRate.N(opts.Duration), pipeline)
	}
	target := beep.SampleRate(opts.SampleRate)
	if format.SampleRate != target {
		quality := opts.ResampleQuality
		if quality < 1 {
			quality = 1
		}
		pipeline = beep.Resample(quality, format.SampleRate, target, pipeline)
	}

	var data []float64
	if opts.Duration > 0 {
		data = make([]float64, 0, target.N(opts.Duration))
	}
	chunk := make([][2]float64, streamChunk)
	for {
		n, ok := pipeline.Stream(chunk)
		for _, frame := range chunk[:n] {
			data = append(data, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := pipeline.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("no audio samples")
	}

	return &goaudio.FloatBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  opts.SampleRate,
		},
		Data: data,
	}, nil
}

// Duration returns the playing time of a decoded buffer.
func Duration(buf *goaudio.FloatBuffer) time.Duration {
	if buf == nil || buf.Format == nil || buf.Format.SampleRate == 0 {
		return 0
	}
	frames := buf.NumFrames()
	return time.Duration(frames) * time.Second / time.Duration(buf.Format.SampleRate)
}
