// SPDX-License-Identifier: MIT
package synth

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// WriteWAV writes mono samples in [-1, 1] to a 16-bit PCM WAV file,
// duplicating them across channels.
func WriteWAV(path string, samples []float64, sampleRate, channels int) error {
	if channels < 1 {
		return fmt.Errorf("channels must be positive, got %d", channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	encoder := wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)

	const maxInt = 1<<(bitDepth-1) - 1
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: bitDepth,
		Data:           make([]int, len(samples)*channels),
	}
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		v := int(math.Round(s * maxInt))
		for c := range channels {
			buf.Data[i*channels+c] = v
		}
	}

	if err := encoder.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return file.Close()
}
