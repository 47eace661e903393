// SPDX-License-Identifier: MIT
package tagging

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// ErrNoTags is returned by Read for files without a recognizable tag.
var ErrNoTags = errors.New("no tags found")

// Tags holds the tempo and key frames read back from a file. BPM is zero
// when TBPM is missing or not an integer.
type Tags struct {
	BPM    int
	RawBPM string
	Key    string
	Format string // Tag format, e.g. "ID3v2.4".
}

// Read returns the TBPM and TKEY frames of the file at path.
func Read(path string) (Tags, error) {
	file, err := os.Open(path)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Tags{}, fmt.Errorf("%s: %w", path, ErrNoTags)
		}
		return Tags{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var tags Tags
	tags.Format = string(metadata.Format())
	if raw := metadata.Raw(); raw != nil {
		// ID3v2.2 uses three-letter frame IDs.
		tags.RawBPM = rawText(raw, FrameBPM, "TBP")
		tags.Key = rawText(raw, FrameKey, "TKE")
	}
	if n, err := strconv.Atoi(tags.RawBPM); err == nil {
		tags.BPM = n
	}
	return tags, nil
}

func rawText(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if val, exists := raw[key]; exists {
			if s, ok := val.(string); ok {
				return strings.TrimSpace(strings.Trim(s, "\x00"))
			}
		}
	}
	return ""
}
