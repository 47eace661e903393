// SPDX-License-Identifier: MIT
package tagging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
)

// fakeAudio stands in for MPEG frames; the tag code never decodes it.
var fakeAudio = bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x42}, 512)

func writeFakeMP3(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, fakeAudio, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestWriteReadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		bpm  int
		key  string
	}{
		{"default utf16 v4", DefaultOptions(), 128, "F#"},
		{"utf8 v4", Options{Version: 4, Encoding: "utf8"}, 92, "D#"},
		{"utf16be v4", Options{Version: 4, Encoding: "utf16be"}, 174, "G"},
		{"latin1 v3", Options{Version: 3, Encoding: "latin1"}, 60, "A#"},
		{"utf16 v3", Options{Version: 3, Encoding: "utf16"}, 140, "E"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFakeMP3(t, "track.mp3")
			w, err := NewWriter(tt.opts)
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			if err := w.Write(path, tt.bpm, tt.key); err != nil {
				t.Fatalf("Write: %v", err)
			}

			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.BPM != tt.bpm || got.Key != tt.key {
				t.Errorf("read back BPM %d (%q) key %q, want %d %q", got.BPM, got.RawBPM, got.Key, tt.bpm, tt.key)
			}
		})
	}
}

func TestWritePreservesAudio(t *testing.T) {
	path := writeFakeMP3(t, "track.mp3")
	w, err := NewWriter(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(path, 120, "G#"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("ID3")) {
		t.Fatal("file does not start with an ID3v2 header")
	}
	if !bytes.HasSuffix(data, fakeAudio) {
		t.Error("audio payload after the tag changed")
	}
}

func TestWriteReplacesFrames(t *testing.T) {
	path := writeFakeMP3(t, "track.mp3")
	w, err := NewWriter(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(path, 100, "C"); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(path, 101, "D#"); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.BPM != 101 || got.Key != "D#" {
		t.Errorf("got %+v, want the second write", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(data, []byte(FrameBPM)); n != 1 {
		t.Errorf("found %d TBPM frames, want 1", n)
	}
}

func TestNewWriterValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"version 2", Options{Version: 2, Encoding: "utf16"}},
		{"unknown encoding", Options{Version: 4, Encoding: "ebcdic"}},
		{"utf8 on v3", Options{Version: 3, Encoding: "utf8"}},
		{"utf16be on v3", Options{Version: 3, Encoding: "utf16be"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWriter(tt.opts); err == nil {
				t.Errorf("NewWriter(%+v) succeeded, want error", tt.opts)
			}
		})
	}
}

func TestWriteMissingFile(t *testing.T) {
	w, err := NewWriter(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(filepath.Join(t.TempDir(), "missing.mp3"), 1, "C"); err == nil {
		t.Error("expected error for a missing file")
	}
}

// v22Frame encodes an ID3v2.2 text frame in ISO-8859-1.
func v22Frame(id, text string) []byte {
	body := append([]byte{0}, text...)
	n := len(body)
	frame := append([]byte(id), byte(n>>16), byte(n>>8), byte(n))
	return append(frame, body...)
}

func writeV22MP3(t *testing.T, frames ...[]byte) string {
	t.Helper()
	body := bytes.Join(frames, nil)
	n := len(body)
	header := []byte{'I', 'D', '3', 2, 0, 0, byte(n >> 21 & 0x7f), byte(n >> 14 & 0x7f), byte(n >> 7 & 0x7f), byte(n & 0x7f)}

	data := append(header, body...)
	data = append(data, fakeAudio...)
	path := filepath.Join(t.TempDir(), "old.mp3")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestWriteUpgradesV22Tag(t *testing.T) {
	path := writeV22MP3(t,
		v22Frame("TT2", "Old Song"),
		v22Frame("TP1", "Some Artist"),
		v22Frame("TBP", "99"),
	)
	w, err := NewWriter(DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(path, 128, "F"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.BPM != 128 || got.Key != "F" || got.Format != "ID3v2.4" {
		t.Errorf("read back %+v, want BPM 128 key F in ID3v2.4", got)
	}

	tags, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("id3v2.Open: %v", err)
	}
	defer tags.Close()
	if tags.Title() != "Old Song" || tags.Artist() != "Some Artist" {
		t.Errorf("title %q artist %q, want the ID3v2.2 values", tags.Title(), tags.Artist())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, fakeAudio) {
		t.Error("audio payload changed")
	}
	if n := bytes.Count(data, []byte("ID3")); n != 1 {
		t.Errorf("found %d ID3 headers, want 1", n)
	}
}

func TestReadWithoutTags(t *testing.T) {
	path := writeFakeMP3(t, "plain.mp3")
	if _, err := Read(path); !errors.Is(err, ErrNoTags) {
		t.Errorf("Read() error = %v, want ErrNoTags", err)
	}
}
