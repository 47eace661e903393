// SPDX-License-Identifier: MIT

// Package tagging writes and reads the tempo (TBPM) and key (TKEY) ID3v2
// text frames of MP3 files.
package tagging

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bpmtag/internal/log"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// Frame IDs written by the Writer.
const (
	FrameBPM = "TBPM"
	FrameKey = "TKEY"
)

// Options select the ID3v2 version and text encoding of written frames.
type Options struct {
	Version  int    // 3 or 4.
	Encoding string // "utf16", "utf16be", "utf8" or "latin1".
}

// DefaultOptions writes ID3v2.4 frames in UTF-16.
func DefaultOptions() Options {
	return Options{Version: 4, Encoding: "utf16"}
}

// ParseEncoding maps an encoding name to its id3v2 encoding.
func ParseEncoding(name string) (id3v2.Encoding, error) {
	switch strings.ToLower(name) {
	case "utf16", "utf-16":
		return id3v2.EncodingUTF16, nil
	case "utf16be", "utf-16be":
		return id3v2.EncodingUTF16BE, nil
	case "utf8", "utf-8":
		return id3v2.EncodingUTF8, nil
	case "latin1", "iso-8859-1":
		return id3v2.EncodingISO, nil
	default:
		return id3v2.Encoding{}, fmt.Errorf("unknown tag encoding %q", name)
	}
}

// Writer sets TBPM and TKEY on existing files.
type Writer struct {
	version  byte
	encoding id3v2.Encoding
}

// NewWriter validates opts and returns a Writer.
func NewWriter(opts Options) (*Writer, error) {
	if opts.Version != 3 && opts.Version != 4 {
		return nil, fmt.Errorf("unsupported ID3v2 version %d", opts.Version)
	}
	enc, err := ParseEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.Version == 3 && enc.Key != id3v2.EncodingUTF16.Key && enc.Key != id3v2.EncodingISO.Key {
		return nil, fmt.Errorf("encoding %q needs ID3v2.4", opts.Encoding)
	}
	return &Writer{version: byte(opts.Version), encoding: enc}, nil
}

// Write opens the tag of the file at path, or starts an empty one when the
// file has none, replaces the TBPM and TKEY frames and saves in place. The
// audio data after the tag is left untouched. ID3v2.2 tags are upgraded to
// the configured version, keeping their title, artist, album, year and genre.
func (w *Writer) Write(path string, bpm int, key string) error {
	t, err := w.open(path)
	if err != nil {
		return fmt.Errorf("open mp3: %w", err)
	}
	defer t.Close()

	t.AddTextFrame(FrameBPM, w.encoding, strconv.Itoa(bpm))
	t.AddTextFrame(FrameKey, w.encoding, key)

	if err := t.Save(); err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	return nil
}

// basicFields are the frames carried over from an ID3v2.2 tag.
type basicFields struct {
	title, artist, album, genre string
	year                        int
}

func (w *Writer) open(path string) (*id3v2.Tag, error) {
	var carried *basicFields
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if errors.Is(err, id3v2.ErrUnsupportedVersion) {
		if carried, err = stripV22(path); err == nil {
			t, err = id3v2.Open(path, id3v2.Options{Parse: true})
		}
	}
	if err != nil {
		return nil, err
	}

	t.SetVersion(w.version)
	t.SetDefaultEncoding(w.encoding)
	if carried != nil {
		if carried.title != "" {
			t.SetTitle(carried.title)
		}
		if carried.artist != "" {
			t.SetArtist(carried.artist)
		}
		if carried.album != "" {
			t.SetAlbum(carried.album)
		}
		if carried.genre != "" {
			t.SetGenre(carried.genre)
		}
		if carried.year > 0 {
			t.SetYear(strconv.Itoa(carried.year))
		}
	}
	return t, nil
}

// stripV22 removes a leading ID3v2.2 tag from the file at path and returns
// its basic text fields.
func stripV22(path string) (*basicFields, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 10 || string(data[:3]) != "ID3" || data[3] != 2 {
		return nil, id3v2.ErrUnsupportedVersion
	}
	// Tag size is synchsafe: four 7-bit bytes, excluding the 10-byte header.
	size := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
	end := 10 + size
	if end > len(data) {
		return nil, fmt.Errorf("truncated ID3v2.2 tag: %d bytes declared, %d present", size, len(data)-10)
	}

	fields := &basicFields{}
	if meta, err := tag.ReadFrom(bytes.NewReader(data[:end])); err == nil {
		fields.title = meta.Title()
		fields.artist = meta.Artist()
		fields.album = meta.Album()
		fields.genre = meta.Genre()
		fields.year = meta.Year()
	} else {
		log.Warnf("Tagging: %s: dropping unreadable ID3v2.2 frames: %v", path, err)
	}

	if err := os.WriteFile(path, data[end:], info.Mode().Perm()); err != nil {
		return nil, err
	}
	log.Debugf("Tagging: %s: upgrading ID3v2.2 tag", path)
	return fields, nil
}
