// SPDX-License-Identifier: MIT

// Package batch runs tempo and key analysis over a directory of MP3 files
// and writes the results into tags of a backup copy.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TrackExtension selects the files of a batch. The match is case-sensitive.
const TrackExtension = ".mp3"

// checkDirectory returns a *DirectoryError unless path is an existing directory.
func checkDirectory(role, path string) error {
	if path == "" {
		return &DirectoryError{Role: role, Path: path}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &DirectoryError{Role: role, Path: path, Err: err}
	}
	if !info.IsDir() {
		return &DirectoryError{Role: role, Path: path, Err: errors.New("not a directory")}
	}
	return nil
}

// MatchingFiles lists the names of the regular entries of dir ending in
// ".mp3", sorted by name. Subdirectories are not searched.
func MatchingFiles(dir string) ([]string, error) {
	if err := checkDirectory(RoleInput, dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), TrackExtension) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	absPath, err1 := filepath.Abs(path)
	absDir, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
