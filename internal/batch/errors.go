// SPDX-License-Identifier: MIT
package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDirectory matches every *DirectoryError.
	ErrInvalidDirectory = errors.New("invalid directory")
	// ErrDestinationExists is returned when the backup directory already exists.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrMissingRecord matches every *MissingRecordError.
	ErrMissingRecord = errors.New("no analysis record")
	// ErrBusy is returned when a batch is started while another one runs.
	ErrBusy = errors.New("another batch is running")
)

// Directory roles.
const (
	RoleInput  = "input"
	RoleOutput = "output"
)

// DirectoryError reports an input or output directory that does not exist
// or is not a directory.
type DirectoryError struct {
	Role string
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s directory %q: %v", e.Role, e.Path, e.Err)
	}
	return fmt.Sprintf("invalid %s directory %q", e.Role, e.Path)
}

func (e *DirectoryError) Is(target error) bool { return target == ErrInvalidDirectory }

func (e *DirectoryError) Unwrap() error { return e.Err }

// MissingRecordError reports a file selected for writing that was never
// analyzed in the session.
type MissingRecordError struct {
	Filename string
}

func (e *MissingRecordError) Error() string {
	return fmt.Sprintf("no analysis record for %s", e.Filename)
}

func (e *MissingRecordError) Is(target error) bool { return target == ErrMissingRecord }
