// SPDX-License-Identifier: MIT
package batch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"bpmtag/internal/log"
)

// CopyTree copies the directory tree at src to dst, which must not exist.
// Symbolic links are followed: the copy holds the files and directories they
// point to. Permission bits are kept. When the copy fails, dst is removed so
// that no partial backup stays behind.
func CopyTree(src, dst string) error {
	if err := checkDirectory(RoleInput, src); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s: %w", dst, ErrDestinationExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", dst, err)
	}
	if within(dst, src) {
		return fmt.Errorf("cannot copy %s into itself at %s", src, dst)
	}

	if err := copyDir(src, dst); err != nil {
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			log.Warnf("Batch: failed to remove partial copy %s: %v", dst, rmErr)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// copyDir creates dst and copies the contents of src into it.
func copyDir(src, dst string) error {
	// WalkDir does not descend into a symlinked root.
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if err := os.Mkdir(dst, info.Mode().Perm()|0o700); err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		switch {
		case info.IsDir() && d.Type()&fs.ModeSymlink != 0:
			return copyDir(path, target)
		case info.IsDir():
			return os.Mkdir(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return fmt.Errorf("%s: cannot copy %s", path, info.Mode().Type())
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
