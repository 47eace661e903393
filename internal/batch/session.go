// SPDX-License-Identifier: MIT
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"bpmtag/internal/analysis"
	"bpmtag/internal/audio"
	"bpmtag/internal/log"
)

// TrackRecord is the analysis outcome of one file, keyed by its name.
type TrackRecord struct {
	Filename string
	BPM      int
	Key      analysis.PitchClass
}

// TagWriter stores BPM and key in the tags of one file.
type TagWriter interface {
	Write(path string, bpm int, key string) error
}

// Options configure a Session.
type Options struct {
	BackupDir       string // Name of the copy created in the output directory.
	ContinueOnError bool   // Skip undecodable files instead of stopping the analysis.
}

// DefaultOptions back up into "updated" and stop on the first decode error.
func DefaultOptions() Options {
	return Options{BackupDir: "updated"}
}

// Session holds the records of one interactive run. Records survive between
// an analysis and a later write and are never persisted.
type Session struct {
	analyzer analysis.FileAnalyzer
	writer   TagWriter
	opts     Options

	busy    atomic.Bool
	mu      sync.Mutex
	records map[string]TrackRecord
}

// NewSession returns a Session with no records.
func NewSession(analyzer analysis.FileAnalyzer, writer TagWriter, opts Options) *Session {
	if opts.BackupDir == "" {
		opts.BackupDir = DefaultOptions().BackupDir
	}
	return &Session{
		analyzer: analyzer,
		writer:   writer,
		opts:     opts,
		records:  make(map[string]TrackRecord),
	}
}

// RunAnalysis analyzes every matching file of inputDir in name order and
// stores a record per file, replacing earlier records of the same name. A
// decode failure stops the batch; records stored before it are kept. The
// returned map holds the records of this run.
func (s *Session) RunAnalysis(ctx context.Context, inputDir string, obs Observer) (map[string]TrackRecord, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)
	if obs == nil {
		obs = NopObserver{}
	}

	files, err := MatchingFiles(inputDir)
	if err != nil {
		return nil, err
	}

	run := make(map[string]TrackRecord, len(files))
	obs.Begin(PhaseAnalyze, len(files))
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			obs.End(PhaseAnalyze, err)
			return run, err
		}

		path := filepath.Join(inputDir, name)
		res, err := s.analyzer.AnalyzeFile(path)
		if err != nil {
			if s.opts.ContinueOnError && errors.Is(err, audio.ErrDecode) {
				log.Warnf("Batch: skipping %s: %v", name, err)
				continue
			}
			err = fmt.Errorf("analyze %s: %w", name, err)
			obs.End(PhaseAnalyze, err)
			return run, err
		}

		rec := TrackRecord{Filename: name, BPM: res.BPM, Key: res.Key}
		run[name] = rec
		s.mu.Lock()
		s.records[name] = rec
		s.mu.Unlock()

		obs.Step(Progress{Phase: PhaseAnalyze, Done: i + 1, Total: len(files), File: name})
	}
	obs.End(PhaseAnalyze, nil)
	return run, nil
}

// WriteTags backs inputDir up and tags the copies with the session records.
func (s *Session) WriteTags(ctx context.Context, inputDir, outputDir string, obs Observer) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	return WriteTags(ctx, inputDir, outputDir, s.Records(), s.writer, s.opts, obs)
}

// Records returns a copy of all records of the session.
func (s *Session) Records() map[string]TrackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.records)
}

// WriteTags copies inputDir to outputDir/<BackupDir> and writes the BPM and
// key of every matching file into its copy. inputDir is never modified. Files
// that vanish from inputDir are logged and skipped; a file without a record
// stops the batch with a *MissingRecordError.
func WriteTags(ctx context.Context, inputDir, outputDir string, records map[string]TrackRecord, writer TagWriter, opts Options, obs Observer) error {
	if obs == nil {
		obs = NopObserver{}
	}
	if opts.BackupDir == "" {
		opts.BackupDir = DefaultOptions().BackupDir
	}
	if err := checkDirectory(RoleOutput, outputDir); err != nil {
		return err
	}
	if err := checkDirectory(RoleInput, inputDir); err != nil {
		return err
	}

	backupDir := filepath.Join(outputDir, opts.BackupDir)
	if err := CopyTree(inputDir, backupDir); err != nil {
		return err
	}
	log.Infof("Batch: copied %s to %s", inputDir, backupDir)

	files, err := MatchingFiles(inputDir)
	if err != nil {
		return err
	}

	obs.Begin(PhaseWrite, len(files))
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			obs.End(PhaseWrite, err)
			return err
		}

		inputPath := filepath.Join(inputDir, name)
		if _, err := os.Stat(inputPath); errors.Is(err, fs.ErrNotExist) {
			log.Warnf("File not found: %s", inputPath)
			continue
		}

		rec, ok := records[name]
		if !ok {
			err := &MissingRecordError{Filename: name}
			obs.End(PhaseWrite, err)
			return err
		}

		outputPath := filepath.Join(backupDir, name)
		if err := writer.Write(outputPath, rec.BPM, rec.Key.String()); err != nil {
			err = fmt.Errorf("write tags of %s: %w", outputPath, err)
			obs.End(PhaseWrite, err)
			return err
		}
		obs.Step(Progress{Phase: PhaseWrite, Done: i + 1, Total: len(files), File: name})
	}
	obs.End(PhaseWrite, nil)
	return nil
}
