// SPDX-License-Identifier: MIT
package batch

import (
	"context"
	"errors"
)

// Status lines shown by the shells.
const (
	MsgAnalysisCompleted = "Analysis completed."
	MsgWriteCompleted    = "Write completed."
	MsgInvalidInput      = "Invalid input directory."
	MsgInvalidOutput     = "Invalid output directory."
)

// Status is the outcome of one user action.
type Status struct {
	Message string
	Err     error
	Records map[string]TrackRecord // Records produced by an analysis.
}

// OK reports whether the action succeeded.
func (st Status) OK() bool { return st.Err == nil }

// Analyze runs the analysis phase and turns the outcome into a Status.
func (s *Session) Analyze(ctx context.Context, inputDir string, obs Observer) Status {
	records, err := s.RunAnalysis(ctx, inputDir, obs)
	if err != nil {
		return Status{Message: statusMessage(err), Err: err, Records: records}
	}
	return Status{Message: MsgAnalysisCompleted, Records: records}
}

// Write runs the write phase and turns the outcome into a Status.
func (s *Session) Write(ctx context.Context, inputDir, outputDir string, obs Observer) Status {
	if err := s.WriteTags(ctx, inputDir, outputDir, obs); err != nil {
		return Status{Message: statusMessage(err), Err: err}
	}
	return Status{Message: MsgWriteCompleted}
}

func statusMessage(err error) string {
	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		if dirErr.Role == RoleOutput {
			return MsgInvalidOutput
		}
		return MsgInvalidInput
	}
	return err.Error()
}
