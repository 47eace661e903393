// SPDX-License-Identifier: MIT
package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"bpmtag/internal/analysis"
	"bpmtag/internal/audio"
	"bpmtag/internal/tagging"
)

var fakeAudio = bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x42}, 256)

// stubAnalyzer returns canned results keyed by file name.
type stubAnalyzer struct {
	mu      sync.Mutex
	results map[string]analysis.Result
	errs    map[string]error
	calls   []string
}

func (a *stubAnalyzer) AnalyzeFile(path string) (analysis.Result, error) {
	name := filepath.Base(path)
	a.mu.Lock()
	a.calls = append(a.calls, name)
	a.mu.Unlock()
	if err, ok := a.errs[name]; ok {
		return analysis.Result{}, err
	}
	if res, ok := a.results[name]; ok {
		return res, nil
	}
	return analysis.Result{BPM: 120, Key: analysis.E}, nil
}

// recordingObserver keeps every callback for later inspection.
type recordingObserver struct {
	begins []int
	steps  []Progress
	ends   []error
}

func (o *recordingObserver) Begin(_ Phase, total int) { o.begins = append(o.begins, total) }
func (o *recordingObserver) Step(p Progress)          { o.steps = append(o.steps, p) }
func (o *recordingObserver) End(_ Phase, err error)   { o.ends = append(o.ends, err) }

// stubWriter records writes, optionally running a hook first.
type stubWriter struct {
	written []string
	hook    func(path string)
	err     error
}

func (w *stubWriter) Write(path string, bpm int, key string) error {
	if w.hook != nil {
		w.hook(path)
	}
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, fmt.Sprintf("%s %d %s", filepath.Base(path), bpm, key))
	return nil
}

func makeLibrary(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), fakeAudio, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestMatchingFiles(t *testing.T) {
	dir := makeLibrary(t, "b.mp3", "a.mp3", "notes.txt", "c.MP3", "d.mp3.bak")
	if err := os.Mkdir(filepath.Join(dir, "folder.mp3"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := MatchingFiles(dir)
	if err != nil {
		t.Fatalf("MatchingFiles: %v", err)
	}
	want := []string{"a.mp3", "b.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchingFiles() = %v, want %v", got, want)
	}
}

func TestRunAnalysisOnlyMP3(t *testing.T) {
	dir := makeLibrary(t, "a.mp3", "b.mp3", "notes.txt")
	analyzer := &stubAnalyzer{results: map[string]analysis.Result{
		"a.mp3": {BPM: 128, Key: analysis.F},
		"b.mp3": {BPM: 90, Key: analysis.GSharp},
	}}
	obs := &recordingObserver{}
	s := NewSession(analyzer, &stubWriter{}, DefaultOptions())

	records, err := s.RunAnalysis(context.Background(), dir, obs)
	if err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}

	if !reflect.DeepEqual(analyzer.calls, []string{"a.mp3", "b.mp3"}) {
		t.Errorf("analyzed %v", analyzer.calls)
	}
	want := map[string]TrackRecord{
		"a.mp3": {Filename: "a.mp3", BPM: 128, Key: analysis.F},
		"b.mp3": {Filename: "b.mp3", BPM: 90, Key: analysis.GSharp},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %v, want %v", records, want)
	}
	if !reflect.DeepEqual(s.Records(), want) {
		t.Errorf("session records = %v, want %v", s.Records(), want)
	}

	if !reflect.DeepEqual(obs.begins, []int{2}) || len(obs.steps) != 2 || len(obs.ends) != 1 || obs.ends[0] != nil {
		t.Errorf("observer saw begins %v, %d steps, ends %v", obs.begins, len(obs.steps), obs.ends)
	}
	if last := obs.steps[1]; last.Done != 2 || last.Total != 2 || last.File != "b.mp3" || last.Phase != PhaseAnalyze {
		t.Errorf("last step = %+v", last)
	}
}

func TestRunAnalysisInvalidDirectory(t *testing.T) {
	file := filepath.Join(makeLibrary(t, "a.mp3"), "a.mp3")
	tests := []struct {
		name string
		dir  string
	}{
		{"missing", filepath.Join(t.TempDir(), "missing")},
		{"regular file", file},
		{"empty path", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &stubAnalyzer{}
			obs := &recordingObserver{}
			s := NewSession(analyzer, &stubWriter{}, DefaultOptions())

			st := s.Analyze(context.Background(), tt.dir, obs)
			if !errors.Is(st.Err, ErrInvalidDirectory) {
				t.Fatalf("error = %v, want ErrInvalidDirectory", st.Err)
			}
			if st.Message != MsgInvalidInput {
				t.Errorf("message = %q, want %q", st.Message, MsgInvalidInput)
			}
			if len(analyzer.calls) != 0 || len(obs.begins) != 0 {
				t.Error("nothing should run for an invalid directory")
			}
		})
	}
}

func TestRunAnalysisDecodeErrorAborts(t *testing.T) {
	dir := makeLibrary(t, "a.mp3", "b.mp3", "c.mp3")
	analyzer := &stubAnalyzer{errs: map[string]error{
		"b.mp3": fmt.Errorf("%w: b.mp3: bad frame", audio.ErrDecode),
	}}
	obs := &recordingObserver{}
	s := NewSession(analyzer, &stubWriter{}, DefaultOptions())

	records, err := s.RunAnalysis(context.Background(), dir, obs)
	if !errors.Is(err, audio.ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
	if _, ok := records["a.mp3"]; !ok || len(records) != 1 {
		t.Errorf("records = %v, want only a.mp3", records)
	}
	if _, ok := s.Records()["a.mp3"]; !ok {
		t.Error("record stored before the failure was lost")
	}
	if len(analyzer.calls) != 2 {
		t.Errorf("analyzed %v, want to stop at b.mp3", analyzer.calls)
	}
	if len(obs.ends) != 1 || !errors.Is(obs.ends[0], audio.ErrDecode) {
		t.Errorf("observer ends = %v", obs.ends)
	}
}

func TestRunAnalysisContinueOnError(t *testing.T) {
	dir := makeLibrary(t, "a.mp3", "b.mp3", "c.mp3")
	analyzer := &stubAnalyzer{errs: map[string]error{"b.mp3": audio.ErrDecode}}
	s := NewSession(analyzer, &stubWriter{}, Options{ContinueOnError: true})

	records, err := s.RunAnalysis(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("RunAnalysis: %v", err)
	}
	if len(records) != 2 || records["c.mp3"].Filename != "c.mp3" {
		t.Errorf("records = %v, want a.mp3 and c.mp3", records)
	}
}

func TestRunAnalysisOverwritesRecords(t *testing.T) {
	dir := makeLibrary(t, "a.mp3")
	analyzer := &stubAnalyzer{results: map[string]analysis.Result{"a.mp3": {BPM: 100, Key: analysis.G}}}
	s := NewSession(analyzer, &stubWriter{}, DefaultOptions())

	if _, err := s.RunAnalysis(context.Background(), dir, nil); err != nil {
		t.Fatal(err)
	}
	analyzer.results["a.mp3"] = analysis.Result{BPM: 101, Key: analysis.DSharp}
	if _, err := s.RunAnalysis(context.Background(), dir, nil); err != nil {
		t.Fatal(err)
	}
	if rec := s.Records()["a.mp3"]; rec.BPM != 101 || rec.Key != analysis.DSharp {
		t.Errorf("record = %+v, want the second analysis", rec)
	}
}

func TestRunAnalysisCancelled(t *testing.T) {
	dir := makeLibrary(t, "a.mp3")
	analyzer := &stubAnalyzer{}
	s := NewSession(analyzer, &stubWriter{}, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.RunAnalysis(ctx, dir, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(analyzer.calls) != 0 {
		t.Errorf("analyzed %v after cancellation", analyzer.calls)
	}
}

// blockingAnalyzer holds the first call until released.
type blockingAnalyzer struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (a *blockingAnalyzer) AnalyzeFile(string) (analysis.Result, error) {
	a.once.Do(func() { close(a.started) })
	<-a.release
	return analysis.Result{BPM: 1}, nil
}

func TestSessionRejectsConcurrentBatches(t *testing.T) {
	dir := makeLibrary(t, "a.mp3")
	analyzer := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(analyzer, &stubWriter{}, DefaultOptions())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunAnalysis(context.Background(), dir, nil)
		done <- err
	}()
	<-analyzer.started

	if _, err := s.RunAnalysis(context.Background(), dir, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("second RunAnalysis error = %v, want ErrBusy", err)
	}
	if err := s.WriteTags(context.Background(), dir, t.TempDir(), nil); !errors.Is(err, ErrBusy) {
		t.Errorf("WriteTags error = %v, want ErrBusy", err)
	}

	close(analyzer.release)
	if err := <-done; err != nil {
		t.Fatalf("first RunAnalysis: %v", err)
	}
	if _, err := s.RunAnalysis(context.Background(), dir, nil); err != nil {
		t.Errorf("RunAnalysis after the batch ended: %v", err)
	}
}

func TestWriteTagsEndToEnd(t *testing.T) {
	in := makeLibrary(t, "a.mp3", "b.mp3", "notes.txt")
	out := t.TempDir()

	analyzer := &stubAnalyzer{results: map[string]analysis.Result{
		"a.mp3": {BPM: 128, Key: analysis.F},
		"b.mp3": {BPM: 87, Key: analysis.FSharp},
	}}
	writer, err := tagging.NewWriter(tagging.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession(analyzer, writer, DefaultOptions())

	if st := s.Analyze(context.Background(), in, nil); st.Message != MsgAnalysisCompleted || !st.OK() {
		t.Fatalf("analyze status = %+v", st)
	}
	obs := &recordingObserver{}
	if st := s.Write(context.Background(), in, out, obs); st.Message != MsgWriteCompleted {
		t.Fatalf("write status = %+v", st)
	}

	for name, want := range map[string]tagging.Tags{
		"a.mp3": {BPM: 128, Key: "F"},
		"b.mp3": {BPM: 87, Key: "F#"},
	} {
		copied := filepath.Join(out, "updated", name)
		got, err := tagging.Read(copied)
		if err != nil {
			t.Fatalf("Read(%s): %v", copied, err)
		}
		if got.BPM != want.BPM || got.Key != want.Key {
			t.Errorf("%s tags = %+v, want %+v", name, got, want)
		}

		data, err := os.ReadFile(copied)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasSuffix(data, fakeAudio) {
			t.Errorf("%s audio payload changed", name)
		}

		original, err := os.ReadFile(filepath.Join(in, name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(original, fakeAudio) {
			t.Errorf("input %s was modified", name)
		}
	}

	if _, err := os.Stat(filepath.Join(out, "updated", "notes.txt")); err != nil {
		t.Errorf("backup is missing notes.txt: %v", err)
	}
	if len(obs.steps) != 2 || obs.steps[1].Phase != PhaseWrite {
		t.Errorf("write steps = %+v", obs.steps)
	}
}

func TestWriteTagsWithoutAnalysis(t *testing.T) {
	in := makeLibrary(t, "a.mp3")
	writer := &stubWriter{}
	s := NewSession(&stubAnalyzer{}, writer, DefaultOptions())

	err := s.WriteTags(context.Background(), in, t.TempDir(), nil)
	if !errors.Is(err, ErrMissingRecord) {
		t.Fatalf("error = %v, want ErrMissingRecord", err)
	}
	var missing *MissingRecordError
	if !errors.As(err, &missing) || missing.Filename != "a.mp3" {
		t.Errorf("error = %#v, want MissingRecordError for a.mp3", err)
	}
	if len(writer.written) != 0 {
		t.Errorf("wrote %v without records", writer.written)
	}
}

func TestWriteTagsDestinationExists(t *testing.T) {
	in := makeLibrary(t, "a.mp3")
	out := t.TempDir()
	existing := filepath.Join(out, "updated")
	if err := os.Mkdir(existing, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(existing, "a.mp3")
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	writer := &stubWriter{}
	records := map[string]TrackRecord{"a.mp3": {Filename: "a.mp3", BPM: 1, Key: analysis.C}}
	err := WriteTags(context.Background(), in, out, records, writer, DefaultOptions(), nil)
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("error = %v, want ErrDestinationExists", err)
	}
	if len(writer.written) != 0 {
		t.Error("tags were written despite the existing destination")
	}
	if data, _ := os.ReadFile(stale); string(data) != "old" {
		t.Error("existing backup was modified")
	}
}

func TestWriteTagsDirectoryChecks(t *testing.T) {
	valid := makeLibrary(t, "a.mp3")
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name    string
		in, out string
		want    string
	}{
		{"bad output", valid, missing, MsgInvalidOutput},
		{"bad input", missing, t.TempDir(), MsgInvalidInput},
		{"both bad reports output", missing, missing, MsgInvalidOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(&stubAnalyzer{}, &stubWriter{}, DefaultOptions())
			st := s.Write(context.Background(), tt.in, tt.out, nil)
			if st.Message != tt.want || !errors.Is(st.Err, ErrInvalidDirectory) {
				t.Errorf("status = %+v, want %q", st, tt.want)
			}
		})
	}
}

func TestWriteTagsSkipsVanishedFiles(t *testing.T) {
	in := makeLibrary(t, "a.mp3", "b.mp3", "c.mp3")
	records := map[string]TrackRecord{
		"a.mp3": {Filename: "a.mp3", BPM: 1, Key: analysis.C},
		"b.mp3": {Filename: "b.mp3", BPM: 2, Key: analysis.D},
		"c.mp3": {Filename: "c.mp3", BPM: 3, Key: analysis.E},
	}
	writer := &stubWriter{}
	writer.hook = func(path string) {
		if filepath.Base(path) == "a.mp3" {
			_ = os.Remove(filepath.Join(in, "b.mp3"))
		}
	}
	obs := &recordingObserver{}

	if err := WriteTags(context.Background(), in, t.TempDir(), records, writer, DefaultOptions(), obs); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
	want := []string{"a.mp3 1 C", "c.mp3 3 E"}
	if !reflect.DeepEqual(writer.written, want) {
		t.Errorf("written = %v, want %v", writer.written, want)
	}
	if len(obs.steps) != 2 || obs.steps[1].Done != 3 {
		t.Errorf("steps = %+v", obs.steps)
	}
}

func TestWriteTagsWriterError(t *testing.T) {
	in := makeLibrary(t, "a.mp3")
	records := map[string]TrackRecord{"a.mp3": {Filename: "a.mp3"}}
	boom := errors.New("disk full")
	obs := &recordingObserver{}

	err := WriteTags(context.Background(), in, t.TempDir(), records, &stubWriter{err: boom}, DefaultOptions(), obs)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if len(obs.ends) != 1 || !errors.Is(obs.ends[0], boom) {
		t.Errorf("observer ends = %v", obs.ends)
	}
}

func TestCopyTree(t *testing.T) {
	src := makeLibrary(t, "a.mp3")
	if err := os.MkdirAll(filepath.Join(src, "sub", "deeper"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "deeper", "x.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dst, "sub", "deeper", "x.txt")); err != nil || string(data) != "x" {
		t.Errorf("nested file = %q, %v", data, err)
	}

	if err := CopyTree(src, dst); !errors.Is(err, ErrDestinationExists) {
		t.Errorf("second copy error = %v, want ErrDestinationExists", err)
	}
	if err := CopyTree(src, filepath.Join(src, "sub", "backup")); err == nil {
		t.Error("expected error when copying a tree into itself")
	}
}

func symlinkOrSkip(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not available: %v", err)
	}
}

func TestCopyTreeFollowsSymlinks(t *testing.T) {
	src := makeLibrary(t, "a.mp3")
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "real.mp3"), []byte("linked track"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(outside, "album"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outside, "album", "c.mp3"), []byte("album track"), 0644); err != nil {
		t.Fatal(err)
	}
	symlinkOrSkip(t, filepath.Join(outside, "real.mp3"), filepath.Join(src, "b.mp3"))
	symlinkOrSkip(t, filepath.Join(outside, "album"), filepath.Join(src, "album"))

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}

	for name, want := range map[string]string{
		"a.mp3":                        string(fakeAudio),
		"b.mp3":                        "linked track",
		filepath.Join("album", "c.mp3"): "album track",
	} {
		path := filepath.Join(dst, name)
		info, err := os.Lstat(path)
		if err != nil {
			t.Errorf("%s missing from copy: %v", name, err)
			continue
		}
		if !info.Mode().IsRegular() {
			t.Errorf("%s copied as %s, want a regular file", name, info.Mode().Type())
		}
		if data, _ := os.ReadFile(path); string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
}

func TestCopyTreeRemovesPartialCopy(t *testing.T) {
	src := makeLibrary(t, "a.mp3")
	symlinkOrSkip(t, filepath.Join(t.TempDir(), "gone.mp3"), filepath.Join(src, "b.mp3"))

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyTree(src, dst); err == nil {
		t.Fatal("expected error for a dangling symlink")
	}
	if _, err := os.Lstat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial copy left at %s: %v", dst, err)
	}

	// The source is fixed, so a retry must not see ErrDestinationExists.
	if err := os.Remove(filepath.Join(src, "b.mp3")); err != nil {
		t.Fatal(err)
	}
	if err := CopyTree(src, dst); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestObservers(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers(a, nil, b)
	obs.Begin(PhaseAnalyze, 3)
	obs.Step(Progress{Done: 1})
	obs.End(PhaseAnalyze, nil)

	for i, o := range []*recordingObserver{a, b} {
		if len(o.begins) != 1 || len(o.steps) != 1 || len(o.ends) != 1 {
			t.Errorf("observer %d missed callbacks: %+v", i, o)
		}
	}
	if _, ok := Observers().(NopObserver); !ok {
		t.Error("Observers() without arguments should be a NopObserver")
	}
}

func TestStatusMessage(t *testing.T) {
	if got := statusMessage(&MissingRecordError{Filename: "x.mp3"}); got != "no analysis record for x.mp3" {
		t.Errorf("statusMessage() = %q", got)
	}
	wrapped := fmt.Errorf("outer: %w", &DirectoryError{Role: RoleOutput, Path: "/nope"})
	if got := statusMessage(wrapped); got != MsgInvalidOutput {
		t.Errorf("statusMessage() = %q, want %q", got, MsgInvalidOutput)
	}
}
