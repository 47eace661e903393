// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"bpmtag/internal/analysis"
	"bpmtag/internal/audio"
	"bpmtag/internal/batch"
	"bpmtag/internal/config"
	"bpmtag/internal/log"
	"bpmtag/internal/tagging"
	"bpmtag/internal/transport"
	"bpmtag/internal/transport/udp"
	"bpmtag/internal/tui"
)

// App executes one parsed command against a loaded configuration.
type App struct {
	cfg    *config.Config
	opts   *config.Options
	stdout io.Writer
	stderr io.Writer // Progress bars.
}

// NewApp returns an App printing results to stdout and bars to stderr.
func NewApp(cfg *config.Config, opts *config.Options, stdout, stderr io.Writer) *App {
	return &App{cfg: cfg, opts: opts, stdout: stdout, stderr: stderr}
}

// Run executes the selected command until it finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	switch a.opts.Command {
	case config.CommandShell:
		return a.runShell(ctx)
	case config.CommandAnalyze:
		return a.runAnalyze(ctx)
	case config.CommandTag:
		return a.runTag(ctx)
	case config.CommandTrack:
		return a.runTrack()
	case config.CommandInspect:
		return a.runInspect()
	default:
		return fmt.Errorf("unknown command %q", a.opts.Command)
	}
}

func (a *App) newSession() (*batch.Session, error) {
	analyzer, err := analysis.NewAnalyzer(a.cfg.Analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	writer, err := tagging.NewWriter(tagging.Options{
		Version:  a.cfg.Tags.Version,
		Encoding: a.cfg.Tags.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tag writer: %w", err)
	}
	return batch.NewSession(analyzer, writer, batch.Options{
		BackupDir:       a.cfg.Batch.BackupDir,
		ContinueOnError: a.cfg.Batch.ContinueOnError,
	}), nil
}

// openSinks starts the configured remote progress transports. The returned
// close function stops them.
func (a *App) openSinks() (batch.Observer, func(), error) {
	var (
		observers []batch.Observer
		closers   []io.Closer
	)
	closeAll := func() {
		for _, c := range slices.Backward(closers) {
			if err := c.Close(); err != nil {
				log.Warnf("Progress: close failed: %v", err)
			}
		}
	}

	if a.cfg.Debug {
		observers = append(observers, transport.NewProgressObserver(transport.NewLoggingTransport()))
	}

	if addr := a.cfg.Progress.WebSocketAddr; addr != "" {
		ws, err := transport.NewWebSocketTransport(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start progress websocket: %w", err)
		}
		observers = append(observers, transport.NewProgressObserver(ws))
		closers = append(closers, ws)
	}

	if addr := a.cfg.Progress.UDPTargetAddress; addr != "" {
		sender, err := udp.NewUDPSender(addr)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create UDP sender: %w", err)
		}
		pub, err := udp.NewUDPPublisher(0, sender)
		if err != nil {
			_ = sender.Close()
			closeAll()
			return nil, nil, err
		}
		pub.Start()
		log.Infof("Progress: sending UDP snapshots to %s", addr)
		observers = append(observers, pub)
		closers = append(closers, pub)
	}

	return batch.Observers(observers...), closeAll, nil
}

// sessionRunner adds the remote progress sinks to every shell action.
type sessionRunner struct {
	session *batch.Session
	sinks   batch.Observer
}

func (r sessionRunner) Analyze(ctx context.Context, inputDir string, obs batch.Observer) batch.Status {
	return r.session.Analyze(ctx, inputDir, batch.Observers(obs, r.sinks))
}

func (r sessionRunner) Write(ctx context.Context, inputDir, outputDir string, obs batch.Observer) batch.Status {
	return r.session.Write(ctx, inputDir, outputDir, batch.Observers(obs, r.sinks))
}

func (a *App) runShell(ctx context.Context) error {
	session, err := a.newSession()
	if err != nil {
		return err
	}
	sinks, closeSinks, err := a.openSinks()
	if err != nil {
		return err
	}
	defer closeSinks()

	// The alternate screen owns the terminal; log lines would tear it.
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	runner := sessionRunner{session: session, sinks: sinks}
	return tui.Run(ctx, runner, a.opts.InputDir, a.opts.OutputDir)
}

// batchObserver combines logging, remote sinks and optional terminal bars.
// wait blocks until the bars are drawn.
func (a *App) batchObserver(ctx context.Context, sinks batch.Observer) (batch.Observer, func()) {
	if !a.cfg.Progress.Bars {
		return batch.Observers(batch.LogObserver{}, sinks), func() {}
	}
	bars := newBarObserver(ctx, a.stderr)
	return batch.Observers(batch.LogObserver{}, sinks, bars), bars.Wait
}

func (a *App) runAnalyze(ctx context.Context) error {
	session, err := a.newSession()
	if err != nil {
		return err
	}
	sinks, closeSinks, err := a.openSinks()
	if err != nil {
		return err
	}
	defer closeSinks()

	obs, wait := a.batchObserver(ctx, sinks)
	st := session.Analyze(ctx, a.opts.InputDir, obs)
	wait()

	a.printRecords(st.Records)
	if !st.OK() {
		return fmt.Errorf("%s: %w", st.Message, st.Err)
	}
	fmt.Fprintln(a.stdout, st.Message)
	return nil
}

func (a *App) runTag(ctx context.Context) error {
	session, err := a.newSession()
	if err != nil {
		return err
	}
	sinks, closeSinks, err := a.openSinks()
	if err != nil {
		return err
	}
	defer closeSinks()

	obs, wait := a.batchObserver(ctx, sinks)
	defer wait()

	st := session.Analyze(ctx, a.opts.InputDir, obs)
	if !st.OK() {
		return fmt.Errorf("%s: %w", st.Message, st.Err)
	}
	st = session.Write(ctx, a.opts.InputDir, a.opts.OutputDir, obs)
	if !st.OK() {
		return fmt.Errorf("%s: %w", st.Message, st.Err)
	}
	fmt.Fprintln(a.stdout, st.Message)
	return nil
}

func (a *App) printRecords(records map[string]batch.TrackRecord) {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		rec := records[name]
		fmt.Fprintf(a.stdout, "%-40s %4d BPM  %s\n", name, rec.BPM, rec.Key)
	}
}

func (a *App) runTrack() error {
	if !audio.Supported(a.opts.File) {
		return fmt.Errorf("%s: unsupported file type, want .mp3 or .wav", a.opts.File)
	}
	analyzer, err := analysis.NewAnalyzer(a.cfg.Analysis)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}
	res, err := analyzer.AnalyzeFile(a.opts.File)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "File:  %s\n", a.opts.File)
	fmt.Fprintf(a.stdout, "Tempo: %d BPM (%.2f)\n", res.BPM, res.Tempo)
	fmt.Fprintf(a.stdout, "Key:   %s\n", res.Key)
	fmt.Fprintf(a.stdout, "Tonnetz: %.3f\n", res.Tonnetz)
	return nil
}

func (a *App) runInspect() error {
	tags, err := tagging.Read(a.opts.File)
	if err != nil {
		return err
	}
	bpm := tags.RawBPM
	if bpm == "" {
		bpm = "-"
	}
	key := tags.Key
	if key == "" {
		key = "-"
	}
	fmt.Fprintf(a.stdout, "File:   %s\n", a.opts.File)
	fmt.Fprintf(a.stdout, "Format: %s\n", tags.Format)
	fmt.Fprintf(a.stdout, "TBPM:   %s\n", bpm)
	fmt.Fprintf(a.stdout, "TKEY:   %s\n", key)
	return nil
}
