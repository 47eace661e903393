// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"io"
	"sync"

	"bpmtag/internal/batch"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// barObserver draws one terminal progress bar per batch phase.
type barObserver struct {
	progress *mpb.Progress

	mu  sync.Mutex
	bar *mpb.Bar
}

func newBarObserver(ctx context.Context, w io.Writer) *barObserver {
	return &barObserver{
		progress: mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(w)),
	}
}

func phaseLabel(phase batch.Phase) string {
	if phase == batch.PhaseWrite {
		return "Writing:   "
	}
	return "Analyzing: "
}

func (o *barObserver) Begin(phase batch.Phase, total int) {
	bar := o.progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(phaseLabel(phase)),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
	o.mu.Lock()
	o.bar = bar
	o.mu.Unlock()
}

func (o *barObserver) Step(batch.Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar != nil {
		o.bar.Increment()
	}
}

func (o *barObserver) End(_ batch.Phase, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar == nil {
		return
	}
	if err != nil {
		o.bar.Abort(false)
	} else {
		// Skipped files never increment; complete the bar at its current count.
		o.bar.SetTotal(-1, true)
	}
	o.bar = nil
}

// Wait blocks until every bar has finished rendering.
func (o *barObserver) Wait() {
	o.progress.Wait()
}

var _ batch.Observer = (*barObserver)(nil)
