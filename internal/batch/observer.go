// SPDX-License-Identifier: MIT
package batch

import (
	"bpmtag/internal/log"
)

// Phase names one of the two batch operations.
type Phase string

const (
	PhaseAnalyze Phase = "analyze"
	PhaseWrite   Phase = "write"
)

// Progress reports one completed file of a batch.
type Progress struct {
	Phase Phase
	Done  int    // Files completed so far, 1-based.
	Total int    // Files in the batch.
	File  string // Name of the file just completed.
}

// Observer receives progress for a running batch. Begin is called once
// before the first file, Step once per completed file and End once when the
// batch stops, with the error that stopped it or nil.
type Observer interface {
	Begin(phase Phase, total int)
	Step(p Progress)
	End(phase Phase, err error)
}

// NopObserver ignores all progress.
type NopObserver struct{}

func (NopObserver) Begin(Phase, int) {}
func (NopObserver) Step(Progress)    {}
func (NopObserver) End(Phase, error) {}

// MultiObserver fans progress out to several observers in order.
type MultiObserver []Observer

// Observers combines the non-nil observers into one.
func Observers(obs ...Observer) Observer {
	var m MultiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 0 {
		return NopObserver{}
	}
	return m
}

func (m MultiObserver) Begin(phase Phase, total int) {
	for _, o := range m {
		o.Begin(phase, total)
	}
}

func (m MultiObserver) Step(p Progress) {
	for _, o := range m {
		o.Step(p)
	}
}

func (m MultiObserver) End(phase Phase, err error) {
	for _, o := range m {
		o.End(phase, err)
	}
}

// LogObserver writes progress to the application log.
type LogObserver struct{}

func (LogObserver) Begin(phase Phase, total int) {
	log.Infof("Batch: %s started, %d files", phase, total)
}

func (LogObserver) Step(p Progress) {
	log.Debugf("Batch: %s %d/%d %s", p.Phase, p.Done, p.Total, p.File)
}

func (LogObserver) End(phase Phase, err error) {
	if err != nil {
		log.Errorf("Batch: %s stopped: %v", phase, err)
		return
	}
	log.Infof("Batch: %s finished", phase)
}

var (
	_ Observer = NopObserver{}
	_ Observer = MultiObserver(nil)
	_ Observer = LogObserver{}
)
