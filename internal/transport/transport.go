// SPDX-License-Identifier: MIT

// Package transport publishes batch progress to remote listeners.
package transport

import (
	"sync"

	"bpmtag/internal/batch"
	"bpmtag/internal/log"
)

// Transport defines a generic interface for sending events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// EventTypeProgress is the type of every ProgressEvent.
const EventTypeProgress = "progress"

// ProgressEvent is the JSON message published for each observer callback.
type ProgressEvent struct {
	Type     string `json:"type"`
	Seq      uint64 `json:"seq"`
	Phase    string `json:"phase"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	File     string `json:"file,omitempty"`
	Finished bool   `json:"finished"`
	Error    string `json:"error,omitempty"`
}

// ProgressObserver turns batch progress into ProgressEvents on a Transport.
// Send errors are logged and otherwise ignored so a lost listener never stops
// a batch.
type ProgressObserver struct {
	transport Transport

	mu    sync.Mutex
	seq   uint64
	done  int
	total int
}

// NewProgressObserver publishes to t.
func NewProgressObserver(t Transport) *ProgressObserver {
	return &ProgressObserver{transport: t}
}

func (o *ProgressObserver) Begin(phase batch.Phase, total int) {
	o.mu.Lock()
	o.done, o.total = 0, total
	ev := o.next(phase)
	o.mu.Unlock()
	o.send(ev)
}

func (o *ProgressObserver) Step(p batch.Progress) {
	o.mu.Lock()
	o.done, o.total = p.Done, p.Total
	ev := o.next(p.Phase)
	ev.File = p.File
	o.mu.Unlock()
	o.send(ev)
}

func (o *ProgressObserver) End(phase batch.Phase, err error) {
	o.mu.Lock()
	ev := o.next(phase)
	ev.Finished = true
	if err != nil {
		ev.Error = err.Error()
	}
	o.mu.Unlock()
	o.send(ev)
}

// next returns an event carrying the current counters. o.mu must be held.
func (o *ProgressObserver) next(phase batch.Phase) ProgressEvent {
	o.seq++
	return ProgressEvent{
		Type:  EventTypeProgress,
		Seq:   o.seq,
		Phase: string(phase),
		Done:  o.done,
		Total: o.total,
	}
}

func (o *ProgressObserver) send(ev ProgressEvent) {
	if o.transport == nil {
		return
	}
	if err := o.transport.Send(ev); err != nil {
		log.Warnf("Transport: failed to publish progress %d: %v", ev.Seq, err)
	}
}

var _ batch.Observer = (*ProgressObserver)(nil)
