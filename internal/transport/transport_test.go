// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bpmtag/internal/batch"

	"github.com/gorilla/websocket"
)

// MockTransport stores everything sent for later inspection.
type MockTransport struct {
	mu   sync.Mutex
	Sent []any
	Err  error
}

func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	return m.Err
}

func (m *MockTransport) Close() error { return nil }

func TestProgressObserverEvents(t *testing.T) {
	mt := &MockTransport{}
	obs := NewProgressObserver(mt)

	obs.Begin(batch.PhaseAnalyze, 2)
	obs.Step(batch.Progress{Phase: batch.PhaseAnalyze, Done: 1, Total: 2, File: "a.mp3"})
	obs.Step(batch.Progress{Phase: batch.PhaseAnalyze, Done: 2, Total: 2, File: "b.mp3"})
	obs.End(batch.PhaseAnalyze, nil)

	want := []ProgressEvent{
		{Type: "progress", Seq: 1, Phase: "analyze", Done: 0, Total: 2},
		{Type: "progress", Seq: 2, Phase: "analyze", Done: 1, Total: 2, File: "a.mp3"},
		{Type: "progress", Seq: 3, Phase: "analyze", Done: 2, Total: 2, File: "b.mp3"},
		{Type: "progress", Seq: 4, Phase: "analyze", Done: 2, Total: 2, Finished: true},
	}
	if len(mt.Sent) != len(want) {
		t.Fatalf("sent %d events, want %d", len(mt.Sent), len(want))
	}
	for i, w := range want {
		if got := mt.Sent[i].(ProgressEvent); got != w {
			t.Errorf("event %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestProgressObserverErrorAndSendFailure(t *testing.T) {
	mt := &MockTransport{Err: errors.New("gone")}
	obs := NewProgressObserver(mt)

	obs.Begin(batch.PhaseWrite, 1)
	obs.End(batch.PhaseWrite, fmt.Errorf("no analysis record for a.mp3"))

	last := mt.Sent[len(mt.Sent)-1].(ProgressEvent)
	if !last.Finished || last.Error != "no analysis record for a.mp3" {
		t.Errorf("final event = %+v", last)
	}

	// A nil transport is allowed and silent.
	NewProgressObserver(nil).Begin(batch.PhaseWrite, 1)
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	if err := lt.Send(ProgressEvent{Type: EventTypeProgress}); err != nil {
		t.Errorf("Send: %v", err)
	}
	if err := lt.Send(make(chan int)); err != nil {
		t.Errorf("Send of unmarshalable data: %v", err)
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	url := "ws://" + wst.Addr().String() + ProgressPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.clientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client was never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	obs := NewProgressObserver(wst)
	obs.Begin(batch.PhaseWrite, 3)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev ProgressEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.Type != EventTypeProgress || ev.Phase != "write" || ev.Total != 3 || ev.Seq != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestWebSocketClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := wst.Send("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocketBadAddress(t *testing.T) {
	if _, err := NewWebSocketTransport("256.0.0.1:bad"); err == nil {
		t.Error("expected listen error")
	}
}
