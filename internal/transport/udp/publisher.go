// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"bpmtag/internal/batch"
	applog "bpmtag/internal/log"
)

// State of the batch carried in each packet.
const (
	StateIdle     uint8 = iota // No batch has started.
	StateRunning               // A batch is in progress.
	StateFinished              // The last batch completed.
	StateFailed                // The last batch stopped on an error.
)

// Phase codes carried in each packet.
const (
	PhaseNone    uint8 = 0
	PhaseAnalyze uint8 = 1
	PhaseWrite   uint8 = 2
)

const maxFileName = 1024

// Packet is the decoded form of one progress datagram.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Phase     uint8
	State     uint8
	Done      uint32
	Total     uint32
	File      string
}

// UDPPublisher observes a batch and periodically sends a snapshot of its
// progress over UDP, plus one snapshot immediately when the batch ends.
type UDPPublisher struct {
	sender   *UDPSender    // The underlying UDP sender instance.
	interval time.Duration // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	stateMu     sync.Mutex // Protects the snapshot and the packet buffer.
	snapshot    Packet
	sequenceNum uint32
	packet      *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates a publisher sending through sender. An interval
// <= 0 defaults to 250ms.
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
		applog.Debugf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	return &UDPPublisher{
		sender:   sender,
		interval: interval,
		packet:   new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Local copies for the goroutine.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Calling Stop on a stopped publisher is a no-op.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

func (p *UDPPublisher) Begin(phase batch.Phase, total int) {
	p.stateMu.Lock()
	p.snapshot = Packet{Phase: phaseCode(phase), State: StateRunning, Total: uint32(total)}
	p.stateMu.Unlock()
}

func (p *UDPPublisher) Step(pr batch.Progress) {
	p.stateMu.Lock()
	p.snapshot.Phase = phaseCode(pr.Phase)
	p.snapshot.State = StateRunning
	p.snapshot.Done = uint32(pr.Done)
	p.snapshot.Total = uint32(pr.Total)
	p.snapshot.File = pr.File
	p.stateMu.Unlock()
}

func (p *UDPPublisher) End(phase batch.Phase, err error) {
	p.stateMu.Lock()
	p.snapshot.Phase = phaseCode(phase)
	p.snapshot.State = StateFinished
	if err != nil {
		p.snapshot.State = StateFailed
	}
	p.stateMu.Unlock()
	p.publish()
}

func phaseCode(phase batch.Phase) uint8 {
	switch phase {
	case batch.PhaseAnalyze:
		return PhaseAnalyze
	case batch.PhaseWrite:
		return PhaseWrite
	default:
		return PhaseNone
	}
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Phase             | uint8          | 1            | 0 none, 1 analyze, 2 write |
| State             | uint8          | 1            | idle/running/finished/failed |
| Done              | uint32         | 4            | Files completed         |
| Total             | uint32         | 4            | Files in the batch      |
| Name Length       | uint16         | 2            | Bytes of file name (N)  |
| File Name         | []byte         | N            | Last completed file     |
+-----------------------------------------------------------------------------+
*/

// publish packs the current snapshot and sends it.
func (p *UDPPublisher) publish() {
	p.stateMu.Lock()
	p.sequenceNum++
	snap := p.snapshot
	snap.Seq = p.sequenceNum
	snap.Timestamp = time.Now()

	p.packet.Reset()
	if err := encodePacket(p.packet, snap); err != nil {
		p.stateMu.Unlock()
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}
	// Copy out so the buffer can be reused while the datagram is in flight.
	packetBytes := bytes.Clone(p.packet.Bytes())
	p.stateMu.Unlock()

	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", snap.Seq, len(packetBytes))
	}
}

func encodePacket(buf *bytes.Buffer, pkt Packet) error {
	name := []byte(pkt.File)
	if len(name) > maxFileName {
		name = name[:maxFileName]
	}
	fields := []any{
		pkt.Seq,
		pkt.Timestamp.UnixNano(),
		pkt.Phase,
		pkt.State,
		pkt.Done,
		pkt.Total,
		uint16(len(name)),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.BigEndian, f); err != nil {
			return err
		}
	}
	_, err := buf.Write(name)
	return err
}

// DecodePacket parses a datagram produced by UDPPublisher.
func DecodePacket(data []byte) (Packet, error) {
	var hdr struct {
		Seq     uint32
		Nanos   int64
		Phase   uint8
		State   uint8
		Done    uint32
		Total   uint32
		NameLen uint16
	}
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return Packet{}, fmt.Errorf("short packet: %w", err)
	}
	if int(hdr.NameLen) != r.Len() {
		return Packet{}, errors.New("file name length does not match packet size")
	}
	name := make([]byte, hdr.NameLen)
	_, _ = r.Read(name)

	return Packet{
		Seq:       hdr.Seq,
		Timestamp: time.Unix(0, hdr.Nanos),
		Phase:     hdr.Phase,
		State:     hdr.State,
		Done:      hdr.Done,
		Total:     hdr.Total,
		File:      string(name),
	}, nil
}

// Ensure UDPPublisher satisfies the interfaces at compile time.
var _ batch.Observer = (*UDPPublisher)(nil)
var _ interface{ Close() error } = (*UDPPublisher)(nil)
