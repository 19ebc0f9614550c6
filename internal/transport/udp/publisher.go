// SPDX-License-Identifier: MIT

// Package udp mirrors spectrum frames to a UDP listener as compact binary
// packets, for LED controllers and other consumers that cannot speak
// WebSocket.
package udp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"visualizer/internal/analysis"
	"visualizer/internal/log"
)

/*
UDP Packet Structure (BigEndian)

+------------------------------------------------------------------------+
| Field           | Data Type | Size (Bytes) | Description               |
|-----------------|-----------|--------------|---------------------------|
| Sequence Number | uint32    | 4            | Monotonically increasing  |
| Timestamp       | int64     | 8            | Nanoseconds since epoch   |
| Bar Count       | uint16    | 2            | Number of bars (N)        |
| Bars            | []float32 | N * 4        | Bar magnitudes            |
| Volume L        | float32   | 4            | Left RMS volume [0, 100]  |
| Volume R        | float32   | 4            | Right RMS volume [0, 100] |
+------------------------------------------------------------------------+
*/

// HeaderSize is the number of bytes before the bar values.
const HeaderSize = 4 + 8 + 2

// Packet is a decoded mirror packet.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Bars      []float32
	VolL      float32
	VolR      float32
}

// Publisher periodically sends the latest frame from a FrameStore.
type Publisher struct {
	sender   io.Writer
	frames   *analysis.FrameStore
	interval time.Duration

	seq     uint32
	lastSeq uint64
	f32     []float32
	buf     bytes.Buffer
	now     func() time.Time
}

// writerFunc adapts UDPSender.Send to io.Writer.
type writerFunc func([]byte) error

func (f writerFunc) Write(p []byte) (int, error) {
	if err := f(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewPublisher creates a publisher sending to sender every interval.
// If the interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewPublisher(interval time.Duration, sender *UDPSender, frames *analysis.FrameStore) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	return newPublisher(interval, writerFunc(sender.Send), frames)
}

func newPublisher(interval time.Duration, w io.Writer, frames *analysis.FrameStore) (*Publisher, error) {
	if frames == nil {
		return nil, errors.New("UDPPublisher: frame store cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		log.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	return &Publisher{
		sender:   w,
		frames:   frames,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run sends packets until ctx is done. Frames that have already been sent
// are not repeated.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Infof("UDPPublisher: Publishing every %s", p.interval)
	for {
		select {
		case <-ctx.Done():
			log.Debugf("UDPPublisher: Stopped after %d packets", p.seq)
			return nil
		case <-ticker.C:
			p.publish()
		}
	}
}

// publish sends the latest frame if it is new. It reports whether a packet
// was written.
func (p *Publisher) publish() bool {
	f, n := p.frames.Latest()
	if f == nil || n == p.lastSeq {
		return false
	}
	p.lastSeq = n

	p.seq++
	if err := p.pack(f); err != nil {
		log.Errorf("UDPPublisher: Error packing frame: %v", err)
		return false
	}
	if _, err := p.sender.Write(p.buf.Bytes()); err != nil {
		log.Debugf("UDPPublisher: Send failed: %v", err)
		return false
	}
	return true
}

func (p *Publisher) pack(f *analysis.Frame) error {
	if cap(p.f32) < len(f.Bars) {
		p.f32 = make([]float32, len(f.Bars))
	}
	p.f32 = p.f32[:len(f.Bars)]
	for i, v := range f.Bars {
		p.f32[i] = float32(v)
	}

	p.buf.Reset()
	for _, v := range []any{
		p.seq,
		p.now().UnixNano(),
		uint16(len(p.f32)),
		p.f32,
		float32(f.VolL),
		float32(f.VolR),
	} {
		if err := binary.Write(&p.buf, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses a packet produced by Publisher.
func Decode(data []byte) (Packet, error) {
	r := bytes.NewReader(data)
	var (
		pkt   Packet
		count uint16
	)
	if err := binary.Read(r, binary.BigEndian, &pkt.Seq); err != nil {
		return Packet{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &pkt.Timestamp); err != nil {
		return Packet{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Packet{}, err
	}
	if r.Len() != int(count)*4+8 {
		return Packet{}, errors.New("packet length does not match bar count")
	}
	pkt.Bars = make([]float32, count)
	if err := binary.Read(r, binary.BigEndian, pkt.Bars); err != nil {
		return Packet{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &pkt.VolL); err != nil {
		return Packet{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &pkt.VolR); err != nil {
		return Packet{}, err
	}
	return pkt, nil
}
