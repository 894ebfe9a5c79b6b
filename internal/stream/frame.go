// Package stream renders synthetic camera frames and serves them as MJPEG.
package stream

import (
	"sync/atomic"
	"time"
)

// Frame is one encoded JPEG image. Frames are immutable once published.
type Frame struct {
	Seq        uint64
	Data       []byte
	RenderedAt time.Time
}

// Slot holds the newest frame of a channel. There is a single writer; any
// number of readers load the whole frame without blocking it.
type Slot struct {
	p   atomic.Pointer[Frame]
	seq atomic.Uint64
}

// Publish stores data as the newest frame and returns it.
func (s *Slot) Publish(data []byte, at time.Time) *Frame {
	f := &Frame{Seq: s.seq.Add(1), Data: data, RenderedAt: at}
	s.p.Store(f)
	return f
}

// Load returns the newest frame, or nil before the first publish.
func (s *Slot) Load() *Frame {
	return s.p.Load()
}
