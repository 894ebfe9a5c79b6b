package stream

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sounder-sim/internal/logging"
)

// ErrChannelNotIdle is returned when Run is called on a channel that already
// ran or was stopped. Channels are not restartable.
var ErrChannelNotIdle = errors.New("channel is not idle")

// State is the lifecycle of a channel: idle -> running -> stopped.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ChannelStats is a point-in-time view of a channel for the admin API.
type ChannelStats struct {
	ChannelInfo
	State        string    `json:"state"`
	Frames       uint64    `json:"frames"`
	EncodeErrors uint64    `json:"encode_errors"`
	Clients      int64     `json:"clients"`
	LastFrame    time.Time `json:"last_frame"`
}

type encodeFunc func(io.Writer, image.Image, *jpeg.Options) error

// Channel renders frames for one simulated camera at a fixed rate and keeps
// the newest one in its Slot.
type Channel struct {
	info     ChannelInfo
	renderer Renderer
	fps      int
	quality  int
	now      func() time.Time
	encode   encodeFunc

	slot     Slot
	state    atomic.Int32
	stopped  chan struct{}
	stopOnce sync.Once

	frames       atomic.Uint64
	encodeErrors atomic.Uint64
	clients      atomic.Int64
}

// ChannelOption customizes a Channel.
type ChannelOption func(*Channel)

// WithClock overrides the clock handed to the renderer.
func WithClock(now func() time.Time) ChannelOption {
	return func(c *Channel) { c.now = now }
}

// WithQuality sets the JPEG quality.
func WithQuality(q int) ChannelOption {
	return func(c *Channel) { c.quality = q }
}

// NewChannel creates an idle channel rendering at fps frames per second.
func NewChannel(info ChannelInfo, r Renderer, fps int, opts ...ChannelOption) *Channel {
	if fps <= 0 {
		fps = 30
	}
	c := &Channel{
		info:     info,
		renderer: r,
		fps:      fps,
		quality:  80,
		now:      time.Now,
		encode:   jpeg.Encode,
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Info returns the channel identity.
func (c *Channel) Info() ChannelInfo { return c.info }

// Interval is the time between two frames.
func (c *Channel) Interval() time.Duration { return time.Second / time.Duration(c.fps) }

// State reports the lifecycle state.
func (c *Channel) State() State { return State(c.state.Load()) }

// Latest returns the newest frame or nil.
func (c *Channel) Latest() *Frame { return c.slot.Load() }

// Stopped is closed once the channel stops.
func (c *Channel) Stopped() <-chan struct{} { return c.stopped }

// Run renders frames until ctx is cancelled or Stop is called.
func (c *Channel) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrChannelNotIdle
	}
	log := logging.FromContext(ctx).With("channel", c.info.ID, "port", c.info.Port)
	log.Info("channel started", "fps", c.fps)
	defer c.Stop()

	ticker := time.NewTicker(c.Interval())
	defer ticker.Stop()
	c.renderOnce(log)
	for {
		select {
		case <-ctx.Done():
			log.Info("channel stopped", "frames", c.frames.Load())
			return nil
		case <-c.stopped:
			log.Info("channel stopped", "frames", c.frames.Load())
			return nil
		case <-ticker.C:
			c.renderOnce(log)
		}
	}
}

// Stop moves the channel to stopped. It is safe to call more than once and
// on a channel that never ran.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.state.Store(int32(StateStopped))
		close(c.stopped)
	})
}

// renderOnce draws and encodes one frame; on encode failure the previous
// frame stays in the slot.
func (c *Channel) renderOnce(log *slog.Logger) {
	at := c.now()
	img := c.renderer.Render(c.info, at)
	var buf bytes.Buffer
	if err := c.encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		c.encodeErrors.Add(1)
		log.Warn("frame encode failed", "err", err)
		return
	}
	c.slot.Publish(buf.Bytes(), at)
	c.frames.Add(1)
}

func (c *Channel) addClient() int64  { return c.clients.Add(1) }
func (c *Channel) dropClient() int64 { return c.clients.Add(-1) }

// Stats returns the current counters.
func (c *Channel) Stats() ChannelStats {
	st := ChannelStats{
		ChannelInfo:  c.info,
		State:        c.State().String(),
		Frames:       c.frames.Load(),
		EncodeErrors: c.encodeErrors.Load(),
		Clients:      c.clients.Load(),
	}
	if f := c.slot.Load(); f != nil {
		st.LastFrame = f.RenderedAt
	}
	return st
}
