package stream

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"sounder-sim/internal/config"
	"sounder-sim/internal/logging"
)

// Manager runs a set of channels and their HTTP servers.
type Manager struct {
	channels []*Channel
	servers  []*Server
	host     string
}

// SelectChannels picks the configured channels to serve: all of them when
// all is set, otherwise the ones whose port is listed. Unknown ports are an
// error.
func SelectChannels(cfg config.StreamConfig, ports []int, all bool) ([]ChannelInfo, error) {
	byPort := make(map[int]config.Channel, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		byPort[ch.Port] = ch
	}
	var out []ChannelInfo
	if all {
		for _, ch := range cfg.Channels {
			out = append(out, ChannelInfo(ch))
		}
	} else {
		for _, p := range ports {
			ch, ok := byPort[p]
			if !ok {
				return nil, fmt.Errorf("no channel configured on port %d", p)
			}
			out = append(out, ChannelInfo(ch))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no channels selected")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out, nil
}

// NewManager builds one channel per info with the shared renderer settings
// from cfg.
func NewManager(cfg config.StreamConfig, infos []ChannelInfo) *Manager {
	r := NewPatternRenderer(cfg.Width, cfg.Height)
	m := &Manager{host: cfg.Host}
	for _, info := range infos {
		ch := NewChannel(info, r, cfg.FPS, WithQuality(cfg.Quality))
		m.channels = append(m.channels, ch)
	}
	return m
}

// Channels returns the managed channels in port order.
func (m *Manager) Channels() []*Channel { return m.channels }

// Stats returns per-channel counters.
func (m *Manager) Stats() []ChannelStats {
	out := make([]ChannelStats, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.Stats())
	}
	return out
}

// Run starts every channel loop and HTTP server and blocks until ctx is
// cancelled. A server that cannot bind is logged and its channel stopped;
// the other channels keep serving. On shutdown channels stop first so that
// streaming handlers return, then servers are shut down.
func (m *Manager) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)

	for _, ch := range m.channels {
		ch := ch
		srv := NewServer(ch, m.host, widthOf(ch), heightOf(ch), log)
		m.servers = append(m.servers, srv)
		g.Go(func() error { return ch.Run(gctx) })
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil {
				log.Error("stream server failed", "channel", ch.Info().ID, "err", err)
				ch.Stop()
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		for _, ch := range m.channels {
			ch.Stop()
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range m.servers {
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn("stream server shutdown", "addr", srv.Addr(), "err", err)
			}
		}
		return nil
	})
	return g.Wait()
}

func widthOf(ch *Channel) int {
	if pr, ok := ch.renderer.(*PatternRenderer); ok {
		return pr.Width
	}
	return refWidth
}

func heightOf(ch *Channel) int {
	if pr, ok := ch.renderer.(*PatternRenderer); ok {
		return pr.Height
	}
	return refHeight
}
