package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"sounder-sim/internal/config"
	"sounder-sim/internal/device"
	"sounder-sim/internal/logging"
	"sounder-sim/internal/sim"
	"sounder-sim/internal/stream"
	"sounder-sim/internal/telemetry"
)

// Device is the part of the simulator the admin UI drives.
type Device interface {
	Snapshot() device.State
	Stats() sim.Stats
	Execute(ctx context.Context, raw, source string) (device.Response, error)
	GetConfig() *config.Config
}

// ChannelSource reports video channel counters.
type ChannelSource interface {
	Stats() []stream.ChannelStats
}

const (
	commandTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Server struct {
	Sim      Device
	Channels ChannelSource
	tpl      *template.Template
}

//go:embed templates/index.html
var content embed.FS

// NewServer builds the admin UI. channels may be nil when no video channels
// run in this process.
func NewServer(dev Device, channels ChannelSource) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{Sim: dev, Channels: channels, tpl: tpl}
}

// Handler returns the admin routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /channels", s.handleChannels)
	return mux
}

// Start serves the admin UI on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info("admin UI listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("admin server: %w", err)
		}
		close(errc)
	}()
	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func (s *Server) channelStats() []stream.ChannelStats {
	if s.Channels == nil {
		return []stream.ChannelStats{}
	}
	return s.Channels.Stats()
}

type cameraView struct {
	ID     string
	Status device.CameraStatus
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Snapshot()
	cams := make([]cameraView, 0, len(st.Cameras))
	for _, id := range st.CameraIDs() {
		cams = append(cams, cameraView{ID: id, Status: st.Cameras[id]})
	}
	data := struct {
		State    device.State
		Cameras  []cameraView
		Stats    sim.Stats
		Channels []stream.ChannelStats
		Config   *config.Config
	}{
		State:    st,
		Cameras:  cams,
		Stats:    s.Sim.Stats(),
		Channels: s.channelStats(),
		Config:   s.Sim.GetConfig(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Warn("admin template", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Snapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Stats())
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.channelStats())
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Kind    device.Kind `json:"kind"`
	Message string      `json:"message"`
	Wire    string      `json:"wire"`
}

// handleCommand accepts {"command": "..."} or a form field named command and
// runs it through the simulator's dispatcher.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var raw string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		raw = req.Command
	} else {
		raw = r.FormValue("command")
	}
	if strings.TrimSpace(raw) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "command is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()
	resp, err := s.Sim.Execute(ctx, raw, telemetry.SourceAdmin)
	switch {
	case errors.Is(err, sim.ErrStopped):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Kind: resp.Kind, Message: resp.Message, Wire: resp.String()})
}
