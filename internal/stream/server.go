package stream

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	boundary        = "frame"
	shutdownTimeout = 5 * time.Second
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Video stream test - port {{.Port}}</title>
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 20px; }
        .video-container { margin: 20px auto; }
        img { border: 2px solid #333; border-radius: 8px; }
    </style>
</head>
<body>
    <h1>{{.Name}}</h1>
    <h2>Port: {{.Port}}{{with .Location}} - {{.}}{{end}}</h2>
    <div class="video-container">
        <img src="/video_feed" width="{{.Width}}" height="{{.Height}}">
    </div>
    <p>Stream URL: <code>http://localhost:{{.Port}}/video_feed</code></p>
    <p>Snapshot: <a href="/snapshot.jpg">/snapshot.jpg</a></p>
</body>
</html>
`))

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Server exposes one channel over HTTP.
type Server struct {
	ch         *Channel
	engine     *gin.Engine
	httpServer *http.Server
	log        *slog.Logger
	width      int
	height     int
}

// NewServer builds the gin engine for ch, listening on host:port of the channel.
func NewServer(ch *Channel, host string, width, height int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{ch: ch, log: log.With("channel", ch.Info().ID), width: width, height: height}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.SetHTMLTemplate(indexTmpl)
	r.GET("/", s.handleIndex)
	r.GET("/video_feed", s.handleVideoFeed)
	r.GET("/snapshot.jpg", s.handleSnapshot)
	s.engine = r
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(ch.Info().Port)),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr is the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// ListenAndServe blocks until the server is shut down. A clean shutdown
// returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info("stream server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	info := s.ch.Info()
	c.HTML(http.StatusOK, "index", gin.H{
		"Name":     info.Name,
		"Port":     info.Port,
		"Location": info.Location,
		"Width":    s.width,
		"Height":   s.height,
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	f := s.ch.Latest()
	if f == nil {
		c.String(http.StatusServiceUnavailable, "no frame yet")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", f.Data)
}

// handleVideoFeed forwards the newest frame once per channel tick until the
// client goes away or the channel stops. Every client runs its own loop over
// the shared slot.
func (s *Server) handleVideoFeed(c *gin.Context) {
	select {
	case <-s.ch.Stopped():
		c.String(http.StatusServiceUnavailable, "channel stopped")
		return
	default:
	}

	clientID := uuid.NewString()
	n := s.ch.addClient()
	log := s.log.With("client", clientID)
	log.Info("stream client connected", "remote", c.ClientIP(), "clients", n)
	defer func() {
		log.Info("stream client disconnected", "clients", s.ch.dropClient())
	}()

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	w := c.Writer
	clientGone := c.Request.Context().Done()
	ticker := time.NewTicker(s.ch.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-clientGone:
			return
		case <-s.ch.Stopped():
			return
		case <-ticker.C:
			f := s.ch.Latest()
			if f == nil {
				continue
			}
			if err := writePart(w, f.Data); err != nil {
				log.Debug("stream write failed", "err", err)
				return
			}
			w.Flush()
		}
	}
}

func writePart(w gin.ResponseWriter, jpg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", boundary); err != nil {
		return err
	}
	if _, err := w.Write(jpg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
