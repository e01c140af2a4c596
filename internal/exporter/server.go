package exporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/protocol"
)

// DefaultPort is the exporter's default listen port.
const DefaultPort = 9091

// Config holds the exporter configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the listen address.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, fmt.Sprint(port))
}

// Exporter serves station telemetry: Prometheus metrics, the latest known
// state as JSON and a WebSocket feed of live updates.
type Exporter struct {
	config   Config
	registry *prometheus.Registry
	sink     *Sink
	hub      *Hub
	srv      *http.Server

	mu      sync.RWMutex
	state   protocol.State
	updated time.Time
}

// New creates an Exporter with its own metrics registry.
func New(config Config) *Exporter {
	reg := NewRegistry()
	e := &Exporter{
		config:   config,
		registry: reg,
		sink:     NewSink(reg),
		hub:      NewHub(),
	}

	readTimeout := config.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}
	e.srv = &http.Server{
		Addr:        config.Addr(),
		Handler:     e.routes(),
		ReadTimeout: readTimeout,
		// WriteTimeout stays zero unless configured: /ws connections are long-lived
		WriteTimeout: config.WriteTimeout,
	}
	return e
}

// Sink returns the metrics sink. It also serves as a device.Observer.
func (e *Exporter) Sink() *Sink { return e.sink }

// Hub returns the live update feed.
func (e *Exporter) Hub() *Hub { return e.hub }

// Handler returns the HTTP handler with every route registered.
func (e *Exporter) Handler() http.Handler { return e.srv.Handler }

func (e *Exporter) routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(MetricsHandler(e.registry)))
	r.GET("/snapshot", e.handleSnapshot)
	r.GET("/ws", gin.WrapH(e.hub))
	return r
}

// snapshotResponse is the /snapshot body. Device is set once every field
// has been seen; until then State carries what is known.
type snapshotResponse struct {
	Complete bool                 `json:"complete"`
	Seen     int                  `json:"seen"`
	Tracked  int                  `json:"tracked"`
	Updated  *time.Time           `json:"updated,omitempty"`
	Device   *protocol.DeviceInfo `json:"device,omitempty"`
	State    *protocol.State      `json:"state,omitempty"`
}

func (e *Exporter) handleSnapshot(c *gin.Context) {
	e.mu.RLock()
	state := e.state
	updated := e.updated
	e.mu.RUnlock()

	resp := snapshotResponse{Seen: state.Seen(), Tracked: protocol.TrackedFields}
	if !updated.IsZero() {
		resp.Updated = &updated
	}

	info, ok := state.Snapshot()
	if !ok {
		resp.State = &state
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.Complete = true
	resp.Device = &info
	c.JSON(http.StatusOK, resp)
}

// Observe applies one update to the state, the gauges and the live feed.
func (e *Exporter) Observe(u protocol.Update) {
	e.mu.Lock()
	e.state.Apply(u)
	e.updated = time.Now().UTC()
	e.mu.Unlock()

	e.sink.Observe(u)
	e.hub.Publish(u)
}

// Consume observes updates until the channel closes or ctx is done.
func (e *Exporter) Consume(ctx context.Context, updates <-chan protocol.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				logging.Info("Notification stream ended")
				return nil
			}
			e.Observe(u)
		}
	}
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (e *Exporter) Start() error {
	logging.Info("Exporter listening", zap.String("addr", e.srv.Addr))
	if err := e.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("exporter server failed: %w", err)
	}
	return nil
}

// Shutdown disconnects live feed subscribers and stops the HTTP server.
func (e *Exporter) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down exporter...")
	e.hub.Close()
	return e.srv.Shutdown(ctx)
}
