// Package server implements the admin HTTP API for swiftmptpd: a thin
// read-only adapter exposing port table state over gin, plus the
// Prometheus metrics endpoint.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mptpnet/swiftmptp/internal/swift"
)

// AdminServer exposes read-only inspection endpoints over the process's
// port table. Each handler delegates to swift.PortTable; the server adds
// no domain logic of its own.
type AdminServer struct {
	table  *swift.PortTable
	logger *slog.Logger
}

// socketView is the JSON shape of one bound socket (spec.md section 4.6:
// state is one of "fresh", "bound", "connected", "released").
type socketView struct {
	Port  uint8  `json:"port"`
	State string `json:"state"`
}

// New creates an AdminServer and returns the configured gin engine.
// metricsHandler may be nil, in which case /metrics is omitted.
func New(table *swift.PortTable, logger *slog.Logger, metricsHandler http.Handler) *gin.Engine {
	srv := &AdminServer{
		table:  table,
		logger: logger.With(slog.String("component", "server")),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), srv.requestLogger())

	engine.GET("/healthz", srv.handleHealthz)
	engine.GET("/sockets", srv.handleListSockets)
	engine.GET("/ports", srv.handleListPorts)

	if metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(metricsHandler))
	}

	return engine
}

// NewPrometheusHandler wraps promhttp's standard handler (against the
// default registerer) for mounting under New's metricsHandler argument.
func NewPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// NewPrometheusHandlerFor wraps promhttp's handler for a specific registry,
// for daemons that register their collectors against a private
// prometheus.Registry rather than the package-default one.
func NewPrometheusHandlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// requestLogger logs each request at debug level after it is handled,
// with its method, path, and response status as structured fields.
func (s *AdminServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		s.logger.Debug("admin request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
		)
	}
}

func (s *AdminServer) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListSockets returns every currently bound or connected socket.
func (s *AdminServer) handleListSockets(c *gin.Context) {
	infos := s.table.Snapshot()

	views := make([]socketView, 0, len(infos))
	for _, info := range infos {
		views = append(views, socketView{
			Port:  info.Port,
			State: info.State.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"sockets": views})
}

// handleListPorts returns the bound/free status of every port in the
// user-assignable range [swift.MinPort, swift.MaxPort].
func (s *AdminServer) handleListPorts(c *gin.Context) {
	infos := s.table.Snapshot()

	bound := make(map[uint8]bool, len(infos))
	for _, info := range infos {
		bound[info.Port] = true
	}

	type portView struct {
		Port  uint8 `json:"port"`
		Bound bool  `json:"bound"`
	}

	ports := make([]portView, 0, swift.MaxPort)
	for p := swift.MinPort; p <= swift.MaxPort; p++ {
		ports = append(ports, portView{Port: uint8(p), Bound: bound[uint8(p)]})
	}

	c.JSON(http.StatusOK, gin.H{"ports": ports})
}
