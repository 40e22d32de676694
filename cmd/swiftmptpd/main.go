// swiftmptpd is the Swift/MPTP transport daemon: it owns the raw IP
// socket, the process-wide port table, and the admin HTTP surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mptpnet/swiftmptp/internal/config"
	"github.com/mptpnet/swiftmptp/internal/ipio"
	swiftmetrics "github.com/mptpnet/swiftmptp/internal/metrics"
	"github.com/mptpnet/swiftmptp/internal/server"
	"github.com/mptpnet/swiftmptp/internal/swift"
	appversion "github.com/mptpnet/swiftmptp/internal/version"
)

// shutdownTimeout is the maximum time to wait for the admin HTTP server to
// drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// flightRecorderMinAge is the minimum window age for the flight recorder.
// Captures the last 500ms of execution traces for debugging transport
// failures.
const flightRecorderMinAge = 500 * time.Millisecond

// flightRecorderMaxBytes is the upper bound on flight recorder window size.
const flightRecorderMaxBytes = 2 * 1024 * 1024 // 2 MiB

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("swiftmptpd starting",
		slog.String("version", appversion.Version),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	fr := startFlightRecorder(logger)

	reg := prometheus.NewRegistry()
	collector := swiftmetrics.NewCollector(reg)

	table := swift.NewPortTable()

	if err := runServers(cfg, table, collector, reg, logger, *configPath, logLevel, fr); err != nil {
		logger.Error("swiftmptpd exited with error",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger.Info("swiftmptpd stopped")
	return 0
}

// runServers sets up and runs the raw-IP receive loop and the admin HTTP
// server (which also serves /metrics) using an errgroup with signal-aware
// context for graceful shutdown.
func runServers(
	cfg *config.Config,
	table *swift.PortTable,
	collector *swiftmetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	fr *trace.FlightRecorder,
) error {
	localAddr, err := netip.ParseAddr(cfg.Swift.LocalAddr)
	if err != nil {
		return fmt.Errorf("parse swift.local_addr %q: %w", cfg.Swift.LocalAddr, err)
	}

	conn, err := ipio.NewRawConn(localAddr)
	if err != nil {
		return fmt.Errorf("open raw IP socket: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close raw socket", slog.String("error", closeErr.Error()))
		}
	}()

	ipLayer := ipio.NewIPLayer(conn)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	recv := ipio.NewReceiver(conn, table, collector, logger)
	g.Go(func() error {
		return recv.Run(gCtx)
	})

	adminSrv := newAdminServer(cfg.Admin, table, logger, reg)
	startHTTPServers(gCtx, g, cfg, adminSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, logger)

	sockets, err := reconcileDeclarativeSockets(cfg, table, ipLayer, collector, logger)
	if err != nil {
		return fmt.Errorf("reconcile declarative sockets: %w", err)
	}
	defer releaseAll(sockets)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, sockets, logger, fr, adminSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// startHTTPServers registers the admin HTTP server goroutine.
func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	adminSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("admin server listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
	})
}

// startDaemonGoroutines registers the watchdog and SIGHUP reload goroutines.
func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, logger)
		return nil
	})
}

// -------------------------------------------------------------------------
// Systemd Integration — sd_notify + watchdog
// -------------------------------------------------------------------------

// notifyReady sends READY=1 to systemd, indicating the daemon has
// completed initialization and is ready to serve.
func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness",
			slog.String("error", err.Error()),
		)
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

// notifyStopping sends STOPPING=1 to systemd, indicating the daemon
// is beginning graceful shutdown.
func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping",
			slog.String("error", err.Error()),
		)
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd. The interval
// is WatchdogSec/2 as recommended by the systemd documentation. If the
// watchdog is not configured, the goroutine exits immediately.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive",
					slog.String("error", wdErr.Error()),
				)
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload — log level only
// -------------------------------------------------------------------------

// handleSIGHUP listens for SIGHUP signals and reloads the dynamic log
// level. Declarative sockets are not re-reconciled on reload: a socket's
// lifecycle (src/dst/daddr) is fixed at bind/connect time, so changing the
// sockets list requires a restart. Blocks until the context is cancelled.
func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading log level")
			reloadLogLevel(configPath, logLevel, logger)
		}
	}
}

// reloadLogLevel loads a fresh configuration from the given path and
// updates the dynamic log level. Errors during reload are logged but do
// not stop the daemon.
func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()),
		)
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
}

// -------------------------------------------------------------------------
// Declarative Sockets — spec.md / SPEC_FULL.md section A.3
// -------------------------------------------------------------------------

// reconcileDeclarativeSockets creates one socket per entry in cfg.Sockets,
// binding or connecting it according to whether a peer is declared.
func reconcileDeclarativeSockets(
	cfg *config.Config,
	table *swift.PortTable,
	ip swift.IPLayer,
	collector *swiftmetrics.Collector,
	logger *slog.Logger,
) ([]*swift.Socket, error) {
	sockets := make([]*swift.Socket, 0, len(cfg.Sockets))

	for _, sc := range cfg.Sockets {
		sock := swift.NewSocket(table, ip,
			swift.WithMetrics(collector),
			swift.WithQueueByteCap(cfg.Swift.QueueByteCap),
		)

		if sc.Connect != "" {
			peer, err := sc.PeerAddrPort()
			if err != nil {
				releaseAll(sockets)
				return nil, fmt.Errorf("socket port %d: %w", sc.Port, err)
			}

			peerPort := peer.Port()
			if peerPort < swift.MinPort || peerPort > swift.MaxPort {
				releaseAll(sockets)
				return nil, fmt.Errorf("socket port %d: peer port %d out of range: %w",
					sc.Port, peerPort, swift.ErrInvalidArgument)
			}

			rec := swift.AddressRecord{Dests: []swift.Destination{{Addr: peer.Addr(), Port: uint8(peerPort)}}}
			if err := sock.Connect(rec); err != nil {
				releaseAll(sockets)
				return nil, fmt.Errorf("connect declarative socket to %s: %w", peer, err)
			}
		} else {
			rec := swift.AddressRecord{Dests: []swift.Destination{{Port: sc.Port}}}
			if err := sock.Bind(rec); err != nil {
				releaseAll(sockets)
				return nil, fmt.Errorf("bind declarative socket on port %d: %w", sc.Port, err)
			}
		}

		collector.SocketBound()
		logger.Info("declarative socket ready",
			slog.Int("port", int(sc.Port)),
			slog.String("connect", sc.Connect),
		)

		sockets = append(sockets, sock)
	}

	return sockets, nil
}

func releaseAll(sockets []*swift.Socket) {
	for _, sock := range sockets {
		sock.Release()
	}
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

// gracefulShutdown performs an orderly shutdown: signals systemd, releases
// every declarative socket (draining and freeing its receive queue), stops
// the flight recorder, then shuts down HTTP servers.
func gracefulShutdown(
	ctx context.Context,
	sockets []*swift.Socket,
	logger *slog.Logger,
	fr *trace.FlightRecorder,
	servers ...*http.Server,
) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	releaseAll(sockets)

	if fr != nil {
		fr.Stop()
		logger.Debug("flight recorder stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Flight Recorder — Go 1.26 runtime/trace
// -------------------------------------------------------------------------

// startFlightRecorder initializes and starts the Go 1.26 FlightRecorder
// for post-mortem debugging of transport failures. The recorder maintains
// a rolling window of execution trace data that can be dumped on demand.
func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})

	if err := fr.Start(); err != nil {
		logger.Warn("failed to start flight recorder",
			slog.String("error", err.Error()),
		)
		return nil
	}

	logger.Info("flight recorder started",
		slog.Duration("min_age", flightRecorderMinAge),
		slog.Uint64("max_bytes", flightRecorderMaxBytes),
	)

	return fr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

// listenAndServe creates a TCP listener using the ListenConfig (for noctx
// compliance) and serves HTTP requests until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newAdminServer wraps the gin engine returned by server.New in an
// *http.Server so it can be served and shut down by runServers.
func newAdminServer(cfg config.AdminConfig, table *swift.PortTable, logger *slog.Logger, reg *prometheus.Registry) *http.Server {
	engine := server.New(table, logger, promHandlerFor(reg))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func promHandlerFor(reg *prometheus.Registry) http.Handler {
	return server.NewPrometheusHandlerFor(reg)
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
