// Package config manages the swiftmptpd daemon configuration using
// koanf/v2.
//
// Supports YAML files and environment variables layered over defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete swiftmptpd configuration.
type Config struct {
	Admin   AdminConfig    `koanf:"admin"`
	Metrics MetricsConfig  `koanf:"metrics"`
	Log     LogConfig      `koanf:"log"`
	Swift   SwiftConfig    `koanf:"swift"`
	Sockets []SocketConfig `koanf:"sockets"`
}

// AdminConfig holds the admin HTTP API configuration.
type AdminConfig struct {
	// Addr is the admin API listen address (e.g., ":7143").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint settings. swiftmptpd
// serves metrics at GET /metrics on the admin listener (AdminConfig.Addr);
// it opens no separate metrics listener.
type MetricsConfig struct {
	// Addr is a metrics listen address (e.g., ":9100"). swiftmptpd only
	// logs it at startup; no listener is opened on it.
	Addr string `koanf:"addr"`
	// Path is a metrics URL path (e.g., "/metrics"). swiftmptpd does not
	// read it; the metrics route is always /metrics.
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// SwiftConfig holds process-wide transport defaults.
type SwiftConfig struct {
	// LocalAddr is the IPv4 address the raw IP socket binds to.
	LocalAddr string `koanf:"local_addr"`

	// QueueByteCap is the default per-socket receive queue byte bound
	// (spec.md section 4.5.1 step 6: "bounded by total bytes, not
	// datagram count").
	QueueByteCap int `koanf:"queue_byte_cap"`
}

// SocketConfig describes a declaratively pre-bound socket created on
// daemon startup.
type SocketConfig struct {
	// Port is the local port to bind, [1, 255]. A socket with Connect set
	// is not bound to Port; it gets an ephemeral local port on connect.
	Port uint8 `koanf:"port"`

	// Connect, if set, makes this a connected-mode socket to the given
	// "addr:port" peer instead of a plain bind.
	Connect string `koanf:"connect"`
}

// PeerAddrPort parses Connect as a netip.AddrPort, if set.
func (sc SocketConfig) PeerAddrPort() (netip.AddrPort, error) {
	if sc.Connect == "" {
		return netip.AddrPort{}, nil
	}

	ap, err := netip.ParseAddrPort(sc.Connect)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("parse socket connect %q: %w", sc.Connect, err)
	}

	return ap, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr: ":7143",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Swift: SwiftConfig{
			LocalAddr:    "0.0.0.0",
			QueueByteCap: 10 * 1024 * 1024,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for swiftmptpd configuration.
// Variables are named SWIFTMPTPD_<section>_<key>, e.g., SWIFTMPTPD_ADMIN_ADDR.
const envPrefix = "SWIFTMPTPD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (SWIFTMPTPD_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	SWIFTMPTPD_ADMIN_ADDR         -> admin.addr
//	SWIFTMPTPD_METRICS_ADDR       -> metrics.addr
//	SWIFTMPTPD_METRICS_PATH       -> metrics.path
//	SWIFTMPTPD_LOG_LEVEL          -> log.level
//	SWIFTMPTPD_LOG_FORMAT         -> log.format
//	SWIFTMPTPD_SWIFT_LOCAL_ADDR   -> swift.local_addr
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms SWIFTMPTPD_ADMIN_ADDR -> admin.addr.
// Strips the SWIFTMPTPD_ prefix, lowercases, and replaces the first _
// (the section separator) with ., so SWIFTMPTPD_SWIFT_LOCAL_ADDR maps to
// swift.local_addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":          defaults.Admin.Addr,
		"metrics.addr":        defaults.Metrics.Addr,
		"metrics.path":        defaults.Metrics.Path,
		"log.level":           defaults.Log.Level,
		"log.format":          defaults.Log.Format,
		"swift.local_addr":    defaults.Swift.LocalAddr,
		"swift.queue_byte_cap": defaults.Swift.QueueByteCap,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyAdminAddr indicates the admin API listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrInvalidLocalAddr indicates swift.local_addr does not parse as an
	// IPv4 address.
	ErrInvalidLocalAddr = errors.New("swift.local_addr must be a valid IPv4 address")

	// ErrInvalidQueueByteCap indicates the queue byte cap is not positive.
	ErrInvalidQueueByteCap = errors.New("swift.queue_byte_cap must be > 0")

	// ErrInvalidSocketPort indicates a declarative socket has a port
	// outside [1, 255].
	ErrInvalidSocketPort = errors.New("socket port must be in [1, 255]")

	// ErrDuplicateSocketPort indicates two declarative sockets bind the
	// same port.
	ErrDuplicateSocketPort = errors.New("duplicate socket port")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}

	localAddr, err := netip.ParseAddr(cfg.Swift.LocalAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLocalAddr, err)
	}
	if !localAddr.Is4() {
		return fmt.Errorf("%w: %s", ErrInvalidLocalAddr, localAddr)
	}

	if cfg.Swift.QueueByteCap <= 0 {
		return ErrInvalidQueueByteCap
	}

	if err := validateSockets(cfg.Sockets); err != nil {
		return err
	}

	return nil
}

// validateSockets checks each declarative socket entry for correctness.
func validateSockets(sockets []SocketConfig) error {
	seen := make(map[uint8]struct{}, len(sockets))

	for i, sc := range sockets {
		if sc.Port < 1 {
			return fmt.Errorf("sockets[%d]: %w", i, ErrInvalidSocketPort)
		}

		if _, err := sc.PeerAddrPort(); err != nil {
			return fmt.Errorf("sockets[%d]: %w", i, err)
		}

		if _, dup := seen[sc.Port]; dup {
			return fmt.Errorf("sockets[%d] port %d: %w", i, sc.Port, ErrDuplicateSocketPort)
		}
		seen[sc.Port] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
