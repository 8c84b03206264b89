// Package config holds the relay configuration: defaults, file loading
// (YAML or TOML), validation and the JSON schema the host renders.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// Defaults.
const (
	DefaultPort         = 3001
	DefaultQueueSize    = 256
	DefaultEchoWindow   = 2 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultLogLevel     = "info"
)

// Validation errors.
var (
	ErrInvalidPort      = errors.New("invalid port")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidQueueSize = errors.New("invalid queue size")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidLogLevel  = errors.New("invalid log level")
)

// Config is the relay configuration. Field names follow the host's
// plugin properties (port, format) so a properties object decodes directly.
type Config struct {
	// Port is the TCP listen port. Ignored when Address is set.
	Port int `json:"port" yaml:"port" toml:"port"`

	// Format is the wire format written to every client.
	Format n2k.Format `json:"format" yaml:"format" toml:"format"`

	// Address overrides Port with a full listen address (host:port).
	Address string `json:"address,omitempty" yaml:"address" toml:"address"`

	// MaxLineLength bounds inbound lines; 0 disables the bound.
	MaxLineLength int `json:"maxLineLength,omitempty" yaml:"maxLineLength" toml:"maxLineLength"`

	// QueueSize is the per-session bus delivery queue.
	QueueSize int `json:"queueSize,omitempty" yaml:"queueSize" toml:"queueSize"`

	// WriteTimeout bounds each line write to a client.
	WriteTimeout time.Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout" toml:"writeTimeout"`

	// SuppressEcho stops a client from receiving its own republished frames.
	SuppressEcho bool          `json:"suppressEcho,omitempty" yaml:"suppressEcho" toml:"suppressEcho"`
	EchoWindow   time.Duration `json:"echoWindow,omitempty" yaml:"echoWindow" toml:"echoWindow"`

	WebSocket WebSocketConfig `json:"websocket" yaml:"websocket" toml:"websocket"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics" toml:"metrics"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery" toml:"discovery"`
	Capture   CaptureConfig   `json:"capture" yaml:"capture" toml:"capture"`
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
}

// WebSocketConfig enables the optional WebSocket listener.
type WebSocketConfig struct {
	Address string `json:"address,omitempty" yaml:"address" toml:"address"`
	Path    string `json:"path,omitempty" yaml:"path" toml:"path"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Address string `json:"address,omitempty" yaml:"address" toml:"address"`
}

// DiscoveryConfig controls mDNS advertisement of the listener.
type DiscoveryConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Instance  string `json:"instance,omitempty" yaml:"instance" toml:"instance"`
	Interface string `json:"interface,omitempty" yaml:"interface" toml:"interface"`
}

// CaptureConfig enables the protocol capture file.
type CaptureConfig struct {
	Path string `json:"path,omitempty" yaml:"path" toml:"path"`
}

// LogConfig controls operational logging.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level" toml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" toml:"pretty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:         DefaultPort,
		Format:       n2k.DefaultFormat,
		QueueSize:    DefaultQueueSize,
		WriteTimeout: DefaultWriteTimeout,
		EchoWindow:   DefaultEchoWindow,
		Log:          LogConfig{Level: DefaultLogLevel},
	}
}

// ListenAddress returns Address, or ":<Port>" when Address is empty.
func (c Config) ListenAddress() string {
	if c.Address != "" {
		return c.Address
	}
	return ":" + strconv.Itoa(c.Port)
}

// Validate checks the configuration. An unknown format is not an error:
// sessions with an unknown format simply write nothing.
func (c Config) Validate() error {
	if c.Address == "" && (c.Port < 0 || c.Port > 65535) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	for name, addr := range map[string]string{
		"address":           c.Address,
		"websocket.address": c.WebSocket.Address,
		"metrics.address":   c.Metrics.Address,
	} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidAddress, name, addr, err)
		}
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueueSize, c.QueueSize)
	}
	if c.MaxLineLength < 0 {
		return fmt.Errorf("%w: maxLineLength %d", ErrInvalidQueueSize, c.MaxLineLength)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: writeTimeout %s", ErrInvalidDuration, c.WriteTimeout)
	}
	if c.EchoWindow < 0 {
		return fmt.Errorf("%w: echoWindow %s", ErrInvalidDuration, c.EchoWindow)
	}
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return nil
}
