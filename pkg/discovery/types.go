package discovery

import (
	"errors"
	"time"
)

// Service identifiers.
const (
	// ServiceType is the DNS-SD service type of a relay listener.
	ServiceType = "_n2k._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultInstance is the instance name when none is configured.
	DefaultInstance = "N2K Relay"

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63

	// DefaultTTL is the record TTL advertised.
	DefaultTTL = 120 * time.Second
)

// TXT record keys.
const (
	TXTKeyFormat    = "format"
	TXTKeyVersion   = "version"
	TXTKeyWebSocket = "ws"
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInstanceNameTooLong = errors.New("invalid instance name")
	ErrInvalidPort         = errors.New("invalid port")
	ErrNotAdvertising      = errors.New("not advertising")
	ErrUnknownInterface    = errors.New("unknown network interface")
)

// RelayInfo describes a relay to advertise.
type RelayInfo struct {
	// Instance is the human-readable service instance name.
	Instance string

	// Port is the TCP listener port.
	Port int

	// Format is the output wire format of the listener.
	Format string

	// Version is the relay software version.
	Version string

	// WebSocketPath is set when a WebSocket listener is enabled.
	WebSocketPath string
}

// RelayService is a relay found by browsing.
type RelayService struct {
	Instance      string
	Host          string
	Port          int
	Addresses     []string
	Format        string
	Version       string
	WebSocketPath string
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertisement to one network interface.
	Interface string

	// TTL overrides DefaultTTL.
	TTL time.Duration
}

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	Interface string
}
