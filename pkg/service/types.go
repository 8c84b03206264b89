package service

import (
	"errors"

	"github.com/n2k-relay/n2k-go/pkg/discovery"
)

// Service errors.
var (
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is starting up.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Advertiser publishes the listener on the local network.
// *discovery.Advertiser satisfies it.
type Advertiser interface {
	Advertise(info discovery.RelayInfo) error
	Stop()
}

var _ Advertiser = (*discovery.Advertiser)(nil)
