// Package discovery advertises relay listeners over mDNS/DNS-SD and finds
// them from clients.
//
// A relay registers the service type "_n2k._tcp" with TXT records naming
// its output format and software version:
//
//	format=actisense-n2k-ascii
//	version=1.0.0
//	ws=/n2k            (only when a WebSocket listener is enabled)
//
// Clients browse for the same type to find relays without configuring an
// address.
package discovery
