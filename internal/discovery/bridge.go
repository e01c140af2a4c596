package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge represents a discovered BLE-to-WebSocket bridge.
type Bridge struct {
	// Instance is the mDNS service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "powerroam-bridge.local.")
	Hostname string

	IP   string
	Port int

	// Path is the WebSocket path from the "path" TXT record
	Path string

	// Device is the attached station from the "device" TXT record, if any
	Device string

	// Metadata holds every TXT record as key/value
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable description of the bridge
func (b *Bridge) String() string {
	device := b.Device
	if device == "" {
		device = "unknown station"
	}
	return fmt.Sprintf("Bridge %s (%s) at %s:%d", b.Instance, device, b.IP, b.Port)
}

// URL returns the WebSocket URL of the bridge feed.
func (b *Bridge) URL() string {
	path := b.Path
	if path == "" {
		path = DefaultPath
	}
	return "ws://" + net.JoinHostPort(b.IP, strconv.Itoa(b.Port)) + path
}

// GetMetadata returns a TXT record value, or "" when absent.
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
