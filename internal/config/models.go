package config

import (
	"strings"
	"time"
)

// CurrentVersion is the only config file version this build understands.
const CurrentVersion = 1

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Preferences *Preferences       `yaml:"preferences,omitempty"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by BLE address
}

// Device is what we remember about a station seen during a scan or connect.
type Device struct {
	Name     string    `yaml:"name,omitempty"`      // Advertised local name
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last scan or connection time
}

// Preferences are defaults for command line flags. Zero values mean "use the
// built in default".
type Preferences struct {
	DeviceName   string        `yaml:"device_name,omitempty"`   // Name substring matched when scanning
	Transport    string        `yaml:"transport,omitempty"`     // ble, bridge, serial or replay
	BridgeURL    string        `yaml:"bridge_url,omitempty"`    // ws://host:port/ws
	SerialPort   string        `yaml:"serial_port,omitempty"`   // e.g. /dev/ttyUSB0
	BaudRate     int           `yaml:"baud_rate,omitempty"`     // Serial bridge baud rate
	ExporterPort int           `yaml:"exporter_port,omitempty"` // Metrics/HTTP port
	ScanTimeout  time.Duration `yaml:"scan_timeout,omitempty"`  // e.g. "30s"
	NotifyUUID   string        `yaml:"notify_uuid,omitempty"`   // Overrides notify characteristic discovery
	WriteUUID    string        `yaml:"write_uuid,omitempty"`    // Overrides write characteristic discovery
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Preferences: &Preferences{},
		Devices:     make(map[string]*Device),
	}
}

// normalizeAddress makes lookups independent of the case the platform
// reports addresses in.
func normalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// GetDevice retrieves device metadata by BLE address.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(address string) *Device {
	return r.Devices[normalizeAddress(address)]
}

// EnsureDevice returns the entry for address, creating an empty one if needed.
func (r *Registry) EnsureDevice(address string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	key := normalizeAddress(address)
	if device, exists := r.Devices[key]; exists {
		return device
	}

	device := &Device{}
	r.Devices[key] = device
	return device
}

// RecordSeen stamps a device as seen now. An empty name keeps the stored one.
func (r *Registry) RecordSeen(address, name string) {
	device := r.EnsureDevice(address)
	device.LastSeen = time.Now()
	if name != "" {
		device.Name = name
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(address, nickname string) {
	r.EnsureDevice(address).Nickname = nickname
}

// DisplayName returns the nickname, then the advertised name, then the
// address itself.
func (r *Registry) DisplayName(address string) string {
	device := r.GetDevice(address)
	switch {
	case device == nil:
		return address
	case device.Nickname != "":
		return device.Nickname
	case device.Name != "":
		return device.Name
	default:
		return address
	}
}
