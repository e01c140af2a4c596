package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
)

const (
	// ServiceType is the mDNS service bridges advertise
	ServiceType = "_powerroam._tcp"

	// ServiceDomain is the mDNS domain to browse
	ServiceDomain = "local."

	// DefaultScanTimeout is how long a scan listens for answers
	DefaultScanTimeout = 5 * time.Second

	// DefaultPath is the WebSocket path when the "path" TXT record is absent
	DefaultPath = "/ws"
)

// ErrBridgeNotFound is returned by WaitForBridge when the timeout expires.
var ErrBridgeNotFound = errors.New("bridge not found")

// Scanner browses mDNS for bridges.
type Scanner struct {
	Timeout time.Duration
}

// NewScanner creates a scanner with DefaultScanTimeout.
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// browse runs one mDNS browse until ctx ends and calls found for every new
// bridge. found returning false stops the browse early.
func (s *Scanner) browse(ctx context.Context, found func(*Bridge) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		seen := make(map[string]bool)
		for entry := range entries {
			bridge := parseServiceEntry(entry)
			if bridge == nil || seen[bridge.Instance] {
				continue
			}
			seen[bridge.Instance] = true
			logging.Debug("Bridge discovered",
				zap.String("instance", bridge.Instance),
				zap.String("url", bridge.URL()))
			if !found(bridge) {
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse has shut down
	<-done
	return nil
}

// ScanForBridges listens for the whole timeout and returns every bridge
// that answered.
func (s *Scanner) ScanForBridges(ctx context.Context) ([]*Bridge, error) {
	bridges := make([]*Bridge, 0)
	err := s.browse(ctx, func(b *Bridge) bool {
		bridges = append(bridges, b)
		return true
	})
	if err != nil {
		return nil, err
	}
	return bridges, nil
}

// WaitForBridge returns the first bridge whose attached device name
// contains device (case-insensitive). An empty device matches any bridge.
func (s *Scanner) WaitForBridge(ctx context.Context, device string) (*Bridge, error) {
	var match *Bridge
	err := s.browse(ctx, func(b *Bridge) bool {
		if matchesDevice(b, device) {
			match = b
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		if device == "" {
			return nil, fmt.Errorf("%w within %s", ErrBridgeNotFound, s.Timeout)
		}
		return nil, fmt.Errorf("%w for device %q within %s", ErrBridgeNotFound, device, s.Timeout)
	}
	return match, nil
}

func matchesDevice(b *Bridge, device string) bool {
	if device == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Device), strings.ToLower(device))
}

// parseServiceEntry converts an mDNS answer into a Bridge. Answers without
// an address or port are dropped.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		k, v, _ := strings.Cut(txt, "=")
		metadata[k] = v
	}

	path := metadata["path"]
	if path == "" {
		path = DefaultPath
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	instance := entry.Instance
	if instance == "" {
		instance = entry.HostName
	}

	return &Bridge{
		Instance:     instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Path:         path,
		Device:       metadata["device"],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// DiscoverBridges scans with the given timeout.
func DiscoverBridges(ctx context.Context, timeout time.Duration) ([]*Bridge, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.ScanForBridges(ctx)
}

// FindBridge waits for a bridge attached to device with the default timeout.
func FindBridge(ctx context.Context, device string) (*Bridge, error) {
	return NewScanner().WaitForBridge(ctx, device)
}
