package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantIP     string
		wantPort   int
		wantPath   string
		wantDevice string
	}{
		{
			name: "bridge with IPv4 and TXT records",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "garage-bridge"},
				HostName:      "garage-bridge.local.",
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				Text:          []string{"path=/feed", "device=UGREEN GS1200"},
			},
			wantIP:     "192.168.1.50",
			wantPort:   8080,
			wantPath:   "/feed",
			wantDevice: "UGREEN GS1200",
		},
		{
			name: "no path record uses default",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "van"},
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: 80,
			wantPath: "/ws",
		},
		{
			name: "path without leading slash",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "van"},
				Port:          81,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.6")},
				Text:          []string{"path=ble"},
			},
			wantIP:   "10.0.0.6",
			wantPort: 81,
			wantPath: "/ble",
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "v6"},
				Port:          8080,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 8080,
			wantPath: "/ws",
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				Port:          8080,
			},
			wantNil: true,
		},
		{
			name: "no port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.7")},
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if bridge != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", bridge)
				}
				return
			}
			if bridge == nil {
				t.Fatal("parseServiceEntry() = nil, want bridge")
			}

			if bridge.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", bridge.IP, tt.wantIP)
			}
			if bridge.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", bridge.Port, tt.wantPort)
			}
			if bridge.Path != tt.wantPath {
				t.Errorf("Path = %v, want %v", bridge.Path, tt.wantPath)
			}
			if bridge.Device != tt.wantDevice {
				t.Errorf("Device = %v, want %v", bridge.Device, tt.wantDevice)
			}
			if time.Since(bridge.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", bridge.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_InstanceFallsBackToHostname(t *testing.T) {
	bridge := parseServiceEntry(&zeroconf.ServiceEntry{
		HostName: "esp32-bridge.local.",
		Port:     80,
		AddrIPv4: []net.IP{net.ParseIP("192.168.4.16")},
	})
	if bridge == nil {
		t.Fatal("parseServiceEntry() = nil, want bridge")
	}
	if bridge.Instance != "esp32-bridge.local." {
		t.Errorf("Instance = %q, want hostname", bridge.Instance)
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "van"},
		Port:          8080,
		AddrIPv4:      []net.IP{net.ParseIP("192.168.4.16")},
		Text:          []string{"path=/ws", "device=GS1200", "flag", "fw=1.2=beta"},
	}

	bridge := parseServiceEntry(entry)
	if bridge == nil {
		t.Fatal("parseServiceEntry() = nil, want bridge")
	}

	expectedMetadata := map[string]string{
		"path":   "/ws",
		"device": "GS1200",
		"flag":   "", // Key without value
		"fw":     "1.2=beta",
	}

	if len(bridge.Metadata) != len(expectedMetadata) {
		t.Errorf("Metadata has %d entries, want %d", len(bridge.Metadata), len(expectedMetadata))
	}
	for key, expectedValue := range expectedMetadata {
		if got := bridge.GetMetadata(key); got != expectedValue {
			t.Errorf("GetMetadata(%q) = %q, want %q", key, got, expectedValue)
		}
	}
	if got := bridge.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
}

func TestBridge_URL(t *testing.T) {
	tests := []struct {
		name   string
		bridge *Bridge
		want   string
	}{
		{"ipv4", &Bridge{IP: "192.168.1.50", Port: 8080, Path: "/ws"}, "ws://192.168.1.50:8080/ws"},
		{"custom path", &Bridge{IP: "10.0.0.5", Port: 80, Path: "/feed"}, "ws://10.0.0.5:80/feed"},
		{"empty path", &Bridge{IP: "10.0.0.5", Port: 80}, "ws://10.0.0.5:80/ws"},
		{"ipv6", &Bridge{IP: "fe80::1", Port: 8080, Path: "/ws"}, "ws://[fe80::1]:8080/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bridge.URL(); got != tt.want {
				t.Errorf("URL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBridge_String(t *testing.T) {
	b := &Bridge{Instance: "van", Device: "GS1200", IP: "10.0.0.5", Port: 8080}
	if got, want := b.String(), "Bridge van (GS1200) at 10.0.0.5:8080"; got != want {
		t.Errorf("String() = %v, want %v", got, want)
	}

	b.Device = ""
	if got, want := b.String(), "Bridge van (unknown station) at 10.0.0.5:8080"; got != want {
		t.Errorf("String() = %v, want %v", got, want)
	}
}

func TestMatchesDevice(t *testing.T) {
	b := &Bridge{Device: "UGREEN GS1200"}

	tests := []struct {
		device string
		want   bool
	}{
		{"", true},
		{"ugreen", true},
		{"GS1200", true},
		{"jackery", false},
	}

	for _, tt := range tests {
		if got := matchesDevice(b, tt.device); got != tt.want {
			t.Errorf("matchesDevice(%q) = %v, want %v", tt.device, got, tt.want)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

// Note: live mDNS browsing needs a network with a bridge on it and is not
// covered here.
