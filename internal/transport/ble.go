package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/powerroam/powerroam/internal/logging"
)

// DefaultDeviceName is the advertised name prefix of PowerRoam stations.
const DefaultDeviceName = "ugreen gs"

// DefaultScanTimeout bounds how long DialBLE scans for the station.
const DefaultScanTimeout = 30 * time.Second

var (
	adapter     = bluetooth.DefaultAdapter
	enableOnce  sync.Once
	errEnabling error
)

func enableAdapter() error {
	enableOnce.Do(func() {
		errEnabling = adapter.Enable()
	})
	if errEnabling != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %w", errEnabling)
	}
	return nil
}

// BLEOptions configures DialBLE.
type BLEOptions struct {
	// DeviceName is matched as a substring of the advertised local name.
	DeviceName  string
	ScanTimeout time.Duration

	// NotifyUUID and WriteUUID pin the characteristics. When empty, the
	// first characteristic that accepts notifications is used for
	// notifications and another characteristic of the same service for
	// writes.
	NotifyUUID string
	WriteUUID  string
}

// Peripheral is a station seen during a scan.
type Peripheral struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	RSSI    int16  `json:"rssi"`
}

// ScanDevices scans until ctx is done and returns every peripheral whose
// local name contains filter, deduplicated by address.
func ScanDevices(ctx context.Context, filter string) ([]Peripheral, error) {
	if err := enableAdapter(); err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		seen  = map[string]int{}
		found []Peripheral
	)

	errc := make(chan error, 1)
	go func() {
		errc <- adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if !matchName(name, filter) {
				return
			}
			addr := result.Address.String()

			mu.Lock()
			defer mu.Unlock()
			if i, ok := seen[addr]; ok {
				found[i].RSSI = result.RSSI
				return
			}
			seen[addr] = len(found)
			found = append(found, Peripheral{Name: name, Address: addr, RSSI: result.RSSI})
			logging.Debug("Found station", zap.String("name", name), zap.String("address", addr))
		})
	}()

	select {
	case err := <-errc:
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
	case <-ctx.Done():
		_ = adapter.StopScan()
		if err := <-errc; err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

// findDevice scans until the first peripheral matching name appears.
func findDevice(ctx context.Context, name string) (bluetooth.ScanResult, error) {
	results := make(chan bluetooth.ScanResult, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !matchName(result.LocalName(), name) {
				return
			}
			select {
			case results <- result:
				_ = a.StopScan()
			default:
			}
		})
	}()

	select {
	case result := <-results:
		<-errc
		return result, nil
	case err := <-errc:
		if err != nil {
			return bluetooth.ScanResult{}, fmt.Errorf("scan failed: %w", err)
		}
		select {
		case result := <-results:
			return result, nil
		default:
			return bluetooth.ScanResult{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
		}
	case <-ctx.Done():
		_ = adapter.StopScan()
		<-errc
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return bluetooth.ScanResult{}, fmt.Errorf("%w: no device named %q within scan timeout", ErrDeviceNotFound, name)
		}
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func matchName(localName, filter string) bool {
	if localName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(localName), strings.ToLower(filter))
}

// BLELink talks to a station over Bluetooth LE.
type BLELink struct {
	device  bluetooth.Device
	notify  bluetooth.DeviceCharacteristic
	write   bluetooth.DeviceCharacteristic
	name    string
	address string

	mu         sync.Mutex
	sub        *fanout
	subscribed bool
	closed     bool
	done       chan struct{}
}

func newBLELink(name, address string) *BLELink {
	return &BLELink{
		name:    name,
		address: address,
		sub:     newFanout(address),
		done:    make(chan struct{}),
	}
}

// DialBLE scans for the station, connects and enables notifications.
// Notifications that arrive before Notifications is called are held for the
// subscriber, so the station's stale first buffer is always delivered first.
func DialBLE(ctx context.Context, opts BLEOptions) (*BLELink, error) {
	if opts.DeviceName == "" {
		opts.DeviceName = DefaultDeviceName
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	if err := enableAdapter(); err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, opts.ScanTimeout)
	defer cancel()

	logging.Info("Scanning for station", zap.String("device_name", opts.DeviceName))
	result, err := findDevice(scanCtx, opts.DeviceName)
	if err != nil {
		return nil, err
	}

	link := newBLELink(result.LocalName(), result.Address.String())
	logging.Info("Found station, connecting",
		zap.String("name", link.name),
		zap.String("address", link.address),
	)

	link.device, err = adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", link.address, err)
	}

	if err := link.setupCharacteristics(opts); err != nil {
		_ = link.device.Disconnect()
		return nil, err
	}
	return link, nil
}

func (l *BLELink) setupCharacteristics(opts BLEOptions) error {
	services, err := l.device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("failed to discover services: %w", err)
	}

	var (
		notifyFound, writeFound bool
		notifySiblings          []bluetooth.DeviceCharacteristic
	)
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			logging.Debug("Skipping service", zap.String("service", svc.UUID().String()), zap.Error(err))
			continue
		}
		for i, c := range chars {
			if !writeFound && opts.WriteUUID != "" && uuidMatches(opts.WriteUUID, c.UUID()) {
				l.write, writeFound = c, true
			}
			if notifyFound {
				continue
			}
			if opts.NotifyUUID != "" && !uuidMatches(opts.NotifyUUID, c.UUID()) {
				continue
			}
			if err := c.EnableNotifications(l.dispatch); err != nil {
				logging.Debug("Characteristic rejected notifications",
					zap.String("characteristic", c.UUID().String()),
					zap.Error(err),
				)
				continue
			}
			l.notify, notifyFound = c, true
			notifySiblings = append(append([]bluetooth.DeviceCharacteristic{}, chars[:i]...), chars[i+1:]...)
		}
	}

	if !notifyFound {
		return fmt.Errorf("%w: no notify characteristic", ErrNoCharacteristic)
	}
	if !writeFound {
		if opts.WriteUUID != "" {
			return fmt.Errorf("%w: write characteristic %s", ErrNoCharacteristic, opts.WriteUUID)
		}
		l.write = l.notify
		if len(notifySiblings) > 0 {
			l.write = notifySiblings[0]
		}
	}

	logging.Info("Characteristics ready",
		zap.String("notify", l.notify.UUID().String()),
		zap.String("write", l.write.UUID().String()),
	)
	return nil
}

func uuidMatches(configured string, u bluetooth.UUID) bool {
	want, err := bluetooth.ParseUUID(configured)
	if err != nil {
		return strings.EqualFold(configured, u.String())
	}
	return want == u
}

// dispatch runs on the Bluetooth stack's goroutine.
func (l *BLELink) dispatch(buf []byte) {
	data := append([]byte(nil), buf...)
	logging.LogNotification(l.address, data)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.subscribed {
		l.sub.hold(data)
		return
	}
	l.sub.send(data)
}

// Name returns the advertised name of the connected station.
func (l *BLELink) Name() string { return l.name }

// Address returns the Bluetooth address of the connected station.
func (l *BLELink) Address() string { return l.address }

// Notifications implements Link.
func (l *BLELink) Notifications(ctx context.Context) (<-chan []byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.subscribed {
		return nil, ErrAlreadySubscribed
	}
	l.subscribed = true
	sub := l.sub

	go func() {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			sub.close()
			l.mu.Unlock()
		case <-l.done:
		}
	}()
	return sub.ch, nil
}

// Write implements Link using write-without-response.
func (l *BLELink) Write(ctx context.Context, frame []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := l.write.WriteWithoutResponse(frame); err != nil {
		return fmt.Errorf("failed to write characteristic: %w", err)
	}
	logging.LogWrite(l.address, frame)
	return nil
}

// Close disconnects from the station and ends the notification channel.
func (l *BLELink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.sub.close()
	l.mu.Unlock()

	if err := l.device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	logging.Info("Disconnected", zap.String("address", l.address))
	return nil
}
