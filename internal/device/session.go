// Package device turns a transport link into a stream of decoded updates and
// implements the one-shot operations built on it: reading a full status
// snapshot and querying or setting the flashlight.
package device

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/protocol"
	"github.com/powerroam/powerroam/internal/transport"
)

// ErrStreamEnded is returned when the link closes before the requested
// update arrives.
var ErrStreamEnded = errors.New("notification stream ended")

// Observer receives the per-record outcome counts of every decoded
// notification.
type Observer interface {
	ObserveNotification(protocol.Tally)
}

// Session decodes notifications from one link. Updates, Status and
// Flashlight each subscribe to the link, so only one of them may run per
// Session.
type Session struct {
	link     transport.Link
	observer Observer
}

// Option configures a Session.
type Option func(*Session)

// WithObserver reports per-notification tallies to o.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// NewSession wraps link.
func NewSession(link transport.Link, opts ...Option) *Session {
	s := &Session{link: link}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Updates subscribes to the link and returns decoded updates in wire order.
//
// The first notification after subscribing is a stale buffer the station
// replays on every subscription and is skipped. The channel closes when the
// link ends or ctx is done.
func (s *Session) Updates(ctx context.Context) (<-chan protocol.Update, error) {
	notifications, err := s.link.Notifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan protocol.Update, 16)
	go func() {
		defer close(out)

		first := true
		for buf := range notifications {
			if first {
				first = false
				logging.Debug("Skipping first notification", zap.Int("length", len(buf)))
				continue
			}

			updates, tally, err := protocol.DecodeNotificationTally(buf)
			if s.observer != nil {
				s.observer.ObserveNotification(tally)
			}
			if err != nil {
				// checksum failures were already logged at warn by the decoder
				logging.Debug("Notification had undecodable records",
					zap.Int("decoded", tally.Decoded),
					zap.Error(err),
				)
			}

			for _, u := range updates {
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Status collects updates until every field of the snapshot has been seen.
func (s *Session) Status(ctx context.Context) (protocol.DeviceInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := s.Updates(ctx)
	if err != nil {
		return protocol.DeviceInfo{}, err
	}

	info, err := protocol.CollectDeviceInfo(ctx, updates)
	if err != nil {
		return protocol.DeviceInfo{}, fmt.Errorf("could not collect device info: %w", err)
	}
	return info, nil
}

// Flashlight waits for the next flashlight status report.
func (s *Session) Flashlight(ctx context.Context) (protocol.FlashlightMode, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := s.Updates(ctx)
	if err != nil {
		return 0, err
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return 0, fmt.Errorf("waiting for flashlight status: %w", ErrStreamEnded)
			}
			if fs, ok := u.(protocol.FlashlightStatus); ok {
				return fs.Mode, nil
			}
		}
	}
}

// SetFlashlight sends the command that switches the flashlight to mode.
func (s *Session) SetFlashlight(ctx context.Context, mode protocol.FlashlightMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", protocol.ErrInvalidFlashlightMode, uint8(mode))
	}
	if err := s.link.Write(ctx, protocol.BuildFlashlightRequest(mode)); err != nil {
		return fmt.Errorf("failed to set flashlight: %w", err)
	}
	logging.Info("Flashlight mode set", zap.String("mode", mode.String()))
	return nil
}
