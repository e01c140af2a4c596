package protocol

import (
	"context"
	"iter"
)

// DeviceInfo is a complete device snapshot: the latest value of every
// tracked update kind.
type DeviceInfo struct {
	Power          Power          `json:"power"`
	TotalPower     TotalPower     `json:"total_power"`
	ACPower        ACPower        `json:"ac_power"`
	Flashlight     FlashlightMode `json:"flashlight"`
	DCPower        DCPower        `json:"dc_power"`
	Status         Status         `json:"status"`
	BatteryPercent BatteryPercent `json:"battery_percent"`
	Capacity       Capacity       `json:"capacity"`
}

// State tracks the latest value of each update kind. A nil field has not
// been seen yet. The zero value is ready to use; it is not safe for
// concurrent use.
type State struct {
	Power          *Power          `json:"power,omitempty"`
	TotalPower     *TotalPower     `json:"total_power,omitempty"`
	ACPower        *ACPower        `json:"ac_power,omitempty"`
	Flashlight     *FlashlightMode `json:"flashlight,omitempty"`
	DCPower        *DCPower        `json:"dc_power,omitempty"`
	Status         *Status         `json:"status,omitempty"`
	BatteryPercent *BatteryPercent `json:"battery_percent,omitempty"`
	Capacity       *Capacity       `json:"capacity,omitempty"`
}

// Apply overwrites the field matching u and leaves the others untouched.
func (s *State) Apply(u Update) {
	switch v := u.(type) {
	case Power:
		s.Power = &v
	case TotalPower:
		s.TotalPower = &v
	case ACPower:
		s.ACPower = &v
	case FlashlightStatus:
		s.Flashlight = &v.Mode
	case DCPower:
		s.DCPower = &v
	case Status:
		s.Status = &v
	case BatteryPercent:
		s.BatteryPercent = &v
	case Capacity:
		s.Capacity = &v
	}
}

// Complete reports whether every field has been seen at least once.
func (s *State) Complete() bool {
	return s.Power != nil &&
		s.TotalPower != nil &&
		s.ACPower != nil &&
		s.Flashlight != nil &&
		s.DCPower != nil &&
		s.Status != nil &&
		s.BatteryPercent != nil &&
		s.Capacity != nil
}

// Seen returns how many of the tracked fields have been set.
func (s *State) Seen() int {
	n := 0
	for _, set := range []bool{
		s.Power != nil, s.TotalPower != nil, s.ACPower != nil, s.Flashlight != nil,
		s.DCPower != nil, s.Status != nil, s.BatteryPercent != nil, s.Capacity != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// TrackedFields is the number of fields a complete snapshot holds.
const TrackedFields = 8

// Snapshot returns the complete snapshot, or false while any field is
// still missing.
func (s *State) Snapshot() (DeviceInfo, bool) {
	if !s.Complete() {
		return DeviceInfo{}, false
	}
	return DeviceInfo{
		Power:          *s.Power,
		TotalPower:     *s.TotalPower,
		ACPower:        *s.ACPower,
		Flashlight:     *s.Flashlight,
		DCPower:        *s.DCPower,
		Status:         *s.Status,
		BatteryPercent: *s.BatteryPercent,
		Capacity:       *s.Capacity,
	}, true
}

// BuildDeviceInfo consumes updates in order until every field has been seen
// and returns the snapshot at that point. Later updates are not consumed.
// It returns false when the sequence ends first.
func BuildDeviceInfo(updates iter.Seq[Update]) (DeviceInfo, bool) {
	var state State
	for u := range updates {
		state.Apply(u)
		if info, ok := state.Snapshot(); ok {
			return info, true
		}
	}
	return DeviceInfo{}, false
}

// CollectDeviceInfo is BuildDeviceInfo over a channel. It returns
// ErrIncompleteSnapshot if the channel closes first and ctx.Err() if ctx is
// done first.
func CollectDeviceInfo(ctx context.Context, updates <-chan Update) (DeviceInfo, error) {
	var state State
	for {
		select {
		case <-ctx.Done():
			return DeviceInfo{}, ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return DeviceInfo{}, ErrIncompleteSnapshot
			}
			state.Apply(u)
			if info, ok := state.Snapshot(); ok {
				return info, nil
			}
		}
	}
}
