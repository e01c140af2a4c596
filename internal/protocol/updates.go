package protocol

import (
	"fmt"
	"strings"
)

// Tag is the one-byte record discriminator.
type Tag byte

// Record tags (from BLE captures of the stock app session)
const (
	TagPower            Tag = 0x04
	TagCapacity         Tag = 0x09
	TagACPower          Tag = 0x0b
	TagDCPower          Tag = 0x0c
	TagTotalPower       Tag = 0x0f
	TagFlashlightStatus Tag = 0x13
	TagBatteryPercent   Tag = 0x15
	TagStatus           Tag = 0x16
)

// Minimum data lengths per tag. Shorter records are ignored.
const (
	minPowerLen      = 8
	minCapacityLen   = 24
	minACPowerLen    = 8
	minDCPowerLen    = 10
	minTotalPowerLen = 4
	minFlashlightLen = 1
	minBatteryLen    = 1
	minStatusLen     = 12
)

// String returns the update kind name for known tags.
func (t Tag) String() string {
	switch t {
	case TagPower:
		return "Power"
	case TagCapacity:
		return "Capacity"
	case TagACPower:
		return "AcPower"
	case TagDCPower:
		return "DcPower"
	case TagTotalPower:
		return "TotalPower"
	case TagFlashlightStatus:
		return "FlashlightStatus"
	case TagBatteryPercent:
		return "BatteryPercent"
	case TagStatus:
		return "Status"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

// Update is a decoded record. The set of implementations is closed: Power,
// Capacity, ACPower, DCPower, TotalPower, FlashlightStatus, BatteryPercent
// and Status. Consumers type-switch over them.
type Update interface {
	Tag() Tag
	String() string
	isUpdate()
}

// Power (0x04) - battery and inverter power in watts
type Power struct {
	BatteryOne  uint16 `json:"battery_one"`
	BatteryTwo  uint16 `json:"battery_two"`
	InverterOne uint16 `json:"inverter_one"`
	InverterTwo uint16 `json:"inverter_two"`
}

func (Power) Tag() Tag { return TagPower }
func (Power) isUpdate() {}

func (p Power) String() string {
	return fmt.Sprintf("Power{battery=%dW/%dW, inverter=%dW/%dW}",
		p.BatteryOne, p.BatteryTwo, p.InverterOne, p.InverterTwo)
}

// Capacity (0x09) - remaining time estimates and charge level.
// ChargeTime and DischargeTime are minutes; 0xFFFF means "not applicable".
type Capacity struct {
	ChargeTime     uint16 `json:"charge_time"`
	DischargeTime  uint16 `json:"discharge_time"`
	BatteryPercent uint8  `json:"battery_percent"`
}

func (Capacity) Tag() Tag { return TagCapacity }
func (Capacity) isUpdate() {}

func (c Capacity) String() string {
	return fmt.Sprintf("Capacity{charge=%s, discharge=%s, battery=%d%%}",
		formatMinutes(c.ChargeTime), formatMinutes(c.DischargeTime), c.BatteryPercent)
}

// NoTimeEstimate is the charge/discharge time sentinel for "not applicable".
const NoTimeEstimate = 0xFFFF

// ACPower (0x0b) - AC output power in watts
type ACPower uint16

func (ACPower) Tag() Tag { return TagACPower }
func (ACPower) isUpdate() {}

func (a ACPower) String() string { return fmt.Sprintf("AcPower{%dW}", uint16(a)) }

// DCPower (0x0c) - DC output power in watts per port
type DCPower struct {
	TypeCOne uint16 `json:"type_c_one"`
	TypeCTwo uint16 `json:"type_c_two"`
	USBOne   uint16 `json:"usb_one"`
	USBTwo   uint16 `json:"usb_two"`
	Total    uint16 `json:"total"`
}

func (DCPower) Tag() Tag { return TagDCPower }
func (DCPower) isUpdate() {}

func (d DCPower) String() string {
	return fmt.Sprintf("DcPower{usb-c=%dW/%dW, usb-a=%dW/%dW, total=%dW}",
		d.TypeCOne, d.TypeCTwo, d.USBOne, d.USBTwo, d.Total)
}

// TotalPower (0x0f) - total input and output power in watts
type TotalPower struct {
	Input  uint16 `json:"input"`
	Output uint16 `json:"output"`
}

func (TotalPower) Tag() Tag { return TagTotalPower }
func (TotalPower) isUpdate() {}

func (t TotalPower) String() string {
	return fmt.Sprintf("TotalPower{in=%dW, out=%dW}", t.Input, t.Output)
}

// FlashlightMode is the flashlight state. The byte values are the wire values.
type FlashlightMode uint8

const (
	FlashlightOff FlashlightMode = iota
	FlashlightLow
	FlashlightHigh
	FlashlightStrobe
	FlashlightSOS
)

// FlashlightModes lists every valid mode in wire order.
var FlashlightModes = []FlashlightMode{
	FlashlightOff, FlashlightLow, FlashlightHigh, FlashlightStrobe, FlashlightSOS,
}

func (m FlashlightMode) String() string {
	switch m {
	case FlashlightOff:
		return "Off"
	case FlashlightLow:
		return "Low"
	case FlashlightHigh:
		return "High"
	case FlashlightStrobe:
		return "Strobe"
	case FlashlightSOS:
		return "SOS"
	default:
		return fmt.Sprintf("FlashlightMode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the five known modes.
func (m FlashlightMode) Valid() bool {
	return m <= FlashlightSOS
}

// ParseFlashlightByte maps a wire byte to a mode.
func ParseFlashlightByte(b byte) (FlashlightMode, error) {
	m := FlashlightMode(b)
	if !m.Valid() {
		return 0, &InvalidValueError{
			Tag:   TagFlashlightStatus,
			Field: "mode",
			Value: b,
			err:   ErrInvalidFlashlightMode,
		}
	}
	return m, nil
}

// ParseFlashlightMode parses a mode name (case-insensitive), as typed on the
// command line.
func ParseFlashlightMode(s string) (FlashlightMode, error) {
	for _, m := range FlashlightModes {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (expected off, low, high, strobe or sos)", ErrInvalidFlashlightMode, s)
}

// MarshalText encodes the mode by name.
func (m FlashlightMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *FlashlightMode) UnmarshalText(text []byte) error {
	mode, err := ParseFlashlightMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// FlashlightStatus (0x13) - current flashlight mode
type FlashlightStatus struct {
	Mode FlashlightMode `json:"mode"`
}

func (FlashlightStatus) Tag() Tag { return TagFlashlightStatus }
func (FlashlightStatus) isUpdate() {}

func (f FlashlightStatus) String() string {
	return fmt.Sprintf("FlashlightStatus{%s}", f.Mode)
}

// BatteryPercent (0x15) - raw battery level byte
type BatteryPercent uint8

func (BatteryPercent) Tag() Tag { return TagBatteryPercent }
func (BatteryPercent) isUpdate() {}

func (b BatteryPercent) String() string { return fmt.Sprintf("BatteryPercent{%d%%}", uint8(b)) }

// Status (0x16) - switch and warning flags
type Status struct {
	LowNoise          bool  `json:"low_noise"`
	LowBatteryWarning bool  `json:"low_battery_warning"`
	USBSwitch         bool  `json:"usb_switch"`
	DCSwitch          bool  `json:"dc_switch"`
	ACFrequencyHz     uint8 `json:"ac_frequency_hz"`
	WarningVoice      bool  `json:"warning_voice"`
	ACTurbo           bool  `json:"ac_turbo"`
	ACSwitch          bool  `json:"ac_switch"`
	BatteryHealth     bool  `json:"battery_health"`
	Locking           bool  `json:"locking"`
	KeyVoice          bool  `json:"key_voice"`
	Standby           bool  `json:"standby"`
}

func (Status) Tag() Tag { return TagStatus }
func (Status) isUpdate() {}

func (s Status) String() string {
	return fmt.Sprintf("Status{ac=%s, dc=%s, usb=%s, ac_freq=%dHz, turbo=%s, low_noise=%s, standby=%s, locked=%s}",
		onOff(s.ACSwitch), onOff(s.DCSwitch), onOff(s.USBSwitch), s.ACFrequencyHz,
		onOff(s.ACTurbo), onOff(s.LowNoise), onOff(s.Standby), onOff(s.Locking))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatMinutes(m uint16) string {
	if m == NoTimeEstimate {
		return "n/a"
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}
