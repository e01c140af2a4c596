package protocol

import (
	"fmt"
	"strings"
)

// String renders the snapshot as indented plain text, one field per line.
func (d DeviceInfo) String() string {
	var b strings.Builder
	line := func(indent int, format string, args ...any) {
		b.WriteString(strings.Repeat("  ", indent))
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(0, "Battery: %d%%", uint8(d.BatteryPercent))
	line(1, "Charge time: %s", formatMinutes(d.Capacity.ChargeTime))
	line(1, "Discharge time: %s", formatMinutes(d.Capacity.DischargeTime))
	line(1, "Capacity level: %d%%", d.Capacity.BatteryPercent)

	line(0, "Power:")
	line(1, "Input: %dW", d.TotalPower.Input)
	line(1, "Output: %dW", d.TotalPower.Output)
	line(1, "Battery: %dW / %dW", d.Power.BatteryOne, d.Power.BatteryTwo)
	line(1, "Inverter: %dW / %dW", d.Power.InverterOne, d.Power.InverterTwo)

	line(0, "Outputs:")
	line(1, "AC: %dW", uint16(d.ACPower))
	line(1, "DC total: %dW", d.DCPower.Total)
	line(1, "USB-C: %dW / %dW", d.DCPower.TypeCOne, d.DCPower.TypeCTwo)
	line(1, "USB-A: %dW / %dW", d.DCPower.USBOne, d.DCPower.USBTwo)

	s := d.Status
	line(0, "Switches:")
	line(1, "AC: %s (%dHz, turbo %s)", onOff(s.ACSwitch), s.ACFrequencyHz, onOff(s.ACTurbo))
	line(1, "DC: %s", onOff(s.DCSwitch))
	line(1, "USB: %s", onOff(s.USBSwitch))
	line(1, "Flashlight: %s", d.Flashlight)

	line(0, "Settings:")
	line(1, "Low noise: %s", onOff(s.LowNoise))
	line(1, "Standby: %s", onOff(s.Standby))
	line(1, "Key lock: %s", onOff(s.Locking))
	line(1, "Key voice: %s", onOff(s.KeyVoice))
	line(1, "Warning voice: %s", onOff(s.WarningVoice))
	line(1, "Low battery warning: %s", onOff(s.LowBatteryWarning))
	line(1, "Battery health: %s", onOff(s.BatteryHealth))

	return b.String()
}

// FormatMinutes renders a charge or discharge estimate as "1h05m", or "n/a"
// for NoTimeEstimate.
func FormatMinutes(m uint16) string {
	return formatMinutes(m)
}
