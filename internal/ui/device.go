package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/powerroam/powerroam/internal/protocol"
)

// batteryBarWidth is the number of cells in the battery gauge.
const batteryBarWidth = 10

// TwoColumnWidth is the terminal width from which sections are laid out in
// pairs.
const TwoColumnWidth = 80

// Section is a titled box of key/value rows.
type Section struct {
	Title string
	Rows  []Param
}

// Render draws the section as a rounded box of the given outer width.
func (s Section) Render(width int) string {
	lines := []string{SectionTitleStyle.Render(s.Title)}
	for _, row := range s.Rows {
		lines = append(lines, FieldKeyStyle.Render(row.Key)+FieldValueStyle.Render(row.Value))
	}
	return BoxStyle(width).Render(strings.Join(lines, "\n"))
}

// DeviceSections splits a snapshot into the sections shown by status.
func DeviceSections(info protocol.DeviceInfo) []Section {
	st := info.Status
	return []Section{
		{
			Title: "Battery",
			Rows: []Param{
				{"Level", BatteryBar(uint8(info.BatteryPercent))},
				{"Charge time", protocol.FormatMinutes(info.Capacity.ChargeTime)},
				{"Discharge time", protocol.FormatMinutes(info.Capacity.DischargeTime)},
				{"Health", Switch(st.BatteryHealth)},
			},
		},
		{
			Title: "Power",
			Rows: []Param{
				{"Input", watts(info.TotalPower.Input)},
				{"Output", watts(info.TotalPower.Output)},
				{"Battery", watts(info.Power.BatteryOne) + " / " + watts(info.Power.BatteryTwo)},
				{"Inverter", watts(info.Power.InverterOne) + " / " + watts(info.Power.InverterTwo)},
			},
		},
		{
			Title: "Outputs",
			Rows: []Param{
				{"AC", watts(uint16(info.ACPower))},
				{"DC total", watts(info.DCPower.Total)},
				{"USB-C", watts(info.DCPower.TypeCOne) + " / " + watts(info.DCPower.TypeCTwo)},
				{"USB-A", watts(info.DCPower.USBOne) + " / " + watts(info.DCPower.USBTwo)},
			},
		},
		{
			Title: "Switches",
			Rows: []Param{
				{"AC", Switch(st.ACSwitch) + fmt.Sprintf(" %dHz", st.ACFrequencyHz)},
				{"AC turbo", Switch(st.ACTurbo)},
				{"DC", Switch(st.DCSwitch)},
				{"USB", Switch(st.USBSwitch)},
				{"Flashlight", info.Flashlight.String()},
			},
		},
		{
			Title: "Settings",
			Rows: []Param{
				{"Low noise", Switch(st.LowNoise)},
				{"Standby", Switch(st.Standby)},
				{"Key lock", Switch(st.Locking)},
				{"Key voice", Switch(st.KeyVoice)},
				{"Warning voice", Switch(st.WarningVoice)},
				{"Low batt. warn", Switch(st.LowBatteryWarning)},
			},
		},
	}
}

// RenderDeviceInfo renders a complete snapshot as boxed sections. From
// TwoColumnWidth on, sections are placed side by side in pairs.
func RenderDeviceInfo(info protocol.DeviceInfo, width int) string {
	return RenderSections(DeviceSections(info), width)
}

// RenderSections lays out sections in one or two columns.
func RenderSections(sections []Section, width int) string {
	width = clampWidth(width)

	if width < TwoColumnWidth {
		boxes := make([]string, 0, len(sections))
		for _, s := range sections {
			boxes = append(boxes, s.Render(width))
		}
		return lipgloss.JoinVertical(lipgloss.Left, boxes...)
	}

	half := width / 2
	var rows []string
	for i := 0; i < len(sections); i += 2 {
		left := sections[i].Render(half)
		if i+1 == len(sections) {
			rows = append(rows, left)
			continue
		}
		right := sections[i+1].Render(width - half)
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// BatteryBar draws a gauge like "█████░░░░░  50%".
func BatteryBar(percent uint8) string {
	p := int(percent)
	if p > 100 {
		p = 100
	}
	filled := p * batteryBarWidth / 100

	color := SuccessColor
	if p <= LowBatteryPercent {
		color = WarningColor
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		OffStyle.Render(strings.Repeat("░", batteryBarWidth-filled))
	return fmt.Sprintf("%s %3d%%", bar, percent)
}

// Switch renders a boolean flag as a colored on/off marker.
func Switch(on bool) string {
	if on {
		return OnStyle.Render(OnMarker + " on")
	}
	return OffStyle.Render(OffMarker + " off")
}

func watts(w uint16) string {
	return fmt.Sprintf("%dW", w)
}
