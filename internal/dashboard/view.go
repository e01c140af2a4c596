package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/powerroam/powerroam/internal/protocol"
	"github.com/powerroam/powerroam/internal/ui"
)

// View renders the header, the known fields and the help line.
func (m Model) View() string {
	header := ui.NewHeader("Live Dashboard", "powerroam watch",
		ui.Param{Key: "Device", Value: orDash(m.opts.Source)},
		ui.Param{Key: "Transport", Value: orDash(m.opts.Transport)},
		ui.Param{Key: "Status", Value: m.statusLine()},
	).SetWidth(m.width)

	parts := []string{
		header.Render(),
		ui.RenderSections(stateSections(&m.state, m.spinner.View()), m.width),
	}
	if m.notice != "" {
		parts = append(parts, NoticeStyle.Render(m.notice))
	}
	parts = append(parts, HelpStyle.Render(m.help.View(m.keys)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) statusLine() string {
	seen := fmt.Sprintf("%d/%d fields", m.state.Seen(), protocol.TrackedFields)
	switch {
	case m.ended:
		return StatusEndedStyle.Render("feed closed") + " · " + seen
	case m.count == 0:
		return StatusWaitingStyle.Render("waiting for data")
	case !m.state.Complete():
		return StatusWaitingStyle.Render("collecting") + " · " + seen
	default:
		return StatusLiveStyle.Render("live") + fmt.Sprintf(" · %d updates · last %s",
			m.count, m.lastUpdate.Format("15:04:05"))
	}
}

// stateSections mirrors ui.DeviceSections for a partially known state.
// Unknown values render as pending.
func stateSections(s *protocol.State, pending string) []ui.Section {
	field := func(known bool, render func() string) string {
		if !known {
			return pending
		}
		return render()
	}
	pair := func(a, b uint16) string { return watts(a) + " / " + watts(b) }

	st := s.Status
	flag := func(get func(protocol.Status) bool) string {
		return field(st != nil, func() string { return ui.Switch(get(*st)) })
	}

	return []ui.Section{
		{
			Title: "Battery",
			Rows: []ui.Param{
				{Key: "Level", Value: field(s.BatteryPercent != nil, func() string {
					return ui.BatteryBar(uint8(*s.BatteryPercent))
				})},
				{Key: "Charge time", Value: field(s.Capacity != nil, func() string {
					return protocol.FormatMinutes(s.Capacity.ChargeTime)
				})},
				{Key: "Discharge time", Value: field(s.Capacity != nil, func() string {
					return protocol.FormatMinutes(s.Capacity.DischargeTime)
				})},
				{Key: "Health", Value: flag(func(v protocol.Status) bool { return v.BatteryHealth })},
			},
		},
		{
			Title: "Power",
			Rows: []ui.Param{
				{Key: "Input", Value: field(s.TotalPower != nil, func() string { return watts(s.TotalPower.Input) })},
				{Key: "Output", Value: field(s.TotalPower != nil, func() string { return watts(s.TotalPower.Output) })},
				{Key: "Battery", Value: field(s.Power != nil, func() string {
					return pair(s.Power.BatteryOne, s.Power.BatteryTwo)
				})},
				{Key: "Inverter", Value: field(s.Power != nil, func() string {
					return pair(s.Power.InverterOne, s.Power.InverterTwo)
				})},
			},
		},
		{
			Title: "Outputs",
			Rows: []ui.Param{
				{Key: "AC", Value: field(s.ACPower != nil, func() string { return watts(uint16(*s.ACPower)) })},
				{Key: "DC total", Value: field(s.DCPower != nil, func() string { return watts(s.DCPower.Total) })},
				{Key: "USB-C", Value: field(s.DCPower != nil, func() string {
					return pair(s.DCPower.TypeCOne, s.DCPower.TypeCTwo)
				})},
				{Key: "USB-A", Value: field(s.DCPower != nil, func() string {
					return pair(s.DCPower.USBOne, s.DCPower.USBTwo)
				})},
			},
		},
		{
			Title: "Switches",
			Rows: []ui.Param{
				{Key: "AC", Value: field(st != nil, func() string {
					return ui.Switch(st.ACSwitch) + fmt.Sprintf(" %dHz", st.ACFrequencyHz)
				})},
				{Key: "AC turbo", Value: flag(func(v protocol.Status) bool { return v.ACTurbo })},
				{Key: "DC", Value: flag(func(v protocol.Status) bool { return v.DCSwitch })},
				{Key: "USB", Value: flag(func(v protocol.Status) bool { return v.USBSwitch })},
				{Key: "Flashlight", Value: field(s.Flashlight != nil, func() string { return s.Flashlight.String() })},
			},
		},
		{
			Title: "Settings",
			Rows: []ui.Param{
				{Key: "Low noise", Value: flag(func(v protocol.Status) bool { return v.LowNoise })},
				{Key: "Standby", Value: flag(func(v protocol.Status) bool { return v.Standby })},
				{Key: "Key lock", Value: flag(func(v protocol.Status) bool { return v.Locking })},
				{Key: "Key voice", Value: flag(func(v protocol.Status) bool { return v.KeyVoice })},
				{Key: "Warning voice", Value: flag(func(v protocol.Status) bool { return v.WarningVoice })},
				{Key: "Low batt. warn", Value: flag(func(v protocol.Status) bool { return v.LowBatteryWarning })},
			},
		},
	}
}

func watts(w uint16) string {
	return fmt.Sprintf("%dW", w)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
