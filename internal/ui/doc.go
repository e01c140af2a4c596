// Package ui renders one-shot terminal output for the powerroam CLI.
//
// Components follow a "print once and exit" pattern: they return styled
// strings built with Lipgloss and leave printing to the caller. The live
// dashboard lives in the dashboard package and reuses the styles and
// sections defined here.
//
// # Components
//
//   - Header: command banner with title and ordered parameters
//   - Sections: boxed key/value groups; RenderDeviceInfo lays out a full
//     station snapshot in one or two columns depending on width
//   - Result: success or failure box, with troubleshooting tips on failure
//
// Example:
//
//	width := ui.GetTerminalWidth()
//	fmt.Println(ui.NewHeader("Station Status", "powerroam status",
//	    ui.Param{Key: "Device", Value: "ugreen gs"},
//	).SetWidth(width))
//	fmt.Println(ui.RenderDeviceInfo(info, width))
//
// # Terminal Width
//
// Widths are clamped to [MinTerminalWidth, MaxContentWidth]. Output that is
// not a terminal falls back to MinTerminalWidth.
package ui
