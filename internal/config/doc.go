// Package config manages the powerroam user configuration file.
//
// The file is YAML and holds two things: preferences that fill in command
// line defaults (device name, transport, bridge URL, serial port, exporter
// port and so on), and a list of stations seen during scans, keyed by BLE
// address, where the user can keep a nickname.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/powerroam/config.yaml or $HOME/.config/powerroam/config.yaml
//   - macOS: $HOME/.config/powerroam/config.yaml
//   - Windows: %LOCALAPPDATA%\powerroam\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//	registry.RecordSeen("F4:12:FA:00:11:22", "UGREEN GS1200")
//	registry.SetDeviceNickname("F4:12:FA:00:11:22", "Van")
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// Command line flags always win over preferences; see Preferences.
//
// Saves go through a temporary file and a rename so a crash never leaves a
// half written config behind. The file is created with mode 0600.
package config
