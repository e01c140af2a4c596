// Package logging provides structured logging for powerroam.
//
// This package wraps a global zap logger with convenience functions. The
// logger is silent until initialized, so the protocol and transport packages
// can log freely without producing output in library use or tests.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Raw notification hex dumps, per-record decode results
//   - Info: Connections, scans, frames written to the device
//   - Warn: Checksum failures, dropped notifications, reconnects
//   - Error: Transport failures, exporter startup failures
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Warn("Checksum validation failed",
//	    zap.String("tag", "Status"),
//	    zap.String("payload", logging.HexString(payload)),
//	)
//
// # Configuration
//
// Initialize logging at command startup:
//
//	if err := logging.InitializeWithOptions(logging.Options{
//	    Level: "debug",
//	    File:  "/var/log/powerroam.log",
//	}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// An empty level falls back to the POWERROAM_LOG_LEVEL environment variable
// and then to Options.DefaultLevel; when all are empty, logging stays
// disabled. The command line passes "warn" as its default so checksum
// failures always reach the terminal. Console output goes to
// stderr. A log file, when configured, is written as JSON and rotated by
// lumberjack.
package logging
