// Package pkg provides shared utilities for the softehci engine.
//
// It contains:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for caller precondition violations
//   - Component identifiers for log filtering
//
// # Logging
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentSchedule, "ring drained", "head", head)
//
// # Errors
//
//	if errors.Is(err, pkg.ErrUnknownController) {
//	    // wiring bug in the caller
//	}
package pkg
