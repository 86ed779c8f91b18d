// Package logging provides logging utilities for spotty.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by the --verbose and
// --json flags. Warnings are always shown; info and debug records only with
// --verbose:
//
//	logging.Debug("launching instance", "name", name, "type", instanceType)
//	logging.Warn("spot request pending", "id", requestID)
//
// # User Output
//
// User-facing messages are prefixed with a colored status indicator:
//
//	logging.UserInfo("Waiting for instance %s...", id)
//	logging.UserSuccess("Instance %q is running", name)
//	logging.UserWarning("Image %q not found, nothing to delete", ami)
//	logging.UserError("%v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
package logging
