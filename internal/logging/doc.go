// Package logging provides the leveled printf-style logging API used across
// the render engine, backed by zerolog.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true). LOG_FORMAT=json switches the console writer to JSON lines.
// Components that want structured fields use WithComponent.
package logging
