// Package logging assembles the structured slog loggers used across the
// intake engine.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so engine code tags log lines with
// the same field keys everywhere (job ids, message ids, tracks). A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
