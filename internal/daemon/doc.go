// Package daemon runs the intake engine as a single long-lived process.
//
// A file lock enforces one instance per data directory, the workflow manager
// supplies the background loops, and a local HTTP API exposes status, queue,
// application, and metrics endpoints for the CLI and for monitoring.
package daemon
