// Package config loads, defaults, and validates the TOML configuration for
// the intake engine.
//
// Configuration covers directories, the chat platform connection, the
// response source, per-track bindings (channels, roles, vote rules, aliases),
// message templates, workflow intervals, operator notifications, and the
// daemon API. Track settings defined here seed the persisted settings record
// on daemon start.
package config
