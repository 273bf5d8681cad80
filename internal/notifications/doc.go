// Package notifications delivers operator alerts via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set. Each
// alert category (queue activity, decisions, errors) can be toggled
// independently so a noisy sheet does not drown out halted-queue alerts.
//
// All workflow code depends only on the Service interface.
package notifications
