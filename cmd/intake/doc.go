// Command intake is the operator CLI and daemon entry point for the
// application intake engine. It ingests form responses, publishes them for
// review, tallies votes, and applies accept/deny/reopen/close transitions.
package main
