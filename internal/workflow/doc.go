// Package workflow runs the daemon's background loops.
//
// Two loops poll independently: the source loop reads the response sheet,
// ingests new rows, and drains the publication queue; the reaction loop
// re-tallies votes on pending applications and sends review reminders. Both
// loops survive transient errors by backing off and retrying, and both stop
// promptly on shutdown.
package workflow
