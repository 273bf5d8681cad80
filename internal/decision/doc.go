// Package decision owns the application state machine.
//
// Applications move pending -> accepted/denied, any state -> closed, and back
// to pending via reopen. Every transition re-checks current status before
// acting, so vote evaluation and operator commands can race safely, and every
// side effect (role grants, announcements, DMs, history log) is recorded on
// the application rather than assumed to have worked.
package decision
