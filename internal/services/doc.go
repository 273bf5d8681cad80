// Package services defines the shared error taxonomy consumed by the intake
// engine and its external integrations.
//
// Remote calls tag failures with the sentinel markers below so orchestration
// code (the job processor, the decision workflow) can classify a failure
// without parsing message text: transient failures halt the queue for retry,
// configuration failures halt it for operator action, permission and
// not-found failures become structured step results instead of thrown errors.
package services
