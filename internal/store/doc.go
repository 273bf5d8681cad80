// Package store persists the durable state of the intake engine in SQLite:
// published applications, the ordered posting queue, the settings record, and
// the bounded control-action audit log.
//
// The Store owns schema initialization via embedded versioned migrations and
// is the single source of truth for queue ordering and application lifecycle
// fields. Callers mutate records through the typed methods here; rows are
// normalized on scan so legacy payload shapes load without errors.
package store
