// Package intake turns response-sheet rows into queued publication jobs.
//
// Rows are identified by a stable response key so repeated ingestion passes
// over the same sheet never enqueue duplicates, and each new row is assigned
// one or more target tracks through tiered header inference because source
// forms rarely share a schema.
package intake
