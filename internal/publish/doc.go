// Package publish drains the job queue into chat channels.
//
// Draining is single-flight: overlapping calls return busy without touching
// the queue. Jobs publish strictly in queue order and a failing head job
// halts the whole drain rather than being skipped, so applications always
// appear in submission order. Multi-track jobs are all-or-nothing per drain
// but resume from partial failure by skipping tracks already posted.
package publish
