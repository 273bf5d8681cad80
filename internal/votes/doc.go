// Package votes turns reactions on application messages into decisions.
//
// A reviewer's vote only counts when they are an eligible voter for the
// track, and a reviewer who reacted with both sentinels is counted for
// neither side. Thresholds combine a per-track supermajority fraction with an
// absolute floor. Evaluation is idempotent: it reloads the application and
// no-ops unless it is still pending.
package votes
