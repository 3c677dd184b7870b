// Package pollengine implements the live-polls vote pipeline: partitioned
// event ingestion, the transactional vote ledger with exactly-once-per-user
// semantics, leaderboard projection, and snapshot fan-out to connected
// observers.
//
// Business rules live in application/domain layers; storage, broker, cache,
// and push concerns sit behind ports and adapters.
package pollengine
