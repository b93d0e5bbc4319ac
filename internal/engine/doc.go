// Package engine implements the shelftrack detection reconciliation engine.
//
// The engine is the heart of shelftrack - it ingests presence events from
// hardware readers, deduplicates and debounces them, enforces the status
// transition rules, appends the audit trail, and expires stale presence
// state on a timeout.
//
// ARCHITECTURE:
//
// Per-Key Serialization:
// Many reader connections submit events concurrently. All mutations for one
// item key - read current status, decide target, write status + log - happen
// under that key's lock, so concurrent events for the same item are applied
// one at a time in arrival order. Events for different keys proceed fully in
// parallel; one reader's slow persistence write never blocks another
// reader's ingest path.
//
// Event Processing Flow:
//  1. SubmitDetection validates the raw event and resolves the reader
//     against the registry (unknown or kind-mismatched readers are rejected
//     before any state mutation)
//  2. The presence tracker entry for (kind, key) is inserted/refreshed (or
//     removed, for an explicit no-longer-detected event)
//  3. The reconciler decides the new authoritative status and writes
//     status + audit log to the store as one logical unit
//
// The sweeper is the only component that originates events: it periodically
// evicts presence entries whose last-seen age exceeds the timeout and feeds
// synthetic absence events through the same reconciler.
//
// INVARIANTS:
//   - A transition is applied (status written, "status changed" log entry
//     appended) exactly once per distinct incoming status value; re-assertions
//     refresh reader identity and timestamp and append an "observed again"
//     entry instead
//   - An item already borrowed stays borrowed when a presence entry ages out
//   - A rejected event mutates nothing
//   - Presence and connectivity state are process-local and reconstructible;
//     only the store is durable
package engine
