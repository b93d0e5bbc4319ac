// Package store provides SQLite-backed durable storage for shelftrack: the
// item record store and the reader registry.
//
// The store is the only durable state in the system. It holds:
//   - Items: one record per tag key with status, last reader, and an
//     append-only audit log
//   - Readers: the registry mapping a reader's network identity to its kind
//     and display name
//
// # Write Discipline
//
// A status transition writes the status fields and appends the audit log
// entry inside one transaction. Status and log must never disagree about
// whether a transition happened, so there is no API that writes one without
// the other.
//
// Item creation is guarded by the primary key: CreateItem reports whether the
// row was inserted rather than failing on conflict, so concurrent first
// sightings resolve without errors.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: item_logs rows always reference an item
//
// The store guarantees atomicity of each call; serialization of competing
// read-modify-write cycles for the same item key is the engine's job (per-key
// locking), not the store's.
package store
