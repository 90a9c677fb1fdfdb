// Package store defines persistence-facing contracts for loading and saving
// keyed record snapshots, plus a store-backed Record that satisfies the
// changeset Record and Saver capability contracts.
//
// Responsibilities:
//   - Store only loads/saves a single field snapshot for a single key.
//   - Record adapts a Store into a live keyed record: reads and writes hit an
//     in-memory field map, and Save persists that map through the Store.
//   - The core changeset package remains persistence-agnostic; all durability
//     lives behind Store implementations supplied by consumers.
//
// Data flow:
//
//	changeset.Changeset -> store.Record -> Store.Save
//
// Concurrency control:
//
//	Meta.ETag is storage-owned. Stores that support conflict detection return
//	ErrETagMismatch when a save carries a stale ETag, which surfaces through
//	Changeset.Save leaving the pending changes intact for retry.
package store
