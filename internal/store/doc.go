// Package store provides SQLite-backed durable storage for bus arrival
// records.
//
// The store is a keyed table: one row per record id, where the id is the
// content fingerprint computed by record.ID. Inserting a record whose id is
// already stored is a silent skip. The first observation of an arrival wins;
// later samples with a different delay never overwrite it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Timestamps are stored as "YYYY-MM-DD HH:MM:SS" text in local time, the
// same layout the staging CSV uses.
package store
