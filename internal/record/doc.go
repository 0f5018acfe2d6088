// Package record defines the bus arrival sample that moves from the stop-page
// scraper through the staging CSV into the durable store.
//
// A Record is immutable once built. Its identity is content-derived: ID hashes
// the (line, timestamp, stop) triple and deliberately ignores the delay, so a
// second observation of the same bus at the same stop and second collides with
// the first and is discarded by the durable store ("first observation wins").
//
// Timestamps carry second precision. New and Parse truncate anything finer so
// that duplicate suppression is defined at the same precision as the persisted
// "YYYY-MM-DD HH:MM:SS" form.
package record
