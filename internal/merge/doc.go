// Package merge reconciles the staging file against the durable store.
//
// A cycle loads every staged record, computes which ids the store does not
// hold yet, inserts the batch and reports the counts. Engine.Run adds the
// deletion gate: the staging file is removed only when every pending record
// was inserted and the caller holds a capability token valid today. Any
// failure before the insert commits leaves both the store and the staging
// file untouched, so a cycle can always be retried.
package merge
