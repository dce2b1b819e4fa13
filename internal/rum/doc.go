// Package rum holds the vocabulary shared by every layer of the RUM
// aggregation engine.
//
// The engine consumes a closed set of raw events (see Event) and produces
// five document kinds (view, resource, action, error, long task). Documents
// are written through a Writer inside a write context that pairs an opaque
// Batch with a read-only Snapshot of the ambient environment.
//
// TIME:
//
// Every raw event carries a Time: a wall clock timestamp in milliseconds
// (used for document dates) and a monotonic nanosecond reading (used for all
// durations). Durations are NEVER computed from wall clock timestamps.
//
// ATTRIBUTES:
//
// Attribute maps are merged with MergeAttributes, later layers winning. Keys
// with the "_dd." prefix are internal: they are extracted into typed document
// fields and never reach the user context.
package rum
