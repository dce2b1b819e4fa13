// Package scope implements the RUM scope tree: a session root owning view
// scopes, each owning at most one action scope and any number of resource
// scopes.
//
// CONTRACT:
//
// Every scope exposes Handle(event, writer) and returns itself, or nil once
// it is dead. Parents evict children exactly when the child's Handle returns
// nil. Children read their parent's context once, when they are created,
// and never own or mutate the parent.
//
// CONCURRENCY:
//
// Handle is never called concurrently on one scope instance; the engine
// serializes all raw events through a single goroutine. Scope state is
// therefore unlocked. The only cross-goroutine inputs are vital monitor
// callbacks, which update a mutex-guarded cache read at document time.
//
// TERMINATION:
//
// A view scope counts child work that is written but not yet acknowledged
// (pending resources, actions, errors, long tasks and frozen frames). A
// stopped view keeps returning itself until every pending counter is back at
// exactly zero and no child scope is alive; the acknowledgement that drains
// the last unit emits one final view document and returns nil.
//
// FAILURES:
//
// Nothing escapes Handle. Writer failures and writer panics are recovered at
// the call site and reported to the Notifier as dropped documents. Skewed
// durations are clamped to 1ns with a single warning per scope.
package scope
