// Package engine implements the serialized dispatch point of the RUM scope
// tree.
//
// The scope tree is single-threaded by contract: nothing inside it is
// locked. The engine is what makes that safe. Host callbacks may fire on any
// goroutine; they only enqueue, and one loop goroutine applies every event.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All events go through one FIFO queue. This ensures:
// - Each event sees the effects of every event enqueued before it
// - Acknowledgements are handled strictly after the write that caused them
// - A persisted event log replays into the same document stream
//
// Event Processing Flow:
// 1. Raw events are enqueued (Enqueue) from any goroutine
// 2. Run() or ProcessPending() dequeues events one at a time
// 3. The event is stamped with a seq and appended to the event log, if any
// 4. The session scope handles it, writing documents through the writer
// 5. Each write outcome is re-enqueued as a Sent/Dropped acknowledgement
//
// Vital samplers run on their own goroutines under the same errgroup as the
// loop. They only touch vitals.Monitor, which is safe for concurrent use.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Events are numbered by Clock.Next() in the order the loop handles them.
// Durations inside documents come from event times, never from the loop.
//
// Log and Continue:
// A failing or panicking event is logged and skipped. The loop never stops
// because of a single event.
package engine
