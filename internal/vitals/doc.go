// Package vitals aggregates periodic performance samples (CPU ticks, memory,
// refresh rate) into {min, max, mean} windows.
//
// Each listener registered on a Monitor gets its own window starting empty
// at registration, so a view only ever sees samples taken while it was
// listening. Listeners are called from the sampling goroutine; they must be
// cheap and must not block.
package vitals
