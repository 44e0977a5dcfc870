// Package broadcast implements the per-event fan-out hub using the actor pattern.
//
// The Hub owns the process-wide channel registry (event id -> subscriber set)
// on a single goroutine fed by a command channel, so no mutexes guard the maps.
// Per-connection write goroutines isolate slow clients: a subscriber that
// cannot keep up is evicted instead of stalling delivery to the rest.
package broadcast
