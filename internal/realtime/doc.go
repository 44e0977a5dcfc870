// Package realtime implements the subscriber-side connection manager.
//
// A Manager owns one WebSocket connection to an event's subscribe endpoint
// and keeps a dashboard's view consistent across network interruptions: it
// reconnects with capped exponential backoff, fires a hook on every entry
// into the connected state so owners can refetch authoritative state (the
// stream never replays missed envelopes), and dispatches received envelopes
// to topic handlers from a single internal queue.
package realtime
