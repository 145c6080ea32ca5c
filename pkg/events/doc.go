// Package events carries account lifecycle events over Kafka: the event
// model and its JSON wire format, a keyed producer that preserves per-account
// ordering, and a consumer-group subscription loop that hands each event to a
// Handler with optional bounded retries and dead-lettering.
package events
