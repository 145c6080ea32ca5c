// Package metrics defines Prometheus metrics for the notifier, covering
// lifecycle event publishing and consumption, mail delivery, the direct
// notification endpoint and gateway fallbacks.
package metrics
