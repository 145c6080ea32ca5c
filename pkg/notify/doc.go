// Package notify connects lifecycle events to mail. The Notifier renders the
// template for an event kind and hands the result to a mail.Sender; the
// EventHandler feeds it from the Kafka consumer and the Controller exposes
// the synchronous direct-send endpoint.
package notify
