package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/events"
)

// EventHandler adapts a Notifier to events.Handler for the consumer loop.
// Failures are returned so the consumer can apply its retry, dead-letter
// and commit policy; they never stop the subscription.
type EventHandler struct {
	notifier *Notifier
	log      *zap.SugaredLogger
}

func NewEventHandler(n *Notifier, log *zap.SugaredLogger) *EventHandler {
	return &EventHandler{notifier: n, log: log.Named("event-handler")}
}

func (h *EventHandler) HandleEvent(ctx context.Context, ev events.LifecycleEvent) error {
	h.log.Infow("Received lifecycle event",
		"eventType", ev.Kind,
		"accountId", ev.AccountID,
		"email", ev.Email)
	return h.notifier.Notify(ctx, ev)
}

var _ events.Handler = (*EventHandler)(nil)
