package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/events"
	"github.com/telekom/account-notifier/pkg/mail"
)

// Mail subjects per flow.
const (
	SubjectCreated = "Welcome! Your account has been created"
	SubjectDeleted = "Your account has been deleted"
)

// Renderer renders a named template. *mail.Renderer implements it.
type Renderer interface {
	Render(name string, vars map[string]any) (string, error)
}

// Notifier renders and sends the mail belonging to a lifecycle event.
type Notifier struct {
	renderer Renderer
	sender   mail.Sender
	log      *zap.SugaredLogger
}

func NewNotifier(renderer Renderer, sender mail.Sender, log *zap.SugaredLogger) *Notifier {
	return &Notifier{renderer: renderer, sender: sender, log: log.Named("notifier")}
}

// Notify dispatches on ev.Kind. Unknown kinds return an error wrapping
// events.ErrUnknownKind without touching the renderer or the sender.
func (n *Notifier) Notify(ctx context.Context, ev events.LifecycleEvent) error {
	switch ev.Kind {
	case events.KindCreated:
		return n.NotifyCreated(ctx, ev)
	case events.KindDeleted:
		return n.NotifyDeleted(ctx, ev)
	default:
		return fmt.Errorf("%w: %q", events.ErrUnknownKind, ev.Kind)
	}
}

// NotifyCreated sends the welcome mail to ev.Email.
func (n *Notifier) NotifyCreated(ctx context.Context, ev events.LifecycleEvent) error {
	vars := map[string]any{
		"name":  displayName(ev.Name),
		"email": ev.Email,
	}
	if ev.Age != nil {
		vars["age"] = *ev.Age
	}
	// Direct requests carry no account id.
	if ev.AccountID != 0 {
		vars["accountId"] = ev.AccountID
	}
	return n.send(ctx, mail.TemplateAccountCreated, SubjectCreated, ev.Email, vars)
}

// NotifyDeleted sends the deletion mail to ev.Email.
func (n *Notifier) NotifyDeleted(ctx context.Context, ev events.LifecycleEvent) error {
	vars := map[string]any{
		"name":  displayName(ev.Name),
		"email": ev.Email,
	}
	return n.send(ctx, mail.TemplateAccountDeleted, SubjectDeleted, ev.Email, vars)
}

func (n *Notifier) send(ctx context.Context, template, subject, recipient string, vars map[string]any) error {
	body, err := n.renderer.Render(template, vars)
	if err != nil {
		return fmt.Errorf("failed to render %s mail: %w", template, err)
	}
	if err := n.sender.Send(ctx, mail.NewRenderedMessage(recipient, subject, body)); err != nil {
		return err
	}
	n.log.Infow("Notification sent", "template", template, "recipient", recipient)
	return nil
}

func displayName(name string) string {
	if name == "" {
		return events.DefaultName
	}
	return name
}
