package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/account-notifier/pkg/events"
	"github.com/telekom/account-notifier/pkg/mail"
	"github.com/telekom/account-notifier/pkg/mail/mailtest"
	"github.com/telekom/account-notifier/pkg/system"
)

// spyRenderer records render calls and delegates to the real renderer.
type spyRenderer struct {
	next Renderer
	err  error

	mu    sync.Mutex
	calls []renderCall
}

type renderCall struct {
	name string
	vars map[string]any
}

func (s *spyRenderer) Render(name string, vars map[string]any) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, renderCall{name: name, vars: vars})
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.next.Render(name, vars)
}

func (s *spyRenderer) recorded() []renderCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]renderCall(nil), s.calls...)
}

func newTestNotifier(t *testing.T) (*Notifier, *spyRenderer, *mailtest.RecordingSender) {
	t.Helper()
	r, err := mail.NewRenderer()
	require.NoError(t, err)
	spy := &spyRenderer{next: r}
	sender := &mailtest.RecordingSender{}
	return NewNotifier(spy, sender, system.NewTestLogger(t)), spy, sender
}

func intPtr(v int) *int { return &v }

func TestNotifyCreatedScenario(t *testing.T) {
	n, spy, sender := newTestNotifier(t)

	ev := events.NewLifecycleEvent(events.KindCreated, 1, "a@x.com", "A", intPtr(25))
	require.NoError(t, n.Notify(context.Background(), ev))

	require.Len(t, spy.calls, 1)
	assert.Equal(t, mail.TemplateAccountCreated, spy.calls[0].name)
	assert.Equal(t, map[string]any{"name": "A", "email": "a@x.com", "age": 25, "accountId": int64(1)}, spy.calls[0].vars)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].Recipient)
	assert.Contains(t, sent[0].Subject, "Welcome")
	assert.Contains(t, sent[0].Body, "A")
	assert.Contains(t, sent[0].Body, "25")
}

func TestNotifyDeletedScenario(t *testing.T) {
	n, spy, sender := newTestNotifier(t)

	ev := events.NewLifecycleEvent(events.KindDeleted, 2, "b@x.com", "B", nil)
	require.NoError(t, n.Notify(context.Background(), ev))

	require.Len(t, spy.calls, 1)
	assert.Equal(t, mail.TemplateAccountDeleted, spy.calls[0].name)
	assert.Equal(t, map[string]any{"name": "B", "email": "b@x.com"}, spy.calls[0].vars)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "b@x.com", sent[0].Recipient)
	assert.Equal(t, SubjectDeleted, sent[0].Subject)
	assert.Contains(t, sent[0].Subject, "deleted")
}

func TestNotifyOmitsAbsentValues(t *testing.T) {
	n, spy, _ := newTestNotifier(t)

	ev := events.LifecycleEvent{Kind: events.KindCreated, Email: "c@x.com"}
	require.NoError(t, n.Notify(context.Background(), ev))

	require.Len(t, spy.calls, 1)
	assert.Equal(t, map[string]any{"name": events.DefaultName, "email": "c@x.com"}, spy.calls[0].vars)
}

func TestNotifyUnknownKind(t *testing.T) {
	n, spy, sender := newTestNotifier(t)

	err := n.Notify(context.Background(), events.LifecycleEvent{Kind: "USER_SUSPENDED", Email: "z@x.com"})
	require.ErrorIs(t, err, events.ErrUnknownKind)
	assert.Empty(t, spy.calls)
	assert.Empty(t, sender.Sent())
}

func TestNotifyFailures(t *testing.T) {
	t.Run("render error", func(t *testing.T) {
		n, spy, sender := newTestNotifier(t)
		spy.err = errors.New("template broken")

		err := n.NotifyCreated(context.Background(), events.NewLifecycleEvent(events.KindCreated, 1, "a@x.com", "A", nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "template broken")
		assert.Empty(t, sender.Sent())
	})

	t.Run("send error", func(t *testing.T) {
		n, _, sender := newTestNotifier(t)
		sender.FailWith(errors.New("535 authentication failed"))

		err := n.NotifyDeleted(context.Background(), events.NewLifecycleEvent(events.KindDeleted, 1, "a@x.com", "A", nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "535 authentication failed")
		assert.Len(t, sender.Sent(), 1)
	})
}
