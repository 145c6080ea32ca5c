// Package mailtest provides a recording mail.Sender for tests.
package mailtest

import (
	"context"
	"sync"

	"github.com/telekom/account-notifier/pkg/mail"
)

// RecordingSender remembers every message it is asked to send. When Err is
// set every send attempt is still recorded and then fails with Err.
type RecordingSender struct {
	mu   sync.Mutex
	sent []mail.RenderedMessage
	err  error
}

func (s *RecordingSender) Send(_ context.Context, msg mail.RenderedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

// FailWith makes subsequent sends fail with err; nil restores success.
func (s *RecordingSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Sent returns a copy of all attempted messages in order.
func (s *RecordingSender) Sent() []mail.RenderedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.RenderedMessage(nil), s.sent...)
}

var _ mail.Sender = (*RecordingSender)(nil)
