package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/account-notifier/pkg/config"
	"github.com/telekom/account-notifier/pkg/metrics"
)

// Transport labels used in metrics and logs.
const (
	TransportSMTP = "smtp"
	TransportSES  = "ses"
)

// TLSMode selects how the SMTP session is secured.
type TLSMode string

const (
	// TLSStartTLS connects in plain text and upgrades when the relay offers STARTTLS.
	TLSStartTLS TLSMode = "starttls"
	// TLSImplicit wraps the connection in TLS from the first byte (usually port 465).
	TLSImplicit TLSMode = "implicit"
)

// Sender delivers a rendered message. Implementations are safe for
// concurrent use. Connection refusal, authentication rejection and relay
// rejection all surface as a single error.
type Sender interface {
	Send(ctx context.Context, msg RenderedMessage) error
}

// Config is the transport configuration of an SMTPSender. It is built once
// at startup and copied into the sender; later changes to the source have no
// effect.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	SenderAddress string
	SenderName    string

	TLSMode            TLSMode
	InsecureSkipVerify bool
	KeepAlive          bool
}

// ConfigFrom converts the mail section of the process configuration.
func ConfigFrom(cfg config.Mail) Config {
	return Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		Username:           cfg.User,
		Password:           cfg.Password,
		SenderAddress:      cfg.SenderAddress,
		SenderName:         cfg.SenderName,
		TLSMode:            TLSMode(cfg.TLSMode),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		KeepAlive:          cfg.KeepAlive,
	}
}

// NewSender returns the dispatcher selected by cfg.Transport.
func NewSender(ctx context.Context, cfg config.Mail, log *zap.SugaredLogger) (Sender, error) {
	switch cfg.Transport {
	case "", TransportSMTP:
		return NewSMTPSender(ConfigFrom(cfg), log), nil
	case TransportSES:
		return NewSESSender(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported mail transport: %s", cfg.Transport)
	}
}

// SMTPSender sends mail through an SMTP relay. By default every message
// gets its own connection. With KeepAlive one session is reused and
// serialized by a mutex; a failed send drops the session and the next send
// dials again. Failed messages are never resent.
type SMTPSender struct {
	cfg    Config
	dialer *gomail.Dialer
	log    *zap.SugaredLogger

	mu      sync.Mutex
	session gomail.SendCloser
}

// NewSMTPSender creates a sender for cfg.
func NewSMTPSender(cfg Config, log *zap.SugaredLogger) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.TLSMode == TLSImplicit
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // Configurable for test relays
	}

	log = log.Named("mail")
	log.Infow("Initializing SMTP mail sender",
		"host", cfg.Host,
		"port", cfg.Port,
		"user", cfg.Username,
		"tlsMode", cfg.TLSMode,
		"keepAlive", cfg.KeepAlive)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for the SMTP connection", "host", cfg.Host)
	}

	return &SMTPSender{cfg: cfg, dialer: d, log: log}
}

// Send delivers msg. gomail offers no cancellation, so a send that has
// started runs until the relay answers or the connection fails.
func (s *SMTPSender) Send(_ context.Context, msg RenderedMessage) error {
	if msg.Recipient == "" {
		metrics.MailSendFailure.WithLabelValues(TransportSMTP).Inc()
		return fmt.Errorf("mail has no recipient")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.SenderAddress, s.cfg.SenderName)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)

	var err error
	if s.cfg.KeepAlive {
		err = s.sendOnSession(m)
	} else {
		err = s.dialer.DialAndSend(m)
	}
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(TransportSMTP).Inc()
		s.log.Errorw("Failed to send mail",
			"recipient", msg.Recipient,
			"subject", msg.Subject,
			"error", err)
		return fmt.Errorf("failed to send mail to %s via %s:%d: %w", msg.Recipient, s.cfg.Host, s.cfg.Port, err)
	}

	metrics.MailSendSuccess.WithLabelValues(TransportSMTP).Inc()
	s.log.Infow("Mail sent", "recipient", msg.Recipient, "subject", msg.Subject)
	return nil
}

func (s *SMTPSender) sendOnSession(m *gomail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		sc, err := s.dialer.Dial()
		if err != nil {
			return err
		}
		s.session = sc
	}
	if err := gomail.Send(s.session, m); err != nil {
		_ = s.session.Close()
		s.session = nil
		return err
	}
	return nil
}

// Close ends a kept-alive session, if any.
func (s *SMTPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

var _ io.Closer = (*SMTPSender)(nil)
