// Package notify delivers operator alerts. Mailer sends plain-text email
// over SMTP with implicit TLS; LogNotifier only logs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/jamesainslie/docktool/pkg/docktool/logging"
)

// Defaults for the mail submission endpoint.
const (
	DefaultHost    = "smtp.163.com"
	DefaultPort    = 465
	DefaultTimeout = 30 * time.Second
)

// ErrMissingCredentials is returned by NewMailer when sender, recipient or
// password is empty.
var ErrMissingCredentials = errors.New("mail sender, recipient and password are required")

// NotificationError reports a failed delivery. It never stops the caller.
type NotificationError struct {
	Title string
	Err   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %q: %v", e.Title, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Notifier delivers a titled message.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// MailConfig describes the submission endpoint and the envelope.
type MailConfig struct {
	Host string
	Port int
	// Username defaults to Sender.
	Username  string
	Password  string
	Sender    string
	Recipient string
	Timeout   time.Duration
}

// Transport sends prepared messages; *mail.Client implements it.
type Transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends each notification in its own SMTP session.
type Mailer struct {
	cfg          MailConfig
	newTransport func(MailConfig) (Transport, error)
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithTransport replaces the SMTP client factory, e.g. with a fake in tests.
func WithTransport(factory func(MailConfig) (Transport, error)) MailerOption {
	return func(m *Mailer) {
		m.newTransport = factory
	}
}

// NewMailer validates cfg and returns a Mailer.
func NewMailer(cfg MailConfig, opts ...MailerOption) (*Mailer, error) {
	if cfg.Sender == "" || cfg.Recipient == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Username == "" {
		cfg.Username = cfg.Sender
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	m := &Mailer{cfg: cfg, newTransport: dialTLS}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// dialTLS builds a go-mail client for implicit TLS with AUTH PLAIN.
func dialTLS(cfg MailConfig) (Transport, error) {
	return mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(cfg.Timeout),
	)
}

// Notify composes a plain-text message and submits it. The session is
// closed before Notify returns, whether or not the send succeeded.
func (m *Mailer) Notify(ctx context.Context, title, body string) error {
	logger := logging.Get("notify")

	msg, err := m.compose(title, body)
	if err != nil {
		return &NotificationError{Title: title, Err: err}
	}

	transport, err := m.newTransport(m.cfg)
	if err != nil {
		return &NotificationError{Title: title, Err: fmt.Errorf("creating smtp client: %w", err)}
	}

	if err := transport.DialAndSendWithContext(ctx, msg); err != nil {
		return &NotificationError{Title: title, Err: fmt.Errorf("sending via %s:%d: %w", m.cfg.Host, m.cfg.Port, err)}
	}

	logger.Info("email sent", "title", title, "to", m.cfg.Recipient)
	return nil
}

func (m *Mailer) compose(title, body string) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))
	if err := msg.From(m.cfg.Sender); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.Sender, err)
	}
	if err := msg.To(m.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.cfg.Recipient, err)
	}
	msg.Subject(title)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// Ensure Mailer implements Notifier.
var _ Notifier = (*Mailer)(nil)

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct{}

// Notify logs title and body at warn level.
func (LogNotifier) Notify(_ context.Context, title, body string) error {
	logging.Get("notify").Warn(title, "body", body)
	return nil
}

// Ensure LogNotifier implements Notifier.
var _ Notifier = LogNotifier{}
