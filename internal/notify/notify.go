// Package notify delivers outbound email.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"docsign/internal/config"
)

var ErrNoRecipients = errors.New("message has no recipients")

// Attachment is a named file carried by a Message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is an HTML email.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Notifier sends messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP sends through a mail relay.
type SMTP struct {
	cfg  config.SMTPConfig
	dial func(ctx context.Context, msgs ...*mail.Msg) error
}

func NewSMTP(cfg config.SMTPConfig) (*SMTP, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{cfg: cfg, dial: c.DialAndSendWithContext}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.dial(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *SMTP) build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.DisplayName, s.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		m.AttachReadSeeker(a.Name, bytes.NewReader(a.Data), opts...)
	}
	return m, nil
}

// Log writes messages to the logger instead of sending them. It is used
// when no SMTP relay is configured.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	l.log.Info("email not sent, smtp disabled",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}

// New picks the SMTP notifier when a host is configured.
func New(cfg config.SMTPConfig, log *zap.Logger) (Notifier, error) {
	if cfg.Host == "" {
		return NewLog(log), nil
	}
	return NewSMTP(cfg)
}
