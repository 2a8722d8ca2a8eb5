// Package mailer delivers ticket emails.
package mailer

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/uaifestas/festas-go/internal/config"
)

// InlineQRName is the Content-ID the HTML body references as cid:qrcode.png.
const InlineQRName = "qrcode.png"

type Message struct {
	To      string
	Subject string
	HTML    string
	QRCode  []byte
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer, or a LogMailer when no server is configured.
func New(cfg *config.Config, logger *zap.Logger) Mailer {
	if cfg.MailServer == "" {
		logger.Warn("MAIL_SERVER not set, emails will only be logged")
		return &LogMailer{logger: logger}
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.MailServer, cfg.MailPort, cfg.MailUsername, cfg.MailPassword),
		from:   cfg.MailFrom,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(buildMessage(m.from, msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

func buildMessage(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if len(msg.QRCode) > 0 {
		png := msg.QRCode
		m.Embed(InlineQRName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(png)
			return err
		}))
	}
	return m
}

// LogMailer records messages instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("email not sent, no SMTP server configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("qr_bytes", len(msg.QRCode)),
	)
	return nil
}
