package notify

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
)

// Mailer delivers a follow-up email and returns a message ID.
type Mailer interface {
	SendEmail(to, subject, htmlBody string) (string, error)
}

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// SMTPMailer sends email via SMTP. Port 465 gets an implicit TLS dial;
// anything else goes through smtp.SendMail, which negotiates STARTTLS.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer with the given settings.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("SMTP not configured")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// SendEmail sends one message and returns a locally generated message ID.
func (m *SMTPMailer) SendEmail(to, subject, htmlBody string) (string, error) {
	msg := buildMessage(m.cfg.From, to, subject, htmlBody)
	addr := m.cfg.Host + ":" + m.cfg.Port

	var err error
	if m.cfg.Port == "465" {
		err = m.sendImplicitTLS(addr, to, msg)
	} else {
		err = smtp.SendMail(addr, m.auth(), m.cfg.From, []string{to}, msg)
	}
	if err != nil {
		return "", fmt.Errorf("sending email: %w", err)
	}

	return uuid.NewString(), nil
}

func (m *SMTPMailer) auth() smtp.Auth {
	if m.cfg.User == "" {
		return nil
	}
	return smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
}

// buildMessage assembles an HTML mail with CRLF headers.
func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// sendImplicitTLS speaks SMTPS: TLS from the first byte, then the usual
// MAIL/RCPT/DATA exchange.
func (m *SMTPMailer) sendImplicitTLS(addr, to string, msg []byte) (err error) {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil && err == nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if a := m.auth(); a != nil {
		if err := c.Auth(a); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to %s: %w", to, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}
