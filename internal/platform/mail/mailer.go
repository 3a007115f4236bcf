// Package mail delivers password-reset links over SMTP with STARTTLS.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type SMTPMailer struct {
	host string
	port int
	from string
	user string
	pass string
	log  *zap.Logger
}

func NewSMTPMailer(host string, port int, from, user, pass string, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, user: user, pass: pass, log: log}
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	if m.user == "" || m.pass == "" {
		return fmt.Errorf("SMTP_USER or SMTP_PASS not set")
	}

	body := fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: Password reset\r\n\r\nTo reset your password, follow the link: %s\r\n",
		to, m.from, link)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(body)); err != nil {
		m.log.Error("failed to send password reset email", zap.String("to", to), zap.Error(err))
		return err
	}
	m.log.Info("password reset email sent", zap.String("to", to))
	return nil
}
