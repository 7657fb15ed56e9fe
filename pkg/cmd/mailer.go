package cmd

import (
	"github.com/gearboxhq/gearbox/pkg/actions/email"
)

// NewMailer builds the SMTP mailer used by email workflows.
func NewMailer(host string, port int, username, password, from string) *email.SMTPMailer {
	return email.NewSMTPMailer(email.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	})
}
