package adapter

import (
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/gomail.v2"
)

// Mail is the email sending capability consumed by the send_email tool.
type Mail interface {
	Send(to, subject, htmlBody string) error
}

type mailClient struct {
	host string
	port int
	user string
	pass string
	from string
}

type MailOption func(*mailClient)

// WithMailFrom overrides the From header (defaults to the SMTP user).
func WithMailFrom(from string) MailOption {
	return func(m *mailClient) {
		m.from = from
	}
}

// NewMail creates a Mail backed by an SMTP server.
func NewMail(host string, port int, user, pass string, opts ...MailOption) (Mail, error) {
	if host == "" {
		return nil, goerr.New("smtp host is required")
	}
	if port == 0 {
		port = 587
	}

	m := &mailClient{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: user,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *mailClient) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	if err := dialer.DialAndSend(msg); err != nil {
		return goerr.Wrap(err, "failed to send email",
			goerr.V("to", to), goerr.V("subject", subject))
	}

	return nil
}
