package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"

	"github.com/rs/zerolog"

	invdomain "orgsession/internal/invitation/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Validate checks if the SMTP configuration is usable.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return errors.New("smtp host is required")
	}
	if c.Port == 0 {
		return errors.New("smtp port is required")
	}
	if c.From == "" {
		return errors.New("smtp from address is required")
	}
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier emails the invitation using an HTML template.
type SMTPNotifier struct {
	config    SMTPConfig
	templates *template.Template
	send      sendMailFunc
	log       zerolog.Logger
}

// NewSMTPNotifier validates config and parses the embedded templates.
func NewSMTPNotifier(config SMTPConfig, logger zerolog.Logger) (*SMTPNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid smtp config: %w", err)
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &SMTPNotifier{
		config:    config,
		templates: tmpl,
		send:      smtp.SendMail,
		log:       logger.With().Str("component", "smtp_notifier").Logger(),
	}, nil
}

func (s *SMTPNotifier) Notify(_ context.Context, n invdomain.Notification) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, "invitation.html", n); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	subject := fmt.Sprintf("You're invited to join %s", n.OrganizationName)
	msg := s.buildMessage(n.InviteeEmail, subject, body.String())

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	addr := s.config.Host + ":" + strconv.Itoa(s.config.Port)
	if err := s.send(addr, auth, s.config.From, []string{n.InviteeEmail}, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.log.Info().Str("invitation_id", n.InvitationID).Str("to", n.InviteeEmail).Msg("invitation email sent")
	return nil
}

func (s *SMTPNotifier) buildMessage(to, subject, htmlBody string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(htmlBody)
	return buf.Bytes()
}
