// Package smtp sends notifications as email with the report artifacts attached.
package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/fire-incident-pipeline/internal/notify"
	"github.com/wneessen/go-mail"
)

// Config holds SMTP delivery settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Mailer implements notify.Notifier over SMTP with STARTTLS.
type Mailer struct {
	cfg    Config
	logger *slog.Logger
}

// NewMailer returns a mailer for cfg.
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Notify builds the message and delivers it in one SMTP session.
func (m *Mailer) Notify(ctx context.Context, n notify.Notification) error {
	msg, err := m.message(n)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.logger.Info("notification email sent", "to", m.cfg.To, "records", len(n.Records))
	return nil
}

func (m *Mailer) message(n notify.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("email from: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("email to: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, body(n))

	for _, path := range n.Attachments {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("attachment %s: %w", path, err)
		}
		msg.AttachFile(path)
	}
	return msg, nil
}

func body(n notify.Notification) string {
	var b strings.Builder
	b.WriteString(n.Body)
	if len(n.Records) > 0 {
		fmt.Fprintf(&b, "\n\nNew verified incidents: %d\n", len(n.Records))
		for _, r := range n.Records {
			fmt.Fprintf(&b, "\n- %s (%s, score %s)", r.Title, r.Source, r.FireRelatedScore)
			if r.URL != "" {
				fmt.Fprintf(&b, "\n  %s", r.URL)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
