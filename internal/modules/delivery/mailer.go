// Package delivery sends generated briefs to subscribers over SMTP and
// keeps a per-recipient delivery log.
package delivery

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/holdiq/holdiq/internal/config"
)

// Mailer sends brief emails. In dry-run mode messages are logged
// instead of sent, which is the safe default.
type Mailer struct {
	cfg config.SMTPConfig
	log zerolog.Logger
}

// NewMailer creates a new mailer
func NewMailer(cfg config.SMTPConfig, log zerolog.Logger) *Mailer {
	return &Mailer{
		cfg: cfg,
		log: log.With().Str("component", "mailer").Logger(),
	}
}

// Send delivers one brief email.
func (m *Mailer) Send(ctx context.Context, to, subject, briefMD string) error {
	if m.cfg.DryRun {
		m.log.Info().Str("to", to).Str("subject", subject).
			Int("chars", len(briefMD)).Msg("Dry run, not sending")
		return nil
	}

	if m.cfg.Host == "" || m.cfg.From == "" {
		return fmt.Errorf("SMTP host and from address must be configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, briefMD)
	msg.AddAlternativeString(mail.TypeTextHTML, briefToHTML(briefMD, subject))

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send to %s: %w", to, err)
	}

	return nil
}

// briefToHTML is a minimal markdown-ish to HTML conversion: escape,
// keep line structure. Enough to look decent in a mail client; not a
// markdown parser.
func briefToHTML(briefMD, title string) string {
	escaped := html.EscapeString(briefMD)

	var body strings.Builder
	for _, line := range strings.Split(escaped, "\n") {
		if strings.TrimSpace(line) == "" {
			body.WriteString("<br>\n")
		} else {
			body.WriteString(line)
			body.WriteString("<br>\n")
		}
	}

	return fmt.Sprintf(`<html>
  <body style="font-family: Arial, sans-serif; font-size: 14px; line-height: 1.5;">
    <h2>%s</h2>
    <div>%s</div>
  </body>
</html>`, html.EscapeString(title), body.String())
}
