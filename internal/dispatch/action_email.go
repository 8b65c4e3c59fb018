package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/formwork/platform/internal/domain"
)

// Mailer delivers a rendered notification email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer logs outgoing mail instead of delivering it. Used when no
// SMTP relay is configured and in tests.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.Logger.Info("mail delivered", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

// EmailKind sends a notification email rendered from the event's property
// snapshot. Asynchronous: it never blocks the originating response.
type EmailKind struct {
	mailer Mailer
}

// NewEmailKind creates the send_email kind.
func NewEmailKind(mailer Mailer) *EmailKind {
	return &EmailKind{mailer: mailer}
}

func (k *EmailKind) Type() domain.ActionType { return domain.ActionSendEmail }

func (k *EmailKind) ResponseRelevant() bool { return false }

func (k *EmailKind) Run(ctx context.Context, job domain.ActionJob) (json.RawMessage, error) {
	var cfg domain.EmailConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, domain.ErrConfig("send_email config: " + err.Error())
	}
	if err := domain.ValidateEmail(cfg.To); err != nil {
		return nil, domain.ErrConfig("send_email config: " + err.Error())
	}

	subject := interpolate(cfg.Subject, job.Event.Properties)
	body := interpolate(cfg.Body, job.Event.Properties)

	if err := k.mailer.Send(ctx, cfg.To, subject, body); err != nil {
		return nil, domain.ErrTransient("mail delivery failed", err)
	}
	effect, _ := json.Marshal(map[string]string{"to": cfg.To, "subject": subject})
	return effect, nil
}

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// interpolate substitutes {{property}} placeholders from the event snapshot.
// Unknown placeholders are left intact so operators can spot them.
func interpolate(template string, properties map[string]any) string {
	if len(properties) == 0 {
		return template
	}
	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderRegex.FindStringSubmatch(match)[1]
		val, ok := properties[key]
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", val)
	})
}
