// Package email performs the templated email side effect for email_trigger
// workflows.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gearboxhq/gearbox/pkg/models"
)

// ErrNoTemplate indicates the workflow config has no template node for the
// requested outcome.
var ErrNoTemplate = errors.New("no email template configured")

// Outcome selects which template node renders.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Mailer delivers a rendered message. The SMTP implementation lives in
// mailer.go; tests inject fakes.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Action renders and sends the success/error email for one workflow.
type Action struct {
	templates map[string]models.EmailTemplate
	creator   string
	mailer    Mailer
	logger    *slog.Logger
}

// NewAction builds the email action from a workflow's export configuration.
// The workflow creator is excluded from every recipient list.
func NewAction(logger *slog.Logger, export models.ExportConfig, creator string, mailer Mailer) *Action {
	return &Action{
		templates: export.Templates,
		creator:   creator,
		mailer:    mailer,
		logger:    logger.With("module", "email_action"),
	}
}

// ResolveTemplate finds the template node for an outcome by naming
// convention: the first node whose key ends in "_success" or "_error"
// respectively, with the bare keys "success"/"error" accepted too.
func (a *Action) ResolveTemplate(outcome Outcome) (models.EmailTemplate, error) {
	suffix := "_" + string(outcome)

	if tpl, ok := a.templates[string(outcome)]; ok {
		return tpl, nil
	}

	for key, tpl := range a.templates {
		if strings.HasSuffix(key, suffix) {
			return tpl, nil
		}
	}

	return models.EmailTemplate{}, fmt.Errorf("%w for outcome %q", ErrNoTemplate, outcome)
}

// Recipients filters the template recipient list, dropping the workflow's
// creator.
func (a *Action) Recipients(tpl models.EmailTemplate) []string {
	recipients := make([]string, 0, len(tpl.Recipients))

	for _, recipient := range tpl.Recipients {
		if strings.EqualFold(recipient, a.creator) {
			continue
		}

		recipients = append(recipients, recipient)
	}

	return recipients
}

// Execute renders the outcome's template against the entity and sends it.
// It returns the email status string recorded on the execution log.
func (a *Action) Execute(ctx context.Context, outcome Outcome, entity map[string]any) (string, error) {
	tpl, err := a.ResolveTemplate(outcome)
	if err != nil {
		return "skipped", err
	}

	recipients := a.Recipients(tpl)
	if len(recipients) == 0 {
		a.logger.InfoContext(ctx, "Email skipped, no recipients after creator exclusion")

		return "skipped", nil
	}

	data := TemplateData(entity)
	subject := Render(tpl.Subject, data)
	body := Render(tpl.Body, data)

	err = a.mailer.Send(ctx, recipients, subject, body)
	if err != nil {
		return "failed", fmt.Errorf("email delivery failed: %w", err)
	}

	a.logger.DebugContext(ctx, "Email sent", "recipients", len(recipients), "outcome", string(outcome))

	return "sent", nil
}
