package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

type EmailTemplate string

const (
	TemplateWelcome              EmailTemplate = "welcome"
	TemplatePolicyReady          EmailTemplate = "policy_ready"
	TemplateSubscriptionCanceled EmailTemplate = "subscription_canceled"
)

// EmailData fills the placeholders of a template. Unused fields are ignored.
type EmailData struct {
	Name         string
	ProjectName  string
	PolicyTitle  string
	PolicyURL    string
	DashboardURL string
}

type EmailService interface {
	Send(ctx context.Context, to string, tmpl EmailTemplate, data EmailData) error
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

var emailTemplates = map[EmailTemplate]emailTemplate{
	TemplateWelcome: {
		subject: "Welcome to PolicyBolt",
		body: template.Must(template.New("welcome").Parse(
			`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Thanks for signing up. Connect a GitHub repository and answer a few questions to get your first privacy policy.</p>
<p><a href="{{.DashboardURL}}">Open your dashboard</a></p>`)),
	},
	TemplatePolicyReady: {
		subject: "Your privacy policy is ready for review",
		body: template.Must(template.New("policy_ready").Parse(
			`<p>A new version of <strong>{{.PolicyTitle}}</strong> for {{.ProjectName}} is waiting for your review.</p>
<p><a href="{{.PolicyURL}}">Review and approve it</a></p>`)),
	},
	TemplateSubscriptionCanceled: {
		subject: "Your PolicyBolt subscription was canceled",
		body: template.Must(template.New("subscription_canceled").Parse(
			`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Your subscription has been canceled and your projects are no longer synced with GitHub. Published policies stay available until you delete them.</p>
<p><a href="{{.DashboardURL}}">Resubscribe any time</a></p>`)),
	},
}

// ParseEmailTemplate validates a template name coming from a request.
func ParseEmailTemplate(name string) (EmailTemplate, error) {
	t := EmailTemplate(strings.TrimSpace(name))
	if _, ok := emailTemplates[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return t, nil
}

type resendEmailService struct {
	client       *resend.Client
	from         string
	dashboardURL string
	logger       zerolog.Logger
}

func NewEmailService(client *resend.Client, from, dashboardURL string, logger zerolog.Logger) EmailService {
	return &resendEmailService{
		client:       client,
		from:         from,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		logger:       logger.With().Str("service", "EmailService").Logger(),
	}
}

func (s *resendEmailService) Send(ctx context.Context, to string, tmpl EmailTemplate, data EmailData) error {
	t, ok := emailTemplates[tmpl]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, tmpl)
	}
	if to == "" {
		return fmt.Errorf("send %s email: missing recipient", tmpl)
	}
	if data.DashboardURL == "" {
		data.DashboardURL = s.dashboardURL
	}

	var body bytes.Buffer
	if err := t.body.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s email: %w", tmpl, err)
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: t.subject,
		Html:    body.String(),
		Tags:    []resend.Tag{{Name: "template", Value: string(tmpl)}},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("template", string(tmpl)).Msg("Failed to send email")
		return fmt.Errorf("send %s email: %w", tmpl, err)
	}
	s.logger.Info().Str("template", string(tmpl)).Str("email_id", sent.Id).Msg("Email sent")
	return nil
}
