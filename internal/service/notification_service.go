package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// NotificationService sends templated emails to the signed-in user's own address.
type NotificationService interface {
	SendToUser(ctx context.Context, userID, template, projectID string) error
}

type notificationService struct {
	users        UserService
	projects     ProjectService
	email        EmailService
	dashboardURL string
	logger       zerolog.Logger
}

func NewNotificationService(users UserService, projects ProjectService, email EmailService, dashboardURL string, logger zerolog.Logger) NotificationService {
	return &notificationService{
		users:        users,
		projects:     projects,
		email:        email,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		logger:       logger.With().Str("service", "NotificationService").Logger(),
	}
}

func (s *notificationService) SendToUser(ctx context.Context, userID, template, projectID string) error {
	tmpl, err := ParseEmailTemplate(template)
	if err != nil {
		return err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}

	data := EmailData{Name: user.Name}
	if projectID != "" {
		p, err := s.projects.Get(ctx, userID, projectID)
		if err != nil {
			return err
		}
		data.ProjectName = p.Name
		data.PolicyTitle = defaultPolicyTitle
		data.PolicyURL = fmt.Sprintf("%s/projects/%s/policies", s.dashboardURL, p.ID)
	}

	if err := s.email.Send(ctx, user.Email, tmpl, data); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("template", string(tmpl)).Msg("Notification sent")
	return nil
}
