package handler

import (
	"context"

	"policybolt/internal/api/v1/dto"
	"policybolt/internal/api/v1/operation"
	"policybolt/internal/service"

	"github.com/rs/zerolog"
)

type NotificationHandler struct {
	notificationService service.NotificationService
	logger              zerolog.Logger
}

func NewNotificationHandler(notificationService service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// SendEmail sends one of the transactional templates to the current user.
func (h *NotificationHandler) SendEmail(ctx context.Context, input *operation.SendEmailInput) (*operation.SendEmailOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.notificationService.SendToUser(ctx, userID, input.Body.Template, input.Body.ProjectID); err != nil {
		return nil, toHumaError(h.logger, err, "Failed to send email")
	}
	return &operation.SendEmailOutput{Body: dto.SendEmailResponseDTO{Sent: true}}, nil
}
