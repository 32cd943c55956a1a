package handler

import (
	"context"
	"errors"
	"net/http"

	"policybolt/internal/middleware"
	"policybolt/internal/service"
	"policybolt/internal/wizard"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// Helper to extract user ID from context (injected by auth middleware)
func getUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return "", huma.Error401Unauthorized("User ID not found in context")
	}
	return userID, nil
}

// toHumaError maps service errors onto HTTP problems. Unexpected errors are
// logged and reported as 500 with msg.
func toHumaError(logger zerolog.Logger, err error, msg string) error {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make([]error, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, &huma.ErrorDetail{
				Location: "body." + f.Field,
				Message:  f.Message,
			})
		}
		return huma.Error422UnprocessableEntity("Step "+string(verr.Step)+" is invalid", details...)
	case errors.Is(err, wizard.ErrUnknownStep):
		return huma.Error404NotFound("Unknown wizard step")
	case errors.Is(err, service.ErrUserNotFound):
		return huma.Error404NotFound("User not found")
	case errors.Is(err, service.ErrProjectNotFound):
		return huma.Error404NotFound("Project not found")
	case errors.Is(err, service.ErrPolicyNotFound):
		return huma.Error404NotFound("Policy not found")
	case errors.Is(err, service.ErrPolicyNotArchived):
		return huma.Error404NotFound("Policy has no downloadable archive")
	case errors.Is(err, service.ErrNoSubscription):
		return huma.Error404NotFound("No subscription found")
	case errors.Is(err, service.ErrNoStripeCustomer):
		return huma.Error404NotFound("No billing account found")
	case errors.Is(err, service.ErrPolicyActive):
		return huma.Error409Conflict("Active policies cannot be deleted")
	case errors.Is(err, service.ErrPolicyNotApprovable):
		return huma.Error409Conflict("Only pending_review or inactive policies can be approved")
	case errors.Is(err, service.ErrProjectLimitReached):
		return huma.Error409Conflict("Project limit for your plan reached")
	case errors.Is(err, service.ErrNotConnected):
		return huma.Error409Conflict("Project is not connected to GitHub")
	case errors.Is(err, service.ErrProjectInactive):
		return huma.Error409Conflict("Project is inactive; reconnect GitHub to reactivate it")
	case errors.Is(err, service.ErrEmptyPolicyContent):
		return huma.Error422UnprocessableEntity("Policy content is empty", &huma.ErrorDetail{Location: "body.content", Message: "is required"})
	case errors.Is(err, service.ErrSubscriptionRequired):
		return huma.NewError(http.StatusPaymentRequired, "An active subscription is required")
	case errors.Is(err, service.ErrInstallationMismatch):
		return huma.Error403Forbidden("Installation does not belong to your GitHub account")
	case errors.Is(err, service.ErrInvalidState):
		return huma.Error400BadRequest("Invalid or expired GitHub state")
	case errors.Is(err, service.ErrInvalidPlan):
		return huma.Error400BadRequest("Unknown plan")
	case errors.Is(err, service.ErrUnknownTemplate):
		return huma.Error400BadRequest("Unknown email template")
	}
	logger.Error().Err(err).Msg(msg)
	return huma.Error500InternalServerError(msg, err)
}
