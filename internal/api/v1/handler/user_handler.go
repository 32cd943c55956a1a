package handler

import (
	"context"

	"policybolt/internal/api/v1/dto"
	"policybolt/internal/api/v1/operation"
	"policybolt/internal/middleware"
	"policybolt/internal/model"
	"policybolt/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// UserHandler implements Huma-based user operations
type UserHandler struct {
	userService service.UserService
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func toUserResponse(u *model.User) dto.UserResponseDTO {
	return dto.UserResponseDTO{
		UserID:            u.UserID,
		Name:              u.Name,
		Email:             u.Email,
		HasStripeCustomer: u.StripeCustomerID != nil && *u.StripeCustomerID != "",
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// CreateUser creates or updates a user profile
func (h *UserHandler) CreateUser(ctx context.Context, input *operation.CreateUserInput) (*operation.CreateUserOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	email := input.Body.Email
	if email == "" {
		email = middleware.EmailFromContext(ctx)
	}
	if email == "" {
		return nil, huma.Error400BadRequest("Email is required")
	}

	user, err := h.userService.Upsert(ctx, &model.User{
		UserID: userID,
		Name:   input.Body.Name,
		Email:  email,
	})
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to create user")
	}
	return &operation.CreateUserOutput{Body: toUserResponse(user)}, nil
}

// GetUser retrieves the authenticated user's profile
func (h *UserHandler) GetUser(ctx context.Context, input *operation.GetUserInput) (*operation.GetUserOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	user, err := h.userService.Get(ctx, userID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to get user")
	}
	return &operation.GetUserOutput{Body: toUserResponse(user)}, nil
}
