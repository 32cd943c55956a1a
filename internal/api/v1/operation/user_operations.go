package operation

import "policybolt/internal/api/v1/dto"

type CreateUserInput struct {
	Body dto.UserCreateDTO `json:"body"`
}

type CreateUserOutput struct {
	Body dto.UserResponseDTO `json:"body"`
}

type GetUserInput struct {
	// No input needed - user ID comes from auth context
}

type GetUserOutput struct {
	Body dto.UserResponseDTO `json:"body"`
}
