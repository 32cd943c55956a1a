package operation

import "policybolt/internal/api/v1/dto"

type SendEmailInput struct {
	Body dto.SendEmailRequestDTO `json:"body"`
}

type SendEmailOutput struct {
	Body dto.SendEmailResponseDTO `json:"body"`
}
