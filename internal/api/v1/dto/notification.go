package dto

type SendEmailRequestDTO struct {
	Template  string `json:"template" enum:"welcome,policy_ready,subscription_canceled"`
	ProjectID string `json:"project_id,omitempty"`
}

type SendEmailResponseDTO struct {
	Sent bool `json:"sent"`
}
