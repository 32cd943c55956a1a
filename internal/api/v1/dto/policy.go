package dto

import (
	"time"

	"policybolt/internal/model"
)

type PolicyResponseDTO struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   string    `json:"version"`
	Status    string    `json:"status" enum:"pending_review,active,inactive"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewPolicyResponse(p *model.Policy) PolicyResponseDTO {
	return PolicyResponseDTO{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		Title:     p.Title,
		Content:   p.Content,
		Version:   p.Version,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// GeneratedPolicyDTO is posted by the n8n workflow when a draft is ready.
type GeneratedPolicyDTO struct {
	ProjectID string `json:"project_id" format:"uuid"`
	Title     string `json:"title,omitempty" maxLength:"200"`
	Content   string `json:"content" minLength:"1" doc:"Policy body in markdown"`
	Version   string `json:"version,omitempty" maxLength:"50" doc:"Defaults to v{n} where n counts the project's generated policies"`
}

type DownloadURLResponseDTO struct {
	URL string `json:"url"`
}
