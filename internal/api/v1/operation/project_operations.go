package operation

import "policybolt/internal/api/v1/dto"

// Project CRUD Operations

type CreateProjectInput struct {
	Body dto.ProjectDraftDTO `json:"body"`
}

type CreateProjectOutput struct {
	Body dto.ProjectResponseDTO `json:"body"`
}

type ListProjectsInput struct {
	// No input needed - user ID comes from auth context
}

type ListProjectsOutput struct {
	Body []dto.ProjectResponseDTO `json:"body"`
}

type GetProjectInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
}

type GetProjectOutput struct {
	Body dto.ProjectResponseDTO `json:"body"`
}

type UpdateProjectInput struct {
	ProjectID string              `path:"projectId" doc:"Project ID"`
	Body      dto.ProjectDraftDTO `json:"body"`
}

type UpdateProjectOutput struct {
	Body dto.ProjectResponseDTO `json:"body"`
}

type DeleteProjectInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
}

type DeleteProjectOutput struct {
	// 204 No Content
}

type SyncProjectInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
}

type SyncProjectOutput struct {
	Body dto.SyncResponseDTO `json:"body"`
}

// Wizard Operations

type ValidateWizardStepInput struct {
	Step string              `path:"step" enum:"details,language,geography,ai_usage,hosting,repository" doc:"Wizard step"`
	Body dto.ProjectDraftDTO `json:"body"`
}

type ValidateWizardStepOutput struct {
	Body dto.WizardStepResponseDTO `json:"body"`
}
