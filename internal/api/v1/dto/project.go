package dto

import (
	"time"

	"policybolt/internal/model"
	"policybolt/internal/wizard"
)

// ProjectDraftDTO is the wizard form state. The same shape is used for step
// validation, project creation and updates.
type ProjectDraftDTO struct {
	Name               string   `json:"name,omitempty" doc:"Project name"`
	Purpose            string   `json:"purpose,omitempty" doc:"What the application does"`
	Language           string   `json:"language,omitempty" doc:"Language the policy is written in (ISO 639-1)"`
	GeographyScope     string   `json:"geography_scope,omitempty" doc:"worldwide or regions"`
	Regions            []string `json:"regions,omitempty" doc:"Regions served when geography_scope is regions"`
	UsesAI             bool     `json:"uses_ai,omitempty"`
	AIProviders        []string `json:"ai_providers,omitempty"`
	AIPurposes         []string `json:"ai_purposes,omitempty"`
	HostingProvider    string   `json:"hosting_provider,omitempty"`
	HostingDescription string   `json:"hosting_description,omitempty" doc:"Required when hosting_provider is other"`
	RepositoryURL      string   `json:"repository_url,omitempty" doc:"https://github.com/owner/repo"`
}

func (d ProjectDraftDTO) ToDraft() wizard.Draft {
	return wizard.Draft{
		Name:               d.Name,
		Purpose:            d.Purpose,
		Language:           d.Language,
		GeographyScope:     d.GeographyScope,
		Regions:            d.Regions,
		UsesAI:             d.UsesAI,
		AIProviders:        d.AIProviders,
		AIPurposes:         d.AIPurposes,
		HostingProvider:    d.HostingProvider,
		HostingDescription: d.HostingDescription,
		RepositoryURL:      d.RepositoryURL,
	}
}

func DraftFromWizard(d wizard.Draft) ProjectDraftDTO {
	return ProjectDraftDTO{
		Name:               d.Name,
		Purpose:            d.Purpose,
		Language:           d.Language,
		GeographyScope:     d.GeographyScope,
		Regions:            d.Regions,
		UsesAI:             d.UsesAI,
		AIProviders:        d.AIProviders,
		AIPurposes:         d.AIPurposes,
		HostingProvider:    d.HostingProvider,
		HostingDescription: d.HostingDescription,
		RepositoryURL:      d.RepositoryURL,
	}
}

// WizardStepResponseDTO reports a step check. Invalid steps come back with
// valid=false, the failing fields and no next_step.
type WizardStepResponseDTO struct {
	Step     string              `json:"step"`
	Valid    bool                `json:"valid"`
	Errors   []wizard.FieldError `json:"errors,omitempty"`
	NextStep string              `json:"next_step,omitempty"`
	PrevStep string              `json:"prev_step,omitempty"`
	Draft    ProjectDraftDTO     `json:"draft"`
}

type ProjectResponseDTO struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	RepositoryURL        string              `json:"repository_url"`
	Status               string              `json:"status"`
	GitHubInstallationID *int64              `json:"github_installation_id,omitempty"`
	GitHubSynced         bool                `json:"github_synced"`
	Config               model.ProjectConfig `json:"config"`
	LastSyncedAt         *time.Time          `json:"last_synced_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func NewProjectResponse(p *model.Project) ProjectResponseDTO {
	return ProjectResponseDTO{
		ID:                   p.ID,
		Name:                 p.Name,
		RepositoryURL:        p.RepositoryURL,
		Status:               string(p.Status),
		GitHubInstallationID: p.GitHubInstallationID,
		GitHubSynced:         p.GitHubSynced,
		Config:               p.Config,
		LastSyncedAt:         p.LastSyncedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

type SyncResponseDTO struct {
	Queued bool `json:"queued"`
}
