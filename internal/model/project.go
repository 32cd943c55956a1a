package model

import "time"

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectInactive ProjectStatus = "inactive"
)

// Project associates one monitored GitHub repository with its owner.
type Project struct {
	ID                   string        `db:"id" json:"id"`
	UserID               string        `db:"user_id" json:"user_id"`
	Name                 string        `db:"name" json:"name"`
	RepositoryURL        string        `db:"repository_url" json:"repository_url"`
	GitHubInstallationID *int64        `db:"github_installation_id" json:"github_installation_id,omitempty"`
	Config               ProjectConfig `db:"config" json:"config"`
	Status               ProjectStatus `db:"status" json:"status"`
	GitHubSynced         bool          `db:"github_synced" json:"github_synced"`
	LastSyncedAt         *time.Time    `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// Connected reports whether the project has a GitHub App installation.
func (p *Project) Connected() bool {
	return p.GitHubInstallationID != nil && *p.GitHubInstallationID > 0
}

// ProjectConfig is the JSON blob accumulated by the setup wizard.
type ProjectConfig struct {
	Purpose   string          `json:"purpose"`
	Language  string          `json:"language"`
	Geography GeographyConfig `json:"geography"`
	AI        AIUsageConfig   `json:"ai_usage"`
	Hosting   HostingConfig   `json:"hosting"`
}

type GeographyConfig struct {
	Scope      string   `json:"scope"`
	Regions    []string `json:"regions"`
	Frameworks []string `json:"frameworks"`
}

type AIUsageConfig struct {
	UsesAI    bool     `json:"uses_ai"`
	Providers []string `json:"providers"`
	Purposes  []string `json:"purposes"`
}

type HostingConfig struct {
	Provider    string `json:"provider"`
	Description string `json:"description,omitempty"`
}

// Repository identifies a GitHub repository by owner and name.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// URL returns the canonical https URL of the repository.
func (r Repository) URL() string {
	return "https://github.com/" + r.FullName()
}
