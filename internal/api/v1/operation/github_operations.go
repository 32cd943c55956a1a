package operation

import "policybolt/internal/api/v1/dto"

type InstallURLInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
}

type InstallURLOutput struct {
	Body dto.InstallURLResponseDTO `json:"body"`
}

// GitHubCallbackInput mirrors the query string GitHub appends to the app's setup URL.
type GitHubCallbackInput struct {
	InstallationID int64  `query:"installation_id" doc:"GitHub App installation ID"`
	Code           string `query:"code" doc:"OAuth code for the installing user"`
	SetupAction    string `query:"setup_action" doc:"install, update or request"`
	State          string `query:"state" required:"true" doc:"Signed state issued by the install-url operation"`
}

type GitHubCallbackOutput struct {
	Body dto.GitHubCallbackResponseDTO `json:"body"`
}
