package dto

type InstallURLResponseDTO struct {
	URL string `json:"url"`
}

type GitHubCallbackResponseDTO struct {
	Status         string `json:"status" enum:"connected,pending"`
	ProjectID      string `json:"project_id"`
	InstallationID int64  `json:"installation_id,omitempty"`
}
