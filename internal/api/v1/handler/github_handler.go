package handler

import (
	"context"

	"policybolt/internal/api/v1/dto"
	"policybolt/internal/api/v1/operation"
	"policybolt/internal/service"

	"github.com/rs/zerolog"
)

type GitHubHandler struct {
	githubService service.GitHubService
	logger        zerolog.Logger
}

func NewGitHubHandler(githubService service.GitHubService, logger zerolog.Logger) *GitHubHandler {
	return &GitHubHandler{
		githubService: githubService,
		logger:        logger,
	}
}

// InstallURL returns the GitHub App installation link for a project.
func (h *GitHubHandler) InstallURL(ctx context.Context, input *operation.InstallURLInput) (*operation.InstallURLOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	url, err := h.githubService.InstallURL(ctx, userID, input.ProjectID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to build install URL")
	}
	return &operation.InstallURLOutput{Body: dto.InstallURLResponseDTO{URL: url}}, nil
}

// Callback completes the installation. The dashboard forwards GitHub's
// redirect query string here with the user's access token.
func (h *GitHubHandler) Callback(ctx context.Context, input *operation.GitHubCallbackInput) (*operation.GitHubCallbackOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.githubService.HandleCallback(ctx, userID, service.CallbackParams{
		InstallationID: input.InstallationID,
		Code:           input.Code,
		SetupAction:    input.SetupAction,
		State:          input.State,
	})
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to complete GitHub installation")
	}
	return &operation.GitHubCallbackOutput{
		Body: dto.GitHubCallbackResponseDTO{
			Status:         res.Status,
			ProjectID:      res.ProjectID,
			InstallationID: res.InstallationID,
		},
	}, nil
}
