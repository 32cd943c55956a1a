package handler

import (
	"context"
	"errors"

	"policybolt/internal/api/v1/dto"
	"policybolt/internal/api/v1/operation"
	"policybolt/internal/service"
	"policybolt/internal/wizard"

	"github.com/rs/zerolog"
)

// ProjectHandler implements project CRUD, wizard validation and manual sync.
type ProjectHandler struct {
	projectService service.ProjectService
	wizard         *wizard.Wizard
	logger         zerolog.Logger
}

func NewProjectHandler(projectService service.ProjectService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		wizard:         wizard.New(),
		logger:         logger,
	}
}

// ValidateWizardStep checks one step of the setup form and returns the
// normalized draft with the neighbouring steps. Field failures are part of
// the 200 body so the form keeps the normalized draft.
func (h *ProjectHandler) ValidateWizardStep(ctx context.Context, input *operation.ValidateWizardStepInput) (*operation.ValidateWizardStepOutput, error) {
	if _, err := getUserIDFromContext(ctx); err != nil {
		return nil, err
	}
	step, err := wizard.ParseStep(input.Step)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to parse wizard step")
	}

	body := dto.WizardStepResponseDTO{Step: string(step), Valid: true}
	draft, err := h.wizard.ValidateStep(step, input.Body.ToDraft())
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		body.Valid = false
		body.Errors = verr.Fields
	case err != nil:
		return nil, toHumaError(h.logger, err, "Failed to validate wizard step")
	}

	if body.Valid {
		next, _ := wizard.Next(step)
		body.NextStep = string(next)
	}
	prev, _ := wizard.Prev(step)
	body.PrevStep = string(prev)
	body.Draft = dto.DraftFromWizard(draft)
	return &operation.ValidateWizardStepOutput{Body: body}, nil
}

func (h *ProjectHandler) CreateProject(ctx context.Context, input *operation.CreateProjectInput) (*operation.CreateProjectOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.projectService.Create(ctx, userID, input.Body.ToDraft())
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to create project")
	}
	return &operation.CreateProjectOutput{Body: dto.NewProjectResponse(p)}, nil
}

func (h *ProjectHandler) ListProjects(ctx context.Context, input *operation.ListProjectsInput) (*operation.ListProjectsOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := h.projectService.List(ctx, userID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to list projects")
	}
	body := make([]dto.ProjectResponseDTO, 0, len(projects))
	for i := range projects {
		body = append(body, dto.NewProjectResponse(&projects[i]))
	}
	return &operation.ListProjectsOutput{Body: body}, nil
}

func (h *ProjectHandler) GetProject(ctx context.Context, input *operation.GetProjectInput) (*operation.GetProjectOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.projectService.Get(ctx, userID, input.ProjectID)
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to get project")
	}
	return &operation.GetProjectOutput{Body: dto.NewProjectResponse(p)}, nil
}

func (h *ProjectHandler) UpdateProject(ctx context.Context, input *operation.UpdateProjectInput) (*operation.UpdateProjectOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.projectService.UpdateConfig(ctx, userID, input.ProjectID, input.Body.ToDraft())
	if err != nil {
		return nil, toHumaError(h.logger, err, "Failed to update project")
	}
	return &operation.UpdateProjectOutput{Body: dto.NewProjectResponse(p)}, nil
}

func (h *ProjectHandler) DeleteProject(ctx context.Context, input *operation.DeleteProjectInput) (*operation.DeleteProjectOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.projectService.Delete(ctx, userID, input.ProjectID); err != nil {
		return nil, toHumaError(h.logger, err, "Failed to delete project")
	}
	return &operation.DeleteProjectOutput{}, nil
}

// SyncProject queues a policy regeneration for a connected project.
func (h *ProjectHandler) SyncProject(ctx context.Context, input *operation.SyncProjectInput) (*operation.SyncProjectOutput, error) {
	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.projectService.RequestSync(ctx, userID, input.ProjectID); err != nil {
		return nil, toHumaError(h.logger, err, "Failed to queue sync")
	}
	return &operation.SyncProjectOutput{Body: dto.SyncResponseDTO{Queued: true}}, nil
}

