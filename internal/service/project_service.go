package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"policybolt/internal/model"
	"policybolt/internal/pgmq"
	"policybolt/internal/repository"
	"policybolt/internal/wizard"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ProjectService interface {
	Create(ctx context.Context, userID string, d wizard.Draft) (*model.Project, error)
	List(ctx context.Context, userID string) ([]model.Project, error)
	// Get returns the project when it exists and belongs to userID.
	Get(ctx context.Context, userID, projectID string) (*model.Project, error)
	UpdateConfig(ctx context.Context, userID, projectID string, d wizard.Draft) (*model.Project, error)
	Delete(ctx context.Context, userID, projectID string) error
	// RequestSync queues a policy regeneration for a connected project.
	RequestSync(ctx context.Context, userID, projectID string) error
	EnqueueGeneration(ctx context.Context, p *model.Project, reason string) error
	// DeactivateAll marks every project of the user inactive, clears GitHub
	// sync and drops stored installation tokens.
	DeactivateAll(ctx context.Context, userID string) ([]string, error)
}

type projectService struct {
	repo      repository.ProjectRepository
	subSvc    SubscriptionService
	tokens    TokenStore
	queue     pgmq.Queue
	queueName string
	wizard    *wizard.Wizard
	now       func() time.Time
	logger    zerolog.Logger
}

func NewProjectService(
	repo repository.ProjectRepository,
	subSvc SubscriptionService,
	tokens TokenStore,
	queue pgmq.Queue,
	queueName string,
	logger zerolog.Logger,
) ProjectService {
	return &projectService{
		repo:      repo,
		subSvc:    subSvc,
		tokens:    tokens,
		queue:     queue,
		queueName: queueName,
		wizard:    wizard.New(),
		now:       time.Now,
		logger:    logger.With().Str("service", "ProjectService").Logger(),
	}
}

func (s *projectService) Create(ctx context.Context, userID string, d wizard.Draft) (*model.Project, error) {
	d, err := s.wizard.Validate(d)
	if err != nil {
		return nil, err
	}
	plan, err := s.subSvc.RequireAccess(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &model.Project{
		UserID:        userID,
		Name:          d.Name,
		RepositoryURL: d.RepositoryURL,
		Config:        wizard.Config(d),
	}
	if err := s.repo.CreateWithinLimit(ctx, p, plan.MaxProjects); err != nil {
		if !errors.Is(err, ErrProjectLimitReached) {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create project")
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("project_id", p.ID).Msg("Project created")
	return p, nil
}

func (s *projectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *projectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, ErrProjectNotFound
	}
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.UserID != userID {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (s *projectService) UpdateConfig(ctx context.Context, userID, projectID string, d wizard.Draft) (*model.Project, error) {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	d, err = s.wizard.Validate(d)
	if err != nil {
		return nil, err
	}

	p.Name = d.Name
	p.RepositoryURL = d.RepositoryURL
	p.Config = wizard.Config(d)
	if err := s.repo.UpdateDetails(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to update project")
		return nil, err
	}
	return p, nil
}

func (s *projectService) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, projectID); err != nil {
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to delete stored github token")
		return err
	}
	if err := s.repo.Delete(ctx, projectID); err != nil {
		s.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to delete project")
		return err
	}
	return nil
}

func (s *projectService) RequestSync(ctx context.Context, userID, projectID string) error {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !p.Connected() {
		return ErrNotConnected
	}
	// Deactivated projects come back through the GitHub callback, which
	// refreshes the installation and sets them active again.
	if p.Status != model.ProjectActive {
		return ErrProjectInactive
	}
	if _, err := s.subSvc.RequireAccess(ctx, userID); err != nil {
		return err
	}
	return s.EnqueueGeneration(ctx, p, "manual")
}

func (s *projectService) EnqueueGeneration(ctx context.Context, p *model.Project, reason string) error {
	job := model.GenerationJob{
		ProjectID:   p.ID,
		UserID:      p.UserID,
		Reason:      reason,
		RequestedAt: s.now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal generation job: %w", err)
	}
	if err := s.queue.Send(ctx, s.queueName, payload); err != nil {
		s.logger.Error().Err(err).Str("project_id", p.ID).Msg("Failed to enqueue generation job")
		return err
	}
	s.logger.Info().Str("project_id", p.ID).Str("reason", reason).Msg("Generation job enqueued")
	return nil
}

func (s *projectService) DeactivateAll(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.repo.DeactivateAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to deactivate projects")
		return nil, err
	}
	if err := s.tokens.Delete(ctx, ids...); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete github tokens")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Int("projects", len(ids)).Msg("Projects deactivated")
	return ids, nil
}
