package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"policybolt/internal/model"
	"policybolt/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultPolicyTitle = "Privacy Policy"

// GeneratedPolicy is a draft posted back by the generation workflow.
type GeneratedPolicy struct {
	ProjectID string
	Title     string
	Content   string
	Version   string
}

type PolicyService interface {
	ListForProject(ctx context.Context, userID, projectID string) ([]model.Policy, error)
	Get(ctx context.Context, userID, policyID string) (*model.Policy, error)
	Approve(ctx context.Context, userID, policyID string) (*model.Policy, error)
	Delete(ctx context.Context, userID, policyID string) error
	DownloadURL(ctx context.Context, userID, policyID string) (string, error)
	// ReceiveGenerated stores a new draft as pending review and notifies the owner.
	ReceiveGenerated(ctx context.Context, in GeneratedPolicy) (*model.Policy, error)

	// ActiveForProject and ActivePolicy back the public embed pages. Both
	// return nil when there is nothing to show.
	ActiveForProject(ctx context.Context, projectID string) (*model.Policy, error)
	ActivePolicy(ctx context.Context, policyID string) (*model.Policy, error)
}

type policyService struct {
	repo         repository.PolicyRepository
	projectSvc   ProjectService
	projectRepo  repository.ProjectRepository
	userRepo     repository.UserRepository
	archive      PolicyArchive
	email        EmailService
	dashboardURL string
	logger       zerolog.Logger
}

func NewPolicyService(
	repo repository.PolicyRepository,
	projectSvc ProjectService,
	projectRepo repository.ProjectRepository,
	userRepo repository.UserRepository,
	archive PolicyArchive,
	email EmailService,
	dashboardURL string,
	logger zerolog.Logger,
) PolicyService {
	return &policyService{
		repo:         repo,
		projectSvc:   projectSvc,
		projectRepo:  projectRepo,
		userRepo:     userRepo,
		archive:      archive,
		email:        email,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		logger:       logger.With().Str("service", "PolicyService").Logger(),
	}
}

func (s *policyService) ListForProject(ctx context.Context, userID, projectID string) ([]model.Policy, error) {
	if _, err := s.projectSvc.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

func (s *policyService) Get(ctx context.Context, userID, policyID string) (*model.Policy, error) {
	if _, err := uuid.Parse(policyID); err != nil {
		return nil, ErrPolicyNotFound
	}
	p, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPolicyNotFound
	}
	if _, err := s.projectSvc.Get(ctx, userID, p.ProjectID); err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *policyService) Approve(ctx context.Context, userID, policyID string) (*model.Policy, error) {
	p, err := s.Get(ctx, userID, policyID)
	if err != nil {
		return nil, err
	}
	if !p.Approvable() {
		return nil, ErrPolicyNotApprovable
	}
	if err := s.repo.Approve(ctx, p.ID); err != nil {
		if errors.Is(err, repository.ErrPolicyNotApprovable) {
			return nil, ErrPolicyNotApprovable
		}
		s.logger.Error().Err(err).Str("policy_id", p.ID).Msg("Failed to approve policy")
		return nil, err
	}
	p.Status = model.PolicyActive

	if _, err := s.archive.Archive(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("policy_id", p.ID).Msg("Approved policy was not archived")
	}
	s.logger.Info().Str("policy_id", p.ID).Str("project_id", p.ProjectID).Msg("Policy approved")
	return p, nil
}

func (s *policyService) Delete(ctx context.Context, userID, policyID string) error {
	p, err := s.Get(ctx, userID, policyID)
	if err != nil {
		return err
	}
	if !p.Deletable() {
		return ErrPolicyActive
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		s.logger.Error().Err(err).Str("policy_id", p.ID).Msg("Failed to delete policy")
		return err
	}
	return nil
}

func (s *policyService) DownloadURL(ctx context.Context, userID, policyID string) (string, error) {
	p, err := s.Get(ctx, userID, policyID)
	if err != nil {
		return "", err
	}
	if p.Status != model.PolicyActive {
		return "", ErrPolicyNotArchived
	}
	return s.archive.DownloadURL(ctx, p)
}

func (s *policyService) ReceiveGenerated(ctx context.Context, in GeneratedPolicy) (*model.Policy, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("generated policy for project %s: %w", in.ProjectID, ErrEmptyPolicyContent)
	}
	if _, err := uuid.Parse(in.ProjectID); err != nil {
		return nil, ErrProjectNotFound
	}
	project, err := s.projectRepo.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	count, err := s.repo.IncrementUpdateCounter(ctx, project.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("project_id", project.ID).Msg("Failed to increment policy update counter")
		return nil, err
	}

	p := &model.Policy{
		ProjectID: project.ID,
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Version:   strings.TrimSpace(in.Version),
		Status:    model.PolicyPendingReview,
	}
	if p.Title == "" {
		p.Title = defaultPolicyTitle
	}
	if p.Version == "" {
		p.Version = fmt.Sprintf("v%d", count)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("project_id", project.ID).Msg("Failed to store generated policy")
		return nil, err
	}
	s.logger.Info().Str("project_id", project.ID).Str("policy_id", p.ID).Str("version", p.Version).Msg("Generated policy stored")

	s.notifyReady(ctx, project, p)
	return p, nil
}

func (s *policyService) notifyReady(ctx context.Context, project *model.Project, p *model.Policy) {
	owner, err := s.userRepo.GetUserByID(ctx, project.UserID)
	if err != nil || owner == nil {
		s.logger.Warn().Err(err).Str("user_id", project.UserID).Msg("Owner not found; skipping policy ready email")
		return
	}
	err = s.email.Send(ctx, owner.Email, TemplatePolicyReady, EmailData{
		Name:        owner.Name,
		ProjectName: project.Name,
		PolicyTitle: p.Title,
		PolicyURL:   fmt.Sprintf("%s/projects/%s/policies/%s", s.dashboardURL, project.ID, p.ID),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("policy_id", p.ID).Msg("Failed to send policy ready email")
	}
}

func (s *policyService) ActiveForProject(ctx context.Context, projectID string) (*model.Policy, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, nil
	}
	return s.repo.GetActiveByProject(ctx, projectID)
}

func (s *policyService) ActivePolicy(ctx context.Context, policyID string) (*model.Policy, error) {
	if _, err := uuid.Parse(policyID); err != nil {
		return nil, nil
	}
	p, err := s.repo.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Status != model.PolicyActive {
		return nil, nil
	}
	return p, nil
}
