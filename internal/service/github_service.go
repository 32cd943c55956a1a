package service

import (
	"context"
	"fmt"
	"time"

	"policybolt/internal/githubapp"
	"policybolt/internal/model"
	"policybolt/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	stateAudience = "policybolt-github-install"
	stateTTL      = 15 * time.Minute

	SetupActionInstall = "install"
	SetupActionUpdate  = "update"
	SetupActionRequest = "request"

	ConnectionConnected = "connected"
	ConnectionPending   = "pending"
)

// InstallState is carried through the GitHub App installation redirect.
type InstallState struct {
	ProjectID string `json:"project_id"`
	jwt.RegisteredClaims
}

// CallbackParams are the query parameters GitHub appends to the setup URL.
type CallbackParams struct {
	InstallationID int64
	Code           string
	SetupAction    string
	State          string
}

type CallbackResult struct {
	Status         string
	ProjectID      string
	InstallationID int64
}

type GitHubService interface {
	// InstallURL returns the app installation link for the project.
	InstallURL(ctx context.Context, userID, projectID string) (string, error)
	HandleCallback(ctx context.Context, userID string, in CallbackParams) (*CallbackResult, error)
	// RefreshToken mints and stores a fresh installation token for the project.
	RefreshToken(ctx context.Context, p *model.Project) (string, error)
}

type githubService struct {
	provider    githubapp.ClientProvider
	projectSvc  ProjectService
	projectRepo repository.ProjectRepository
	subSvc      SubscriptionService
	tokens      TokenStore
	appSlug     string
	hostname    string
	stateSecret []byte
	now         func() time.Time
	logger      zerolog.Logger
}

func NewGitHubService(
	provider githubapp.ClientProvider,
	projectSvc ProjectService,
	projectRepo repository.ProjectRepository,
	subSvc SubscriptionService,
	tokens TokenStore,
	appSlug, hostname, stateSecret string,
	logger zerolog.Logger,
) GitHubService {
	return &githubService{
		provider:    provider,
		projectSvc:  projectSvc,
		projectRepo: projectRepo,
		subSvc:      subSvc,
		tokens:      tokens,
		appSlug:     appSlug,
		hostname:    hostname,
		stateSecret: []byte(stateSecret),
		now:         time.Now,
		logger:      logger.With().Str("service", "GitHubService").Logger(),
	}
}

func (s *githubService) signState(userID, projectID string) (string, error) {
	now := s.now()
	claims := InstallState{
		ProjectID: projectID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.stateSecret)
}

func (s *githubService) parseState(raw string) (*InstallState, error) {
	var claims InstallState
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.stateSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.ProjectID == "" || claims.Subject == "" {
		return nil, ErrInvalidState
	}
	return &claims, nil
}

func (s *githubService) InstallURL(ctx context.Context, userID, projectID string) (string, error) {
	if _, err := s.projectSvc.Get(ctx, userID, projectID); err != nil {
		return "", err
	}
	state, err := s.signState(userID, projectID)
	if err != nil {
		return "", fmt.Errorf("sign install state: %w", err)
	}
	return githubapp.InstallURL(s.hostname, s.appSlug, state), nil
}

func (s *githubService) HandleCallback(ctx context.Context, userID string, in CallbackParams) (*CallbackResult, error) {
	state, err := s.parseState(in.State)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Rejected github callback state")
		return nil, err
	}
	if state.Subject != userID {
		s.logger.Warn().Str("user_id", userID).Str("state_user_id", state.Subject).Msg("Github callback state issued to another user")
		return nil, ErrInvalidState
	}
	p, err := s.projectSvc.Get(ctx, userID, state.ProjectID)
	if err != nil {
		return nil, err
	}

	if in.SetupAction == SetupActionRequest {
		s.logger.Info().Str("project_id", p.ID).Msg("Github installation awaiting organization approval")
		return &CallbackResult{Status: ConnectionPending, ProjectID: p.ID}, nil
	}
	if in.InstallationID <= 0 || in.Code == "" {
		return nil, fmt.Errorf("%w: missing installation_id or code", ErrInvalidState)
	}
	if _, err := s.subSvc.RequireAccess(ctx, userID); err != nil {
		return nil, err
	}

	userToken, err := s.provider.ExchangeCode(ctx, in.Code)
	if err != nil {
		s.logger.Error().Err(err).Str("project_id", p.ID).Msg("Failed to exchange github oauth code")
		return nil, err
	}
	client, err := s.provider.UserClient(ctx, userToken)
	if err != nil {
		return nil, fmt.Errorf("create github user client: %w", err)
	}
	owned, err := githubapp.InstallationOwnedBy(ctx, client, in.InstallationID)
	if err != nil {
		s.logger.Error().Err(err).Int64("installation_id", in.InstallationID).Msg("Failed to list github user installations")
		return nil, err
	}
	if !owned {
		s.logger.Warn().Int64("installation_id", in.InstallationID).Str("user_id", userID).Msg("Installation id doesn't match any installation of the github user")
		return nil, ErrInstallationMismatch
	}

	if err := s.projectRepo.SetInstallation(ctx, p.ID, in.InstallationID); err != nil {
		s.logger.Error().Err(err).Str("project_id", p.ID).Msg("Failed to record installation")
		return nil, err
	}
	p.GitHubInstallationID = &in.InstallationID
	p.GitHubSynced = true
	p.Status = model.ProjectActive

	if _, err := s.RefreshToken(ctx, p); err != nil {
		return nil, err
	}
	if err := s.projectSvc.EnqueueGeneration(ctx, p, "github_connected"); err != nil {
		return nil, err
	}

	s.logger.Info().Str("project_id", p.ID).Int64("installation_id", in.InstallationID).Msg("Github repository connected")
	return &CallbackResult{Status: ConnectionConnected, ProjectID: p.ID, InstallationID: in.InstallationID}, nil
}

func (s *githubService) RefreshToken(ctx context.Context, p *model.Project) (string, error) {
	if !p.Connected() {
		return "", ErrNotConnected
	}
	token, expiresAt, err := s.provider.InstallationToken(ctx, *p.GitHubInstallationID)
	if err != nil {
		s.logger.Error().Err(err).Str("project_id", p.ID).Msg("Failed to mint installation token")
		return "", err
	}
	if err := s.tokens.Put(ctx, repository.GitHubToken{ProjectID: p.ID, Token: token, ExpiresAt: expiresAt}); err != nil {
		s.logger.Error().Err(err).Str("project_id", p.ID).Msg("Failed to store installation token")
		return "", err
	}
	return token, nil
}
