package service

import (
	"context"

	"policybolt/internal/model"
	"policybolt/internal/repository"

	"github.com/rs/zerolog"
)

type UserService interface {
	// Upsert creates or refreshes the profile. A welcome email goes out the
	// first time a profile is created.
	Upsert(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	email    EmailService
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, email EmailService, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		email:    email,
		logger:   logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) Upsert(ctx context.Context, u *model.User) (*model.User, error) {
	existing, err := s.userRepo.GetUserByID(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpsertUser(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.UserID).Msg("Failed to upsert user")
		return nil, err
	}
	if existing == nil {
		if err := s.email.Send(ctx, u.Email, TemplateWelcome, EmailData{Name: u.Name}); err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.UserID).Msg("Failed to send welcome email")
		}
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
