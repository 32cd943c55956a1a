package service

import (
	"errors"

	"policybolt/internal/repository"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrPolicyNotFound       = errors.New("policy not found")
	ErrPolicyActive         = errors.New("active policy cannot be deleted")
	ErrPolicyNotApprovable  = errors.New("policy is not pending review or inactive")
	ErrPolicyNotArchived    = errors.New("policy has not been archived")
	ErrSubscriptionRequired = errors.New("an active subscription is required")
	ErrNoSubscription       = errors.New("no subscription found")
	ErrNoStripeCustomer     = errors.New("no stripe customer for user")
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrProjectLimitReached  = repository.ErrProjectLimitReached
	ErrInvalidState         = errors.New("invalid or expired github state")
	ErrInstallationMismatch = errors.New("installation does not belong to the github user")
	ErrNotConnected         = errors.New("project is not connected to github")
	ErrProjectInactive      = errors.New("project is inactive")
	ErrEmptyPolicyContent   = errors.New("policy content is empty")
	ErrUnknownTemplate      = errors.New("unknown email template")
)
