package service

import (
	"context"
	"testing"

	"policybolt/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationFixture() (NotificationService, *fakeEmail, *projectFixture) {
	pf := newProjectFixture()
	email := &fakeEmail{}
	users := NewUserService(newFakeUserRepo(&model.User{UserID: "owner", Name: "Ada", Email: "ada@example.com"}), email, zerolog.Nop())
	return NewNotificationService(users, pf.svc, email, "https://app.policybolt.dev", zerolog.Nop()), email, pf
}

func TestSendToUser(t *testing.T) {
	ctx := context.Background()
	svc, email, pf := newNotificationFixture()
	p := pf.addProject("owner", 0)

	require.NoError(t, svc.SendToUser(ctx, "owner", "policy_ready", p.ID))
	require.Len(t, email.sent, 1)
	assert.Equal(t, "ada@example.com", email.sent[0].To)
	assert.Equal(t, "proj", email.sent[0].Data.ProjectName)
	assert.Equal(t, "https://app.policybolt.dev/projects/"+p.ID+"/policies", email.sent[0].Data.PolicyURL)
}

func TestSendToUserRejects(t *testing.T) {
	ctx := context.Background()
	svc, email, pf := newNotificationFixture()
	other := pf.addProject("someone", 0)

	assert.ErrorIs(t, svc.SendToUser(ctx, "owner", "newsletter", ""), ErrUnknownTemplate)
	assert.ErrorIs(t, svc.SendToUser(ctx, "ghost", "welcome", ""), ErrUserNotFound)
	assert.ErrorIs(t, svc.SendToUser(ctx, "owner", "welcome", other.ID), ErrProjectNotFound)
	assert.Empty(t, email.sent)
}
