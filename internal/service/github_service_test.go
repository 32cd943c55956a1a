package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"policybolt/internal/model"

	"github.com/google/go-github/v61/github"
	"github.com/migueleliasweb/go-github-mock/src/mock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	mocklib "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mocklib.Mock
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) UserClient(ctx context.Context, token string) (*github.Client, error) {
	args := m.Called(ctx, token)
	client, _ := args.Get(0).(*github.Client)
	return client, args.Error(1)
}

func (m *mockProvider) InstallationToken(ctx context.Context, installationID int64) (string, time.Time, error) {
	args := m.Called(ctx, installationID)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type userInstallations struct {
	TotalCount    int                    `json:"total_count"`
	Installations []*github.Installation `json:"installations"`
}

func clientWithInstallations(ids ...int64) *github.Client {
	page := userInstallations{TotalCount: len(ids)}
	for _, id := range ids {
		page.Installations = append(page.Installations, &github.Installation{ID: github.Int64(id)})
	}
	return github.NewClient(mock.NewMockedHTTPClient(
		mock.WithRequestMatch(mock.GetUserInstallations, page),
	))
}

type githubFixture struct {
	svc      *githubService
	provider *mockProvider
	projects *projectFixture
	project  *model.Project
}

func newGitHubFixture(subs ...*model.Subscription) *githubFixture {
	pf := newProjectFixture(subs...)
	provider := &mockProvider{}
	subSvc := NewSubscriptionService(pf.subs, testPlans(), zerolog.Nop())
	svc := NewGitHubService(provider, pf.svc, pf.repo, subSvc, pf.tokens, "policybolt", "github.com", "state-secret", zerolog.Nop())
	return &githubFixture{
		svc:      svc.(*githubService),
		provider: provider,
		projects: pf,
		project:  pf.addProject("owner", 0),
	}
}

func stateFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestInstallURL(t *testing.T) {
	f := newGitHubFixture()

	raw, err := f.svc.InstallURL(context.Background(), "owner", f.project.ID)
	require.NoError(t, err)
	assert.Contains(t, raw, "https://github.com/apps/policybolt/installations/new")

	state, err := f.svc.parseState(stateFromURL(t, raw))
	require.NoError(t, err)
	assert.Equal(t, "owner", state.Subject)
	assert.Equal(t, f.project.ID, state.ProjectID)

	_, err = f.svc.InstallURL(context.Background(), "intruder", f.project.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestHandleCallbackRejectsState(t *testing.T) {
	ctx := context.Background()
	f := newGitHubFixture(activeSub("owner", PlanPro))

	t.Run("tampered", func(t *testing.T) {
		state, err := f.svc.signState("owner", f.project.ID)
		require.NoError(t, err)
		_, err = f.svc.HandleCallback(ctx, "owner", CallbackParams{State: state + "x", InstallationID: 1, Code: "c"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("expired", func(t *testing.T) {
		f.svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
		state, err := f.svc.signState("owner", f.project.ID)
		f.svc.now = time.Now
		require.NoError(t, err)
		_, err = f.svc.HandleCallback(ctx, "owner", CallbackParams{State: state, InstallationID: 1, Code: "c"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("issued to another user", func(t *testing.T) {
		state, err := f.svc.signState("someone", f.project.ID)
		require.NoError(t, err)
		_, err = f.svc.HandleCallback(ctx, "owner", CallbackParams{State: state, InstallationID: 1, Code: "c"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("missing code", func(t *testing.T) {
		state, err := f.svc.signState("owner", f.project.ID)
		require.NoError(t, err)
		_, err = f.svc.HandleCallback(ctx, "owner", CallbackParams{State: state, InstallationID: 1, SetupAction: SetupActionInstall})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	f.provider.AssertNotCalled(t, "ExchangeCode", mocklib.Anything, mocklib.Anything)
}

func TestHandleCallbackPendingRequest(t *testing.T) {
	f := newGitHubFixture(activeSub("owner", PlanPro))
	state, err := f.svc.signState("owner", f.project.ID)
	require.NoError(t, err)

	res, err := f.svc.HandleCallback(context.Background(), "owner", CallbackParams{State: state, SetupAction: SetupActionRequest})
	require.NoError(t, err)
	assert.Equal(t, ConnectionPending, res.Status)
	assert.False(t, f.projects.repo.projects[f.project.ID].Connected())
}

func TestHandleCallbackInstallationMismatch(t *testing.T) {
	ctx := context.Background()
	f := newGitHubFixture(activeSub("owner", PlanPro))
	state, err := f.svc.signState("owner", f.project.ID)
	require.NoError(t, err)

	f.provider.On("ExchangeCode", mocklib.Anything, "oauth-code").Return("gho_user", nil)
	f.provider.On("UserClient", mocklib.Anything, "gho_user").Return(clientWithInstallations(11), nil)

	_, err = f.svc.HandleCallback(ctx, "owner", CallbackParams{State: state, InstallationID: 42, Code: "oauth-code", SetupAction: SetupActionInstall})
	assert.ErrorIs(t, err, ErrInstallationMismatch)
	assert.False(t, f.projects.repo.projects[f.project.ID].Connected())
	assert.Empty(t, f.projects.queue.sent)
	f.provider.AssertExpectations(t)
}

func TestHandleCallbackRequiresSubscription(t *testing.T) {
	f := newGitHubFixture()
	state, err := f.svc.signState("owner", f.project.ID)
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), "owner", CallbackParams{State: state, InstallationID: 42, Code: "c"})
	assert.ErrorIs(t, err, ErrSubscriptionRequired)
}

func TestHandleCallbackConnects(t *testing.T) {
	ctx := context.Background()
	f := newGitHubFixture(activeSub("owner", PlanPro))
	state, err := f.svc.signState("owner", f.project.ID)
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour).UTC()
	f.provider.On("ExchangeCode", mocklib.Anything, "oauth-code").Return("gho_user", nil)
	f.provider.On("UserClient", mocklib.Anything, "gho_user").Return(clientWithInstallations(11, 42), nil)
	f.provider.On("InstallationToken", mocklib.Anything, int64(42)).Return("ghs_install", expires, nil)

	res, err := f.svc.HandleCallback(ctx, "owner", CallbackParams{State: state, InstallationID: 42, Code: "oauth-code", SetupAction: SetupActionInstall})
	require.NoError(t, err)
	assert.Equal(t, ConnectionConnected, res.Status)
	assert.Equal(t, int64(42), res.InstallationID)

	stored := f.projects.repo.projects[f.project.ID]
	require.True(t, stored.Connected())
	assert.True(t, stored.GitHubSynced)

	tok, ok := f.projects.tokens.tokens[f.project.ID]
	require.True(t, ok)
	assert.Equal(t, "ghs_install", tok.Token)
	assert.Equal(t, expires, tok.ExpiresAt)

	require.Len(t, f.projects.queue.sent, 1)
	var job model.GenerationJob
	require.NoError(t, json.Unmarshal(f.projects.queue.sent[0].Payload, &job))
	assert.Equal(t, "github_connected", job.Reason)
	f.provider.AssertExpectations(t)
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newGitHubFixture()

	_, err := f.svc.RefreshToken(ctx, f.project)
	assert.ErrorIs(t, err, ErrNotConnected)

	connected := f.projects.addProject("owner", 9)
	f.provider.On("InstallationToken", mocklib.Anything, int64(9)).Return("", time.Time{}, errors.New("bad key")).Once()
	_, err = f.svc.RefreshToken(ctx, connected)
	assert.Error(t, err)
	assert.NotContains(t, f.projects.tokens.tokens, connected.ID)
}
