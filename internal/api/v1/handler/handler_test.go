package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"policybolt/internal/middleware"
	"policybolt/internal/model"
	"policybolt/internal/service"
	"policybolt/internal/wizard"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	mocklib "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = "3f0c1e9a-5b7d-4a52-9d55-0b1f2b7f6a10"

// newTestAPI returns a router whose requests carry userID as the
// authenticated user. An empty userID leaves the request anonymous.
func newTestAPI(userID string) (*chi.Mux, huma.API) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	return r, humachi.New(r, huma.DefaultConfig("test", "test"))
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type mockProjectService struct {
	mocklib.Mock
}

func (m *mockProjectService) Create(ctx context.Context, userID string, d wizard.Draft) (*model.Project, error) {
	args := m.Called(ctx, userID, d)
	p, _ := args.Get(0).(*model.Project)
	return p, args.Error(1)
}

func (m *mockProjectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	args := m.Called(ctx, userID)
	ps, _ := args.Get(0).([]model.Project)
	return ps, args.Error(1)
}

func (m *mockProjectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	args := m.Called(ctx, userID, projectID)
	p, _ := args.Get(0).(*model.Project)
	return p, args.Error(1)
}

func (m *mockProjectService) UpdateConfig(ctx context.Context, userID, projectID string, d wizard.Draft) (*model.Project, error) {
	args := m.Called(ctx, userID, projectID, d)
	p, _ := args.Get(0).(*model.Project)
	return p, args.Error(1)
}

func (m *mockProjectService) Delete(ctx context.Context, userID, projectID string) error {
	return m.Called(ctx, userID, projectID).Error(0)
}

func (m *mockProjectService) RequestSync(ctx context.Context, userID, projectID string) error {
	return m.Called(ctx, userID, projectID).Error(0)
}

func (m *mockProjectService) EnqueueGeneration(ctx context.Context, p *model.Project, reason string) error {
	return m.Called(ctx, p, reason).Error(0)
}

func (m *mockProjectService) DeactivateAll(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type mockPolicyService struct {
	mocklib.Mock
}

func (m *mockPolicyService) ListForProject(ctx context.Context, userID, projectID string) ([]model.Policy, error) {
	args := m.Called(ctx, userID, projectID)
	ps, _ := args.Get(0).([]model.Policy)
	return ps, args.Error(1)
}

func (m *mockPolicyService) Get(ctx context.Context, userID, policyID string) (*model.Policy, error) {
	args := m.Called(ctx, userID, policyID)
	p, _ := args.Get(0).(*model.Policy)
	return p, args.Error(1)
}

func (m *mockPolicyService) Approve(ctx context.Context, userID, policyID string) (*model.Policy, error) {
	args := m.Called(ctx, userID, policyID)
	p, _ := args.Get(0).(*model.Policy)
	return p, args.Error(1)
}

func (m *mockPolicyService) Delete(ctx context.Context, userID, policyID string) error {
	return m.Called(ctx, userID, policyID).Error(0)
}

func (m *mockPolicyService) DownloadURL(ctx context.Context, userID, policyID string) (string, error) {
	args := m.Called(ctx, userID, policyID)
	return args.String(0), args.Error(1)
}

func (m *mockPolicyService) ReceiveGenerated(ctx context.Context, in service.GeneratedPolicy) (*model.Policy, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(*model.Policy)
	return p, args.Error(1)
}

func (m *mockPolicyService) ActiveForProject(ctx context.Context, projectID string) (*model.Policy, error) {
	args := m.Called(ctx, projectID)
	p, _ := args.Get(0).(*model.Policy)
	return p, args.Error(1)
}

func (m *mockPolicyService) ActivePolicy(ctx context.Context, policyID string) (*model.Policy, error) {
	args := m.Called(ctx, policyID)
	p, _ := args.Get(0).(*model.Policy)
	return p, args.Error(1)
}

func registerProjectRoutes(api huma.API, h *ProjectHandler) {
	huma.Register(api, huma.Operation{OperationID: "validateWizardStep", Method: http.MethodPost, Path: "/v1/projects/wizard/{step}"}, h.ValidateWizardStep)
	huma.Register(api, huma.Operation{OperationID: "createProject", Method: http.MethodPost, Path: "/v1/projects", DefaultStatus: 201}, h.CreateProject)
	huma.Register(api, huma.Operation{OperationID: "getProject", Method: http.MethodGet, Path: "/v1/projects/{projectId}"}, h.GetProject)
	huma.Register(api, huma.Operation{OperationID: "syncProject", Method: http.MethodPost, Path: "/v1/projects/{projectId}/sync", DefaultStatus: 202}, h.SyncProject)
}

func registerPolicyRoutes(api huma.API, h *PolicyHandler) {
	huma.Register(api, huma.Operation{OperationID: "approvePolicy", Method: http.MethodPost, Path: "/v1/policies/{policyId}/approve"}, h.ApprovePolicy)
	huma.Register(api, huma.Operation{OperationID: "deletePolicy", Method: http.MethodDelete, Path: "/v1/policies/{policyId}", DefaultStatus: 204}, h.DeletePolicy)
	huma.Register(api, huma.Operation{OperationID: "receiveGeneratedPolicy", Method: http.MethodPost, Path: "/webhooks/n8n/policies", DefaultStatus: 201}, h.ReceiveGeneratedPolicy)
}

func TestValidateWizardStep(t *testing.T) {
	r, api := newTestAPI(testUserID)
	registerProjectRoutes(api, NewProjectHandler(&mockProjectService{}, zerolog.Nop()))

	t.Run("valid step returns neighbours", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/v1/projects/wizard/language", map[string]any{"language": " EN "})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Step     string `json:"step"`
			Valid    bool   `json:"valid"`
			NextStep string `json:"next_step"`
			PrevStep string `json:"prev_step"`
			Draft    struct {
				Language string `json:"language"`
			} `json:"draft"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Valid)
		assert.Equal(t, "geography", body.NextStep)
		assert.Equal(t, "details", body.PrevStep)
		assert.Equal(t, "en", body.Draft.Language)
	})

	t.Run("invalid step keeps the draft", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/v1/projects/wizard/details", map[string]any{"name": "   ", "purpose": "  Shop  "})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Valid  bool `json:"valid"`
			Errors []struct {
				Field string `json:"field"`
			} `json:"errors"`
			NextStep string `json:"next_step"`
			Draft    struct {
				Purpose string `json:"purpose"`
			} `json:"draft"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Valid)
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "name", body.Errors[0].Field)
		assert.Empty(t, body.NextStep)
		assert.Equal(t, "Shop", body.Draft.Purpose)
	})
}

func TestCreateProjectRequiresSubscription(t *testing.T) {
	svc := &mockProjectService{}
	svc.On("Create", mocklib.Anything, testUserID, mocklib.AnythingOfType("wizard.Draft")).
		Return(nil, service.ErrSubscriptionRequired)

	r, api := newTestAPI(testUserID)
	registerProjectRoutes(api, NewProjectHandler(svc, zerolog.Nop()))

	rec := do(t, r, http.MethodPost, "/v1/projects", map[string]any{"name": "Shop"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreateProjectLimitReached(t *testing.T) {
	svc := &mockProjectService{}
	svc.On("Create", mocklib.Anything, testUserID, mocklib.Anything).Return(nil, service.ErrProjectLimitReached)

	r, api := newTestAPI(testUserID)
	registerProjectRoutes(api, NewProjectHandler(svc, zerolog.Nop()))

	rec := do(t, r, http.MethodPost, "/v1/projects", map[string]any{"name": "Shop"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetProject(t *testing.T) {
	svc := &mockProjectService{}
	now := time.Now().UTC()
	svc.On("Get", mocklib.Anything, testUserID, "p-1").Return(&model.Project{
		ID:            "p-1",
		UserID:        testUserID,
		Name:          "Shop",
		RepositoryURL: "https://github.com/acme/shop",
		Status:        model.ProjectActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil)
	svc.On("Get", mocklib.Anything, testUserID, "missing").Return(nil, service.ErrProjectNotFound)

	r, api := newTestAPI(testUserID)
	registerProjectRoutes(api, NewProjectHandler(svc, zerolog.Nop()))

	rec := do(t, r, http.MethodGet, "/v1/projects/p-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"repository_url":"https://github.com/acme/shop"`)

	rec = do(t, r, http.MethodGet, "/v1/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncProject(t *testing.T) {
	svc := &mockProjectService{}
	svc.On("RequestSync", mocklib.Anything, testUserID, "p-1").Return(nil)
	svc.On("RequestSync", mocklib.Anything, testUserID, "p-2").Return(service.ErrNotConnected)
	svc.On("RequestSync", mocklib.Anything, testUserID, "p-3").Return(service.ErrProjectInactive)

	r, api := newTestAPI(testUserID)
	registerProjectRoutes(api, NewProjectHandler(svc, zerolog.Nop()))

	rec := do(t, r, http.MethodPost, "/v1/projects/p-1/sync", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queued":true`)

	rec = do(t, r, http.MethodPost, "/v1/projects/p-2/sync", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/projects/p-3/sync", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "reconnect GitHub")
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	r, api := newTestAPI("")
	registerProjectRoutes(api, NewProjectHandler(&mockProjectService{}, zerolog.Nop()))

	rec := do(t, r, http.MethodGet, "/v1/projects/p-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPolicyApproval(t *testing.T) {
	svc := &mockPolicyService{}
	svc.On("Approve", mocklib.Anything, testUserID, "pol-1").Return(&model.Policy{
		ID: "pol-1", ProjectID: "p-1", Title: "Privacy Policy", Version: "v2", Status: model.PolicyActive,
	}, nil)
	svc.On("Approve", mocklib.Anything, testUserID, "pol-2").Return(nil, service.ErrPolicyNotApprovable)

	r, api := newTestAPI(testUserID)
	registerPolicyRoutes(api, NewPolicyHandler(svc, zerolog.Nop()))

	rec := do(t, r, http.MethodPost, "/v1/policies/pol-1/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"active"`)

	rec = do(t, r, http.MethodPost, "/v1/policies/pol-2/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteActivePolicyRefused(t *testing.T) {
	svc := &mockPolicyService{}
	svc.On("Delete", mocklib.Anything, testUserID, "pol-1").Return(service.ErrPolicyActive)
	svc.On("Delete", mocklib.Anything, testUserID, "pol-2").Return(nil)

	r, api := newTestAPI(testUserID)
	registerPolicyRoutes(api, NewPolicyHandler(svc, zerolog.Nop()))

	rec := do(t, r, http.MethodDelete, "/v1/policies/pol-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodDelete, "/v1/policies/pol-2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReceiveGeneratedPolicy(t *testing.T) {
	projectID := "8d7e2a4c-1f3b-4c6d-9e8f-0a1b2c3d4e5f"
	svc := &mockPolicyService{}
	svc.On("ReceiveGenerated", mocklib.Anything, service.GeneratedPolicy{
		ProjectID: projectID,
		Content:   "# Privacy Policy",
	}).Return(&model.Policy{
		ID: "pol-9", ProjectID: projectID, Title: "Privacy Policy", Content: "# Privacy Policy",
		Version: "v1", Status: model.PolicyPendingReview,
	}, nil)
	svc.On("ReceiveGenerated", mocklib.Anything, service.GeneratedPolicy{
		ProjectID: projectID,
		Content:   "   ",
	}).Return(nil, fmt.Errorf("generated policy: %w", service.ErrEmptyPolicyContent))

	// The n8n route has no user in the context.
	r, api := newTestAPI("")
	registerPolicyRoutes(api, NewPolicyHandler(svc, zerolog.Nop()))

	rec := do(t, r, http.MethodPost, "/webhooks/n8n/policies", map[string]any{
		"project_id": projectID,
		"content":    "# Privacy Policy",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"pending_review"`)

	rec = do(t, r, http.MethodPost, "/webhooks/n8n/policies", map[string]any{
		"project_id": projectID,
		"content":    "   ",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "body.content")
	svc.AssertExpectations(t)
}

func TestToHumaError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"wrapped not found", errors.Join(errors.New("lookup"), service.ErrPolicyNotFound), http.StatusNotFound},
		{"unknown step", wizard.ErrUnknownStep, http.StatusNotFound},
		{"subscription", service.ErrSubscriptionRequired, http.StatusPaymentRequired},
		{"mismatch", service.ErrInstallationMismatch, http.StatusForbidden},
		{"inactive project", service.ErrProjectInactive, http.StatusConflict},
		{"empty policy", fmt.Errorf("receive: %w", service.ErrEmptyPolicyContent), http.StatusUnprocessableEntity},
		{"state", service.ErrInvalidState, http.StatusBadRequest},
		{"validation", &wizard.ValidationError{Step: wizard.StepDetails, Fields: []wizard.FieldError{{Field: "name", Message: "is required"}}}, http.StatusUnprocessableEntity},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := toHumaError(zerolog.Nop(), tc.err, "failed")
			var se huma.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.status, se.GetStatus())
		})
	}
}
