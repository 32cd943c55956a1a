package router

import (
	"net/http"
	"os"
	"strings"

	"policybolt/internal/api/v1/handler"
	"policybolt/internal/config"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// GeneratedPolicyPath receives drafts from the n8n workflow.
const GeneratedPolicyPath = "/webhooks/n8n/policies"

// StripeWebhookPath receives signed Stripe events.
const StripeWebhookPath = "/billing/webhook"

func isPublicPath(path string) bool {
	switch path {
	case "/openapi.json", "/openapi.yaml", "/docs", StripeWebhookPath:
		return true
	}
	return strings.HasPrefix(path, "/schemas") || strings.HasPrefix(path, "/embed/")
}

// SetupHumaAPI creates a Huma API instance
func SetupHumaAPI(
	cfg *config.Config,
	authMiddleware func(http.Handler) http.Handler,
	webhookAuthMiddleware func(http.Handler) http.Handler,
	logger zerolog.Logger,
) (*chi.Mux, huma.API) {
	chiRouter := chi.NewRouter()

	// Apply middleware based on path
	chiRouter.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// OpenAPI docs, embed pages and the Stripe webhook carry no user token
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			// n8n callbacks authenticate with the shared secret
			if r.URL.Path == GeneratedPolicyPath {
				webhookAuthMiddleware(next).ServeHTTP(w, r)
				return
			}
			// Apply JWT auth middleware for all other routes
			authMiddleware(next).ServeHTTP(w, r)
		})
	})

	// Get version from environment or default to development
	version := os.Getenv("GIT_COMMIT_SHA")
	if version == "" {
		version = "development"
	}

	humaConfig := huma.DefaultConfig("PolicyBolt API v1", version)
	humaConfig.Info.Description = "PolicyBolt API: projects, policy generation, approval and billing"
	humaConfig.Servers = []*huma.Server{{URL: cfg.APIBaseURL}}

	api := humachi.New(chiRouter, humaConfig)

	logger.Info().Str("version", version).Msg("Huma API initialized")
	return chiRouter, api
}

// RegisterRoutes registers all Huma operations
func RegisterRoutes(
	api huma.API,
	userHandler *handler.UserHandler,
	projectHandler *handler.ProjectHandler,
	policyHandler *handler.PolicyHandler,
	billingHandler *handler.BillingHandler,
	githubHandler *handler.GitHubHandler,
	notificationHandler *handler.NotificationHandler,
	logger zerolog.Logger,
) {
	logger.Info().Msg("Registering routes")

	// ========== USER OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "createUser",
		Method:      http.MethodPost,
		Path:        "/v1/users/me",
		Summary:     "Create or update user profile",
		Description: "Creates the profile of the authenticated user or updates an existing one. The first call sends a welcome email.",
		Tags:        []string{"users"},
	}, userHandler.CreateUser)

	huma.Register(api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/v1/users/me",
		Summary:     "Get user profile",
		Description: "Retrieves the profile of the authenticated user",
		Tags:        []string{"users"},
	}, userHandler.GetUser)

	// ========== PROJECT OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "validateWizardStep",
		Method:      http.MethodPost,
		Path:        "/v1/projects/wizard/{step}",
		Summary:     "Validate a wizard step",
		Description: "Validates one step of the project setup wizard and returns the normalized draft",
		Tags:        []string{"projects", "wizard"},
	}, projectHandler.ValidateWizardStep)

	huma.Register(api, huma.Operation{
		OperationID:   "createProject",
		Method:        http.MethodPost,
		Path:          "/v1/projects",
		Summary:       "Create a project",
		Description:   "Creates a project from a completed wizard draft. Requires an active subscription with room for another project.",
		Tags:          []string{"projects"},
		DefaultStatus: 201,
	}, projectHandler.CreateProject)

	huma.Register(api, huma.Operation{
		OperationID: "listProjects",
		Method:      http.MethodGet,
		Path:        "/v1/projects",
		Summary:     "List projects",
		Description: "Lists the projects of the authenticated user",
		Tags:        []string{"projects"},
	}, projectHandler.ListProjects)

	huma.Register(api, huma.Operation{
		OperationID: "getProject",
		Method:      http.MethodGet,
		Path:        "/v1/projects/{projectId}",
		Summary:     "Get a project",
		Description: "Retrieves a specific project by ID",
		Tags:        []string{"projects"},
	}, projectHandler.GetProject)

	huma.Register(api, huma.Operation{
		OperationID: "updateProject",
		Method:      http.MethodPut,
		Path:        "/v1/projects/{projectId}",
		Summary:     "Update a project",
		Description: "Replaces the project's name, repository and configuration with a validated wizard draft",
		Tags:        []string{"projects"},
	}, projectHandler.UpdateProject)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteProject",
		Method:        http.MethodDelete,
		Path:          "/v1/projects/{projectId}",
		Summary:       "Delete a project",
		Description:   "Deletes a project, its policies and its stored GitHub token",
		Tags:          []string{"projects"},
		DefaultStatus: 204,
	}, projectHandler.DeleteProject)

	huma.Register(api, huma.Operation{
		OperationID:   "syncProject",
		Method:        http.MethodPost,
		Path:          "/v1/projects/{projectId}/sync",
		Summary:       "Regenerate the policy",
		Description:   "Queues a policy generation for a project connected to GitHub",
		Tags:          []string{"projects"},
		DefaultStatus: 202,
	}, projectHandler.SyncProject)

	// ========== GITHUB OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "getGitHubInstallURL",
		Method:      http.MethodGet,
		Path:        "/v1/projects/{projectId}/github/install-url",
		Summary:     "Get GitHub App install URL",
		Description: "Returns the GitHub App installation link with a signed state for the project",
		Tags:        []string{"github"},
	}, githubHandler.InstallURL)

	huma.Register(api, huma.Operation{
		OperationID: "githubCallback",
		Method:      http.MethodPost,
		Path:        "/v1/github/callback",
		Summary:     "Complete GitHub App installation",
		Description: "Verifies the installation belongs to the user, stores an installation token and queues the first policy generation",
		Tags:        []string{"github"},
	}, githubHandler.Callback)

	// ========== POLICY OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "listPolicies",
		Method:      http.MethodGet,
		Path:        "/v1/projects/{projectId}/policies",
		Summary:     "List policies of a project",
		Description: "Lists every policy version of the project, newest first",
		Tags:        []string{"policies"},
	}, policyHandler.ListPolicies)

	huma.Register(api, huma.Operation{
		OperationID: "getPolicy",
		Method:      http.MethodGet,
		Path:        "/v1/policies/{policyId}",
		Summary:     "Get a policy",
		Description: "Retrieves a specific policy by ID",
		Tags:        []string{"policies"},
	}, policyHandler.GetPolicy)

	huma.Register(api, huma.Operation{
		OperationID: "approvePolicy",
		Method:      http.MethodPost,
		Path:        "/v1/policies/{policyId}/approve",
		Summary:     "Approve a policy",
		Description: "Makes the policy the project's active one and deactivates the previous active policy",
		Tags:        []string{"policies"},
	}, policyHandler.ApprovePolicy)

	huma.Register(api, huma.Operation{
		OperationID:   "deletePolicy",
		Method:        http.MethodDelete,
		Path:          "/v1/policies/{policyId}",
		Summary:       "Delete a policy",
		Description:   "Deletes a pending or inactive policy. Active policies cannot be deleted.",
		Tags:          []string{"policies"},
		DefaultStatus: 204,
	}, policyHandler.DeletePolicy)

	huma.Register(api, huma.Operation{
		OperationID: "downloadPolicy",
		Method:      http.MethodGet,
		Path:        "/v1/policies/{policyId}/download",
		Summary:     "Get policy download URL",
		Description: "Returns a presigned URL of the archived markdown of an approved policy",
		Tags:        []string{"policies"},
	}, policyHandler.DownloadPolicy)

	huma.Register(api, huma.Operation{
		OperationID:   "receiveGeneratedPolicy",
		Method:        http.MethodPost,
		Path:          GeneratedPolicyPath,
		Summary:       "Receive a generated policy",
		Description:   "Called by the n8n workflow with a generated draft. Authenticated by the shared webhook secret header.",
		Tags:          []string{"webhooks"},
		DefaultStatus: 201,
	}, policyHandler.ReceiveGeneratedPolicy)

	// ========== BILLING OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "getSubscription",
		Method:      http.MethodGet,
		Path:        "/v1/billing/subscription",
		Summary:     "Get subscription",
		Description: "Returns the current subscription and plan of the user",
		Tags:        []string{"billing"},
	}, billingHandler.GetSubscription)

	huma.Register(api, huma.Operation{
		OperationID: "createCheckoutSession",
		Method:      http.MethodPost,
		Path:        "/v1/billing/checkout",
		Summary:     "Create checkout session",
		Description: "Creates a Stripe Checkout session for a plan, with a trial for first-time subscribers",
		Tags:        []string{"billing"},
	}, billingHandler.Checkout)

	huma.Register(api, huma.Operation{
		OperationID: "createPortalSession",
		Method:      http.MethodPost,
		Path:        "/v1/billing/portal",
		Summary:     "Create billing portal session",
		Description: "Creates a Stripe Customer Portal session",
		Tags:        []string{"billing"},
	}, billingHandler.Portal)

	huma.Register(api, huma.Operation{
		OperationID: "applyCoupon",
		Method:      http.MethodPost,
		Path:        "/v1/billing/coupon",
		Summary:     "Apply coupon",
		Description: "Applies a coupon to the current subscription",
		Tags:        []string{"billing"},
	}, billingHandler.ApplyCoupon)

	huma.Register(api, huma.Operation{
		OperationID: "cancelSubscription",
		Method:      http.MethodPost,
		Path:        "/v1/billing/cancel",
		Summary:     "Cancel subscription",
		Description: "Cancels the subscription immediately and deactivates every project",
		Tags:        []string{"billing"},
	}, billingHandler.CancelSubscription)

	// ========== NOTIFICATION OPERATIONS ==========
	huma.Register(api, huma.Operation{
		OperationID: "sendEmail",
		Method:      http.MethodPost,
		Path:        "/v1/notifications/email",
		Summary:     "Send a transactional email",
		Description: "Sends one of the email templates to the authenticated user",
		Tags:        []string{"notifications"},
	}, notificationHandler.SendEmail)

	// Stripe webhooks and embed pages are raw chi routes, see New.

	logger.Info().Int("total_paths", len(api.OpenAPI().Paths)).Msg("All operations registered successfully")
}
