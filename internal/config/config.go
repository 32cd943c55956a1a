package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Local & Github Secrets (Fill up for local development)
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`
	Environment        string `envconfig:"ENV" default:"development"`
	Port               string `envconfig:"PORT" default:"8080"`
	APIBaseURL         string `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	DashboardURL       string `envconfig:"DASHBOARD_URL" default:"http://localhost:5173"`

	// Supabase storage (S3 protocol) used for approved policy archives
	S3URL       string `envconfig:"SUPABASE_S3_URL" required:"true"`
	S3Bucket    string `envconfig:"SUPABASE_S3_BUCKET" default:"policies"`
	S3Region    string `envconfig:"SUPABASE_S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"SUPABASE_S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"SUPABASE_S3_SECRET_KEY" required:"true"`

	// Stripe
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	StripePriceStarter    string `envconfig:"STRIPE_PRICE_STARTER" required:"true"`
	StripePricePro        string `envconfig:"STRIPE_PRICE_PRO" required:"true"`
	StripeTrialDays       int64  `envconfig:"STRIPE_TRIAL_DAYS" default:"14"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:5173/billing"`

	// GitHub App
	GitHubAppID         int64  `envconfig:"GITHUB_APP_ID" required:"true"`
	GitHubAppSlug       string `envconfig:"GITHUB_APP_SLUG" required:"true"`
	GitHubAppPrivateKey string `envconfig:"GITHUB_APP_PRIVATE_KEY" required:"true"`
	GitHubClientID      string `envconfig:"GITHUB_CLIENT_ID" required:"true"`
	GitHubClientSecret  string `envconfig:"GITHUB_CLIENT_SECRET" required:"true"`
	GitHubHostname      string `envconfig:"GITHUB_HOSTNAME" default:"github.com"`
	StateSecret         string `envconfig:"GITHUB_STATE_SECRET" required:"true"`

	// n8n policy generation workflow
	N8NWebhookURL    string `envconfig:"N8N_WEBHOOK_URL" required:"true"`
	N8NWebhookSecret string `envconfig:"N8N_WEBHOOK_SECRET" required:"true"`

	// Resend
	ResendAPIKey string `envconfig:"RESEND_API_KEY" required:"true"`
	EmailFrom    string `envconfig:"EMAIL_FROM" default:"PolicyBolt <noreply@policybolt.dev>"`

	// Token store: "postgres" or "secretmanager"
	TokenStore   string `envconfig:"TOKEN_STORE" default:"postgres"`
	GCPProjectID string `envconfig:"GCP_PROJECT_ID"`
	GCPCredsFile string `envconfig:"GCP_CREDENTIALS_FILE"`

	// Policy generation orchestrator settings
	GenerationQueueName           string `envconfig:"GENERATION_QUEUE_NAME" default:"policy_generation_queue"`
	GenerationPollTimeoutSec      int    `envconfig:"GENERATION_POLL_TIMEOUT_SEC" default:"30"`
	GenerationPollMaxMsg          int    `envconfig:"GENERATION_POLL_MAX_MSG" default:"1"`
	GenerationMaxRetries          int    `envconfig:"GENERATION_MAX_RETRIES" default:"5"`
	GenerationBackoffInitialSec   int    `envconfig:"GENERATION_BACKOFF_INITIAL_SEC" default:"1"`
	GenerationBackoffMaxSec       int    `envconfig:"GENERATION_BACKOFF_MAX_SEC" default:"60"`
	GenerationRequestTimeoutSec   int    `envconfig:"GENERATION_REQUEST_TIMEOUT_SEC" default:"30"`
	GenerationDeadLetterQueueName string `envconfig:"GENERATION_DEAD_LETTER_QUEUE_NAME" default:"policy_generation_queue_dlq"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs against a local Supabase stack.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GenerationBackoff returns the initial and maximum delay between n8n retries.
func (c *Config) GenerationBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.GenerationBackoffInitialSec) * time.Second,
		time.Duration(c.GenerationBackoffMaxSec) * time.Second
}

// CallbackURL is where n8n posts generated policy drafts.
func (c *Config) CallbackURL() string {
	return c.APIBaseURL + "/webhooks/n8n/policies"
}
