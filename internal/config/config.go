package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`

	JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`

	// S3-compatible storage for generated avatar images
	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Stripe settings
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceMonthly    string `envconfig:"STRIPE_PRICE_MONTHLY"`
	StripePriceYearly     string `envconfig:"STRIPE_PRICE_YEARLY"`
	StripePriceCreditPack string `envconfig:"STRIPE_PRICE_CREDIT_PACK"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/account"`

	// Credits granted by one purchased credit pack.
	CreditPackSize int `envconfig:"CREDIT_PACK_SIZE" default:"50"`

	// Free-tier quota. Two code paths in the product historically disagreed on
	// whether the free allowance is per day or per ISO week, so both values are
	// explicit and the active window is configuration, not a guess.
	FreeDailyAllowance  int    `envconfig:"FREE_DAILY_ALLOWANCE" default:"1"`
	FreeWeeklyAllowance int    `envconfig:"FREE_WEEKLY_ALLOWANCE" default:"1"`
	FreeQuotaWindow     string `envconfig:"FREE_QUOTA_WINDOW" default:"day"` // "day" or "week"

	// Generative-image API settings
	ImageAPIBaseURL string `envconfig:"IMAGE_API_BASE_URL" default:"https://api.openai.com/v1"`
	ImageAPIKey     string `envconfig:"IMAGE_API_KEY"`
	ImageModel      string `envconfig:"IMAGE_MODEL" default:"gpt-image-1"`
	ImageSize       string `envconfig:"IMAGE_SIZE" default:"1024x1024"`

	// Request body cap for the generate endpoint; must admit base64 photos.
	MaxGenerateBodyBytes int64 `envconfig:"MAX_GENERATE_BODY_BYTES" default:"10485760"`

	// Pub/Sub settings for generation analytics events
	GCPProjectID          string `envconfig:"GCP_PROJECT_ID"`
	PubSubGenerationTopic string `envconfig:"PUBSUB_GENERATION_TOPIC" default:"avatar_generations"`
	PubSubEmulatorHost    string `envconfig:"PUBSUB_EMULATOR_HOST"`

	// Secret Manager names; when set (non-development environments), the
	// corresponding keys above are resolved at startup instead of read from env.
	StripeKeySecretName     string `envconfig:"STRIPE_KEY_SECRET_NAME"`
	StripeWebhookSecretName string `envconfig:"STRIPE_WEBHOOK_SECRET_NAME"`
	ImageAPIKeySecretName   string `envconfig:"IMAGE_API_KEY_SECRET_NAME"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
