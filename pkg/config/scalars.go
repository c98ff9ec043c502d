package config

import "fmt"

// Scalars holds the §6 scalar settings, bound from the environment (and
// any loaded .env file) via struct tags.
type Scalars struct {
	APIHost string `env:"API_HOST" envDefault:"0.0.0.0"`
	APIPort int    `env:"API_PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	VIPDigestHours int `env:"VIP_DIGEST_HOURS" envDefault:"24"`

	Phase2ExtractionEnabled   bool   `env:"PHASE2_EXTRACTION_ENABLED" envDefault:"true"`
	Phase2BatchSize           int    `env:"PHASE2_BATCH_SIZE" envDefault:"25"`
	Phase2LeaseSeconds        int    `env:"PHASE2_LEASE_SECONDS" envDefault:"120"`
	Phase2SchedulerLockSecs   int    `env:"PHASE2_SCHEDULER_LOCK_SECONDS" envDefault:"600"`
	Phase2AdminToken          string `env:"PHASE2_ADMIN_TOKEN"`

	OpenAIAPIKey         string `env:"OPENAI_API_KEY"`
	OpenAIModel          string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITimeoutSeconds int    `env:"OPENAI_TIMEOUT_SECONDS" envDefault:"30"`
	OpenAIMaxRetries     int    `env:"OPENAI_MAX_RETRIES" envDefault:"2"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_VIP_CHAT_ID"`
}

// Validate checks the invariants that struct tags alone cannot express:
// phase 2 cannot be enabled without a model API key.
func (s Scalars) Validate() error {
	if s.Phase2ExtractionEnabled && s.OpenAIAPIKey == "" {
		return NewValidationError("openai_api_key", fmt.Errorf("required when phase2_extraction_enabled is true"))
	}
	if s.Phase2BatchSize <= 0 {
		return NewValidationError("phase2_batch_size", fmt.Errorf("must be positive, got %d", s.Phase2BatchSize))
	}
	return nil
}
