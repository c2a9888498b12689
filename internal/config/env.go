package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that may come from the environment instead
// of the config file. Secrets belong here so the file can be shared.
type envOverrides struct {
	APIToken       string `env:"SPLITSHEET_API_TOKEN"`
	APIBind        string `env:"SPLITSHEET_API_BIND"`
	StateDir       string `env:"SPLITSHEET_STATE_DIR"`
	WebhookSecret  string `env:"SPLITSHEET_WEBHOOK_SECRET"`
	SigningKey     string `env:"SPLITSHEET_SIGNING_KEY"`
	CountersDSN    string `env:"SPLITSHEET_COUNTERS_DSN"`
	NtfyTopic      string `env:"SPLITSHEET_NTFY_TOPIC"`
	SMTPPassword   string `env:"SPLITSHEET_SMTP_PASSWORD"`
	SigningBaseURL string `env:"SPLITSHEET_SIGNING_BASE_URL"`
	LogLevel       string `env:"SPLITSHEET_LOG_LEVEL"`
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	set := func(dst *string, value string) {
		if value = strings.TrimSpace(value); value != "" {
			*dst = value
		}
	}
	set(&c.API.Token, overrides.APIToken)
	set(&c.API.Bind, overrides.APIBind)
	set(&c.Paths.StateDir, overrides.StateDir)
	set(&c.Payments.WebhookSecret, overrides.WebhookSecret)
	set(&c.Downloads.SigningKey, overrides.SigningKey)
	set(&c.Storage.CountersDSN, overrides.CountersDSN)
	set(&c.Notifications.NtfyTopic, overrides.NtfyTopic)
	set(&c.Notifications.SMTPPassword, overrides.SMTPPassword)
	set(&c.Notifications.SigningBaseURL, overrides.SigningBaseURL)
	set(&c.Logging.Level, overrides.LogLevel)
	return nil
}
