package testsupport

import (
	"path/filepath"
	"testing"

	"splitsheet/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockPath = filepath.Join(base, "state", "splitsheet.lock")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.API.PublicURL = "http://splitsheet.test"
	cfgVal.Notifications.Channel = "none"
	cfgVal.Notifications.SigningBaseURL = "http://splitsheet.test"
	cfgVal.WorkCode.Contributors = config.DefaultContributors()
	cfgVal.Payments.WebhookSecret = "whsec_test"
	cfgVal.Downloads.SigningKey = "download-test-key"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLedgerPolicy overrides the percentage policy.
func WithLedgerPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Policy = policy
	}
}

// WithPricing overrides the base price and discount.
func WithPricing(base, discount float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Payments.BasePrice = base
		b.cfg.Payments.DiscountPercentage = discount
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
