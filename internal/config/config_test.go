package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"splitsheet/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "splitsheet")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "splitsheet.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.LockPath != filepath.Join(wantState, "splitsheet.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.Paths.LockPath)
	}
	if cfg.WorkCode.Country != "DM" || cfg.WorkCode.Registrant != "A0D" {
		t.Fatalf("unexpected namespace: %s-%s", cfg.WorkCode.Country, cfg.WorkCode.Registrant)
	}
	if cfg.WorkCode.Contributors["JCro"] != 1 {
		t.Fatalf("expected default contributor table, got %v", cfg.WorkCode.Contributors)
	}
	if cfg.Ledger.Policy != "strict" {
		t.Fatalf("expected strict ledger policy, got %q", cfg.Ledger.Policy)
	}
	if cfg.Notifications.SigningBaseURL != "http://127.0.0.1:7591" {
		t.Fatalf("unexpected signing base url: %q", cfg.Notifications.SigningBaseURL)
	}
}

func TestLoadCustomConfigReplacesContributors(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
state_dir = "~/state"

[workcode]
country = "us"
registrant = "xyz"

[workcode.contributors]
"Solo Artist" = 3

[ledger]
policy = "CAP"

[notifications]
channel = "ntfy"
ntfy_topic = "splitsheets"
signing_base_url = "https://sign.example.com/"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.WorkCode.Country != "US" || cfg.WorkCode.Registrant != "XYZ" {
		t.Fatalf("expected upper-cased namespace, got %s-%s", cfg.WorkCode.Country, cfg.WorkCode.Registrant)
	}
	if len(cfg.WorkCode.Contributors) != 1 || cfg.WorkCode.Contributors["Solo Artist"] != 3 {
		t.Fatalf("expected file contributors only, got %v", cfg.WorkCode.Contributors)
	}
	if cfg.Ledger.Policy != "cap" {
		t.Fatalf("expected cap policy, got %q", cfg.Ledger.Policy)
	}
	if cfg.Notifications.SigningBaseURL != "https://sign.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Notifications.SigningBaseURL)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestEnvironmentOverridesSecrets(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SPLITSHEET_API_TOKEN", "from-env")
	t.Setenv("SPLITSHEET_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("SPLITSHEET_SIGNING_KEY", "signing")
	t.Setenv("SPLITSHEET_LOG_LEVEL", "warn")

	cfg, _, _, err := config.Load(filepath.Join(tempHome, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "from-env" {
		t.Fatalf("expected token from env, got %q", cfg.API.Token)
	}
	if cfg.Payments.WebhookSecret != "whsec_test" || cfg.Downloads.SigningKey != "signing" {
		t.Fatalf("expected secrets from env, got %+v %+v", cfg.Payments, cfg.Downloads)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected log level from env, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]struct {
		mutate func(*config.Config)
		want   string
	}{
		"country":  {func(c *config.Config) { c.WorkCode.Country = "DMA" }, "workcode.country"},
		"reserved": {func(c *config.Config) { c.WorkCode.Contributors = map[string]int{"X": 99} }, "reserved fallback"},
		"policy":   {func(c *config.Config) { c.Ledger.Policy = "loose" }, "ledger.policy"},
		"ntfy":     {func(c *config.Config) { c.Notifications.Channel = "ntfy" }, "ntfy_topic"},
		"smtp":     {func(c *config.Config) { c.Notifications.Channel = "smtp" }, "smtp_host"},
		"discount": {func(c *config.Config) { c.Payments.DiscountPercentage = 120 }, "discount_percentage"},
		"format":   {func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.WorkCode.Contributors = config.DefaultContributors()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.WorkCode.Contributors["Lí-Lí Octave"] != 0 || cfg.WorkCode.Contributors["Princess Trinidad"] != 4 {
		t.Fatalf("unexpected sample contributors: %v", cfg.WorkCode.Contributors)
	}
	if cfg.Ledger.Policy != "strict" {
		t.Fatalf("unexpected sample policy %q", cfg.Ledger.Policy)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.ArtifactDir = filepath.Join(base, "state", "artifacts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.ArtifactDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}
