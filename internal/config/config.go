package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	LogDir      string `toml:"log_dir"`
	LockPath    string `toml:"lock_path"`
}

// API contains HTTP server settings.
type API struct {
	Bind                string `toml:"bind"`
	Token               string `toml:"token"`
	PublicURL           string `toml:"public_url"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// WorkCode contains identifier namespace settings. Contributors is the static
// name to id table; several spellings may share one id.
type WorkCode struct {
	Country               string         `toml:"country"`
	Registrant            string         `toml:"registrant"`
	FallbackContributorID int            `toml:"fallback_contributor_id"`
	MaxAttempts           int            `toml:"max_attempts"`
	Contributors          map[string]int `toml:"contributors"`
}

// Ledger contains the percentage policy applied at submission.
type Ledger struct {
	Policy string `toml:"policy"`
}

// Notifications contains signing-request delivery settings.
type Notifications struct {
	Channel               string `toml:"channel"`
	SigningBaseURL        string `toml:"signing_base_url"`
	From                  string `toml:"from"`
	NtfyServer            string `toml:"ntfy_server"`
	NtfyTopic             string `toml:"ntfy_topic"`
	SMTPHost              string `toml:"smtp_host"`
	SMTPPort              int    `toml:"smtp_port"`
	SMTPUsername          string `toml:"smtp_username"`
	SMTPPassword          string `toml:"smtp_password"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	Concurrency           int    `toml:"concurrency"`
}

// Payments contains pricing and webhook settings.
type Payments struct {
	WebhookSecret      string  `toml:"webhook_secret"`
	ToleranceSeconds   int     `toml:"tolerance_seconds"`
	BasePrice          float64 `toml:"base_price"`
	DiscountPercentage float64 `toml:"discount_percentage"`
	Currency           string  `toml:"currency"`
}

// Downloads contains signed download-link settings.
type Downloads struct {
	SigningKey     string `toml:"signing_key"`
	LinkTTLMinutes int    `toml:"link_ttl_minutes"`
}

// Storage contains optional shared-counter settings.
type Storage struct {
	CountersDSN string `toml:"counters_dsn"`
}

// Profiles points at the identity/profile directory file.
type Profiles struct {
	Path string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for splitsheet.
//
// Configuration sections by subsystem:
//   - Paths: state database, rendered artifacts, logs, daemon lock
//   - API: HTTP bind address and bearer token
//   - WorkCode: identifier namespace and static contributor table
//   - Ledger: percentage policy enforced at submission
//   - Notifications: signing-request channel and signing URL
//   - Payments: pricing and webhook verification
//   - Downloads: signed artifact links
//   - Storage: optional PostgreSQL counters
//   - Profiles: known-user profile directory
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	WorkCode      WorkCode      `toml:"workcode"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Payments      Payments      `toml:"payments"`
	Downloads     Downloads     `toml:"downloads"`
	Storage       Storage       `toml:"storage"`
	Profiles      Profiles      `toml:"profiles"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config
// has environment overrides applied and all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("splitsheet.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state, artifact and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.ArtifactDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the SQLite state database inside the state directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "splitsheet.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
