package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeWorkCode()
	c.normalizeNotifications()
	c.normalizePayments()
	c.normalizeLogging()
	c.Ledger.Policy = strings.ToLower(strings.TrimSpace(c.Ledger.Policy))
	if c.Ledger.Policy == "" {
		c.Ledger.Policy = defaultLedgerPolicy
	}
	c.Storage.CountersDSN = strings.TrimSpace(c.Storage.CountersDSN)
	if c.Downloads.LinkTTLMinutes <= 0 {
		c.Downloads.LinkTTLMinutes = defaultLinkTTLMinutes
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = filepath.Join(c.Paths.StateDir, "artifacts")
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockPath) == "" {
		c.Paths.LockPath = filepath.Join(c.Paths.StateDir, "splitsheet.lock")
	}
	if c.Paths.LockPath, err = expandPath(c.Paths.LockPath); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	if strings.TrimSpace(c.Profiles.Path) != "" {
		if c.Profiles.Path, err = expandPath(c.Profiles.Path); err != nil {
			return fmt.Errorf("profiles.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.API.PublicURL = strings.TrimRight(strings.TrimSpace(c.API.PublicURL), "/")
	if c.API.PublicURL == "" {
		c.API.PublicURL = "http://" + c.API.Bind
	}
	if c.API.ReadTimeoutSeconds <= 0 {
		c.API.ReadTimeoutSeconds = defaultReadTimeoutSeconds
	}
	if c.API.WriteTimeoutSeconds <= 0 {
		c.API.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
	}
}

func (c *Config) normalizeWorkCode() {
	c.WorkCode.Country = strings.ToUpper(strings.TrimSpace(c.WorkCode.Country))
	c.WorkCode.Registrant = strings.ToUpper(strings.TrimSpace(c.WorkCode.Registrant))
	if c.WorkCode.MaxAttempts <= 0 {
		c.WorkCode.MaxAttempts = defaultAllocationAttempts
	}
	if c.WorkCode.Contributors == nil {
		c.WorkCode.Contributors = DefaultContributors()
	}
}

func (c *Config) normalizeNotifications() {
	n := &c.Notifications
	n.Channel = strings.ToLower(strings.TrimSpace(n.Channel))
	if n.Channel == "" {
		n.Channel = defaultNotificationChannel
	}
	n.SigningBaseURL = strings.TrimRight(strings.TrimSpace(n.SigningBaseURL), "/")
	if n.SigningBaseURL == "" {
		n.SigningBaseURL = c.API.PublicURL
	}
	n.NtfyServer = strings.TrimRight(strings.TrimSpace(n.NtfyServer), "/")
	if n.NtfyServer == "" {
		n.NtfyServer = defaultNtfyServer
	}
	n.NtfyTopic = strings.TrimSpace(n.NtfyTopic)
	n.SMTPHost = strings.TrimSpace(n.SMTPHost)
	if n.SMTPPort <= 0 {
		n.SMTPPort = defaultSMTPPort
	}
	if n.RequestTimeoutSeconds <= 0 {
		n.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
	if n.Concurrency <= 0 {
		n.Concurrency = defaultNotifyConcurrency
	}
}

func (c *Config) normalizePayments() {
	c.Payments.WebhookSecret = strings.TrimSpace(c.Payments.WebhookSecret)
	c.Payments.Currency = strings.ToLower(strings.TrimSpace(c.Payments.Currency))
	if c.Payments.Currency == "" {
		c.Payments.Currency = defaultCurrency
	}
	if c.Payments.ToleranceSeconds <= 0 {
		c.Payments.ToleranceSeconds = defaultWebhookToleranceSecond
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
