package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkCode(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validatePayments(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorkCode() error {
	w := c.WorkCode
	if len(w.Country) != 2 {
		return fmt.Errorf("workcode.country must be 2 characters, got %q", w.Country)
	}
	if len(w.Registrant) != 3 {
		return fmt.Errorf("workcode.registrant must be 3 characters, got %q", w.Registrant)
	}
	if w.FallbackContributorID < 0 || w.FallbackContributorID > 99 {
		return errors.New("workcode.fallback_contributor_id must be between 0 and 99")
	}
	for name, id := range w.Contributors {
		if strings.TrimSpace(name) == "" {
			return errors.New("workcode.contributors contains an empty name")
		}
		if id < 0 || id > 99 {
			return fmt.Errorf("workcode.contributors[%q] must be between 0 and 99, got %d", name, id)
		}
		if id == w.FallbackContributorID {
			return fmt.Errorf("workcode.contributors[%q] uses the reserved fallback id %02d", name, id)
		}
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Policy {
	case "strict", "cap", "off":
		return nil
	default:
		return fmt.Errorf("ledger.policy must be one of strict, cap, off; got %q", c.Ledger.Policy)
	}
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	switch n.Channel {
	case "none", "log":
	case "ntfy":
		if n.NtfyTopic == "" {
			return errors.New("notifications.ntfy_topic is required when channel is ntfy")
		}
	case "smtp":
		if n.SMTPHost == "" {
			return errors.New("notifications.smtp_host is required when channel is smtp")
		}
		if strings.TrimSpace(n.From) == "" {
			return errors.New("notifications.from is required when channel is smtp")
		}
	default:
		return fmt.Errorf("notifications.channel must be one of none, log, ntfy, smtp; got %q", n.Channel)
	}
	if !strings.HasPrefix(n.SigningBaseURL, "http://") && !strings.HasPrefix(n.SigningBaseURL, "https://") {
		return fmt.Errorf("notifications.signing_base_url must be an http(s) URL, got %q", n.SigningBaseURL)
	}
	return nil
}

func (c *Config) validatePayments() error {
	p := c.Payments
	if p.BasePrice < 0 {
		return errors.New("payments.base_price must not be negative")
	}
	if p.DiscountPercentage < 0 || p.DiscountPercentage > 100 {
		return errors.New("payments.discount_percentage must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
