package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

var phoneNumberRegex = regexp.MustCompile(`^[0-9]{5,20}$`)

// ValidatePhoneNumber validates a bare international phone number (digits
// only, no "+" or separators).
func (v *Validator) ValidatePhoneNumber(number string) error {
	if number == "" {
		return fmt.Errorf("phone number cannot be empty")
	}
	if !phoneNumberRegex.MatchString(number) {
		return fmt.Errorf("invalid phone number %q (expected digits only, e.g. 6281234567890)", number)
	}
	return nil
}

// ValidateBridgeURL validates the session bridge websocket URL
func (v *Validator) ValidateBridgeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid bridge url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid bridge url scheme: %s (must be ws or wss)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("bridge url has no host")
	}
	return nil
}

// ValidateLogLevel validates a log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSchedule validates a cron schedule (standard five fields or a
// descriptor such as "@every 10m").
func (v *Validator) ValidateSchedule(spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateEndpoint validates an HTTP endpoint template.
func (v *Validator) ValidateEndpoint(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{url}", "x"))
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q (must be http or https)", raw)
	}
	return nil
}

// ValidateConfig validates the entire configuration
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.Bot.Number != "" {
		if err := v.ValidatePhoneNumber(cfg.Bot.Number); err != nil {
			errors = append(errors, fmt.Errorf("bot.number: %w", err))
		}
	}
	for i, owner := range cfg.Bot.Owners {
		if err := v.ValidatePhoneNumber(owner); err != nil {
			errors = append(errors, fmt.Errorf("bot.owners[%d]: %w", i, err))
		}
	}

	if cfg.Bridge.URL != "" {
		if err := v.ValidateBridgeURL(cfg.Bridge.URL); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Logging.Level != "" {
		if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Cache.SweepSchedule != "" {
		if err := v.ValidateSchedule(cfg.Cache.SweepSchedule); err != nil {
			errors = append(errors, fmt.Errorf("cache.sweep_schedule: %w", err))
		}
	}

	if cfg.Commands.TranslateURL != "" {
		if err := v.ValidateEndpoint(cfg.Commands.TranslateURL); err != nil {
			errors = append(errors, fmt.Errorf("commands.translate_url: %w", err))
		}
	}
	for i, ep := range cfg.Commands.TikTokEndpoints {
		if err := v.ValidateEndpoint(ep); err != nil {
			errors = append(errors, fmt.Errorf("commands.tiktok_endpoints[%d]: %w", i, err))
		}
	}
	for i, ep := range cfg.Commands.InstagramEndpoints {
		if err := v.ValidateEndpoint(ep); err != nil {
			errors = append(errors, fmt.Errorf("commands.instagram_endpoints[%d]: %w", i, err))
		}
	}
	if cfg.Commands.LyricsSearchURL != "" {
		if err := v.ValidateEndpoint(cfg.Commands.LyricsSearchURL); err != nil {
			errors = append(errors, fmt.Errorf("commands.lyrics_search_url: %w", err))
		}
	}

	return errors
}
