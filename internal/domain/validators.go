package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	slugRegex  = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateSlug checks a namespace slug.
func ValidateSlug(slug string) error {
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("invalid slug: %s", slug)
	}
	return nil
}

// ValidateRedirectTarget checks a redirect target: an absolute http(s) URL
// or a site-relative path. Schemeless network paths ("//host") are rejected.
func ValidateRedirectTarget(target string) error {
	if target == "" {
		return fmt.Errorf("redirect_url is required")
	}
	if strings.HasPrefix(target, "//") {
		return fmt.Errorf("redirect_url must not be a network-path reference")
	}
	if strings.HasPrefix(target, "/") {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("malformed redirect_url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("redirect_url must be http(s) or site-relative, got %q", target)
	}
	if u.Host == "" {
		return fmt.Errorf("redirect_url is missing a host")
	}
	return nil
}

// ValidateWebRequestURL checks an outbound web-request target URL.
func ValidateWebRequestURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be absolute http(s), got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url is missing a host")
	}
	return nil
}

// ValidateServeFilePath checks a serve_file path: absolute within the site,
// no parent traversal.
func ValidateServeFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file_path is required")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("file_path must be absolute")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("file_path must not traverse parent directories")
	}
	return nil
}

var webRequestMethods = map[string]bool{
	"": true, "GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

// ValidateActionConfig checks a definition's config against the schema of
// its action type. Called at resolve time so a bad config fails fast,
// before anything is enqueued.
func ValidateActionConfig(actionType ActionType, config json.RawMessage) error {
	switch actionType {
	case ActionRedirect:
		var cfg RedirectConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("redirect config: %v", err)
		}
		return ValidateRedirectTarget(cfg.RedirectURL)
	case ActionServeFile:
		var cfg ServeFileConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("serve_file config: %v", err)
		}
		return ValidateServeFilePath(cfg.FilePath)
	case ActionSendEmail:
		var cfg EmailConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("send_email config: %v", err)
		}
		if err := ValidateEmail(cfg.To); err != nil {
			return fmt.Errorf("send_email config: %v", err)
		}
		if cfg.Subject == "" {
			return fmt.Errorf("send_email config: subject is required")
		}
		return nil
	case ActionSendWebRequest:
		var cfg WebRequestConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("send_web_request config: %v", err)
		}
		if err := ValidateWebRequestURL(cfg.URL); err != nil {
			return fmt.Errorf("send_web_request config: %v", err)
		}
		if !webRequestMethods[strings.ToUpper(cfg.Method)] {
			return fmt.Errorf("send_web_request config: unsupported method %q", cfg.Method)
		}
		return nil
	default:
		return fmt.Errorf("unknown action type %q", actionType)
	}
}
