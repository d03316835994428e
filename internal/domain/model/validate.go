package model

import (
	"net/url"
	"regexp"
	"strings"
)

// MaxInputLength bounds every string accepted from webhooks or admin calls.
const MaxInputLength = 2048

var (
	repoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9-_.]+/[a-zA-Z0-9-_.]+$`)

	// Labels are 1-63 characters; single-character labels such as a.example.com are valid.
	domainPattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)
)

// Sanitize trims whitespace and enforces MaxInputLength.
func Sanitize(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) > MaxInputLength {
		return "", &ValidationError{Field: field, Reason: "exceeds maximum length of 2048 characters"}
	}
	return value, nil
}

// ValidateRepoName checks the owner/repo form.
func ValidateRepoName(name string) (string, error) {
	name, err := Sanitize("repository", name)
	if err != nil {
		return "", err
	}
	if !repoNamePattern.MatchString(name) {
		return "", &ValidationError{Field: "repository", Reason: "expected owner/repo"}
	}
	return name, nil
}

// NormalizeDomain trims, lower-cases and strips a trailing dot. It does not
// validate.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// ValidateDomain normalizes domain and checks it is a multi-label hostname.
// An empty input is valid and means "no domain".
func ValidateDomain(domain string) (string, error) {
	domain, err := Sanitize("domain", domain)
	if err != nil {
		return "", err
	}
	domain = NormalizeDomain(domain)
	if domain == "" {
		return "", nil
	}
	if !domainPattern.MatchString(domain) {
		return "", &ValidationError{Field: "domain", Reason: "not a valid hostname"}
	}
	return domain, nil
}

// ValidatePagesURL checks an absolute http(s) URL. Empty is valid.
func ValidatePagesURL(raw string) (string, error) {
	raw, err := Sanitize("pages_url", raw)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &ValidationError{Field: "pages_url", Reason: "not an absolute http(s) URL"}
	}
	return raw, nil
}

// ValidateMapping sanitizes and validates every field of m in place.
func ValidateMapping(m *DomainMapping) error {
	var err error
	if m.RepoName, err = ValidateRepoName(m.RepoName); err != nil {
		return err
	}
	if m.PagesURL, err = ValidatePagesURL(m.PagesURL); err != nil {
		return err
	}
	if m.CustomDomain, err = ValidateDomain(m.CustomDomain); err != nil {
		return err
	}
	if m.RecordID, err = Sanitize("record_id", m.RecordID); err != nil {
		return err
	}
	return nil
}
