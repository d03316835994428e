package model

import "time"

// TokenID is the fixed key of the single persisted installation token row.
const TokenID = "github_app_token"

// AccessToken is a short-lived installation access token issued by GitHub.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token must be refreshed at now given the
// refresh buffer. A token with no value or no expiry is always expired.
func (t AccessToken) IsExpired(now time.Time, buffer time.Duration) bool {
	if t.Value == "" || t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(buffer).Before(t.ExpiresAt)
}

// Preview returns the first five characters followed by an ellipsis, for
// responses and logs that must not reveal the whole token.
func (t AccessToken) Preview() string {
	return TokenPreview(t.Value)
}

// TokenPreview shortens a secret to its first five characters.
func TokenPreview(value string) string {
	if len(value) <= 5 {
		return value + "..."
	}
	return value[:5] + "..."
}
