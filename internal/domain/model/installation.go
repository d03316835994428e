package model

import "time"

// InstallationConfig holds per-installation Cloudflare credentials that
// override the process-wide DNS provider settings. APIToken is plaintext at
// the domain boundary; the persistence adapter encrypts it at rest.
type InstallationConfig struct {
	InstallationID int64
	ZoneID         string
	APIToken       string
	Email          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InstallationPatch is a partial update of an InstallationConfig. Nil fields
// are left unchanged.
type InstallationPatch struct {
	ZoneID   *string
	APIToken *string
	Email    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p InstallationPatch) IsEmpty() bool {
	return p.ZoneID == nil && p.APIToken == nil && p.Email == nil
}
