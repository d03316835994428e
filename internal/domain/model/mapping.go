package model

import "time"

// DomainMapping is the persisted custom-domain state of one GitHub Pages
// repository. RecordID is a weak reference into the DNS provider's record
// space. It is empty while no create has succeeded for CustomDomain and holds
// a placeholder when the create was degraded.
type DomainMapping struct {
	RepoName     string
	PagesURL     string
	CustomDomain string
	RecordID     string
	UpdatedAt    time.Time
}

// HasDomain reports whether the mapping currently carries a custom domain.
// A nil mapping has no domain.
func (m *DomainMapping) HasDomain() bool {
	return m != nil && m.CustomDomain != ""
}

// NeedsRecord reports whether the mapping carries a domain whose DNS record
// has never been confirmed by the provider.
func (m *DomainMapping) NeedsRecord() bool {
	return m.HasDomain() && m.RecordID == ""
}
