package model

import (
	"fmt"
	"strings"
	"time"
)

// RecordKind tags the outcome of a DNS record create.
type RecordKind string

const (
	// RecordCreated means the provider returned a real record identifier.
	RecordCreated RecordKind = "created"
	// RecordDegraded means the provider did not return a usable identifier
	// (for example the record already existed) and ID is a placeholder.
	RecordDegraded RecordKind = "degraded"
)

// degradedPrefix marks placeholder identifiers so they are never sent back to
// the provider as real record ids.
const degradedPrefix = "degraded-"

// RecordResult is the tagged result of creating a CNAME record.
type RecordResult struct {
	Kind   RecordKind
	ID     string
	Name   string
	Reason string
}

// NewCreatedRecord returns a result carrying a real provider identifier.
func NewCreatedRecord(id, name string) RecordResult {
	return RecordResult{Kind: RecordCreated, ID: id, Name: name}
}

// NewDegradedRecord returns a placeholder result for name.
func NewDegradedRecord(name, reason string, now time.Time) RecordResult {
	return RecordResult{
		Kind:   RecordDegraded,
		ID:     fmt.Sprintf("%s%d", degradedPrefix, now.UnixNano()),
		Name:   name,
		Reason: reason,
	}
}

// IsDegraded reports whether the result carries a placeholder identifier.
func (r RecordResult) IsDegraded() bool {
	return r.Kind != RecordCreated
}

// PersistableID returns the identifier to store. Degraded results store their
// placeholder so a later reconciliation knows the provider already answered
// for the name; IsPlaceholderRecordID keeps it from reaching the provider.
func (r RecordResult) PersistableID() string {
	return r.ID
}

// IsPlaceholderRecordID reports whether id was produced by NewDegradedRecord.
func IsPlaceholderRecordID(id string) bool {
	return strings.HasPrefix(id, degradedPrefix)
}
