package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessToken_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	buffer := 5 * time.Minute

	tests := []struct {
		name  string
		token AccessToken
		want  bool
	}{
		{name: "within buffer", token: AccessToken{Value: "v", ExpiresAt: now.Add(4 * time.Minute)}, want: true},
		{name: "outside buffer", token: AccessToken{Value: "v", ExpiresAt: now.Add(6 * time.Minute)}, want: false},
		{name: "exactly at buffer", token: AccessToken{Value: "v", ExpiresAt: now.Add(buffer)}, want: true},
		{name: "already expired", token: AccessToken{Value: "v", ExpiresAt: now.Add(-time.Minute)}, want: true},
		{name: "no value", token: AccessToken{ExpiresAt: now.Add(time.Hour)}, want: true},
		{name: "no expiry", token: AccessToken{Value: "v"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.IsExpired(now, buffer))
		})
	}
}

func TestTokenPreview(t *testing.T) {
	assert.Equal(t, "ghs_a...", TokenPreview("ghs_abcdef123"))
	assert.Equal(t, "abc...", TokenPreview("abc"))
	assert.Equal(t, "ghs_a...", AccessToken{Value: "ghs_abcdef"}.Preview())
}

func TestRecordResult(t *testing.T) {
	created := NewCreatedRecord("rec-1", "a.example.com")
	assert.False(t, created.IsDegraded())
	assert.Equal(t, "rec-1", created.PersistableID())

	degraded := NewDegradedRecord("a.example.com", "already exists", time.Unix(0, 42))
	assert.True(t, degraded.IsDegraded())
	assert.Equal(t, degraded.ID, degraded.PersistableID())
	assert.True(t, IsPlaceholderRecordID(degraded.ID))
	assert.False(t, IsPlaceholderRecordID("rec-1"))
}
