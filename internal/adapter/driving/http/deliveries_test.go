package httphandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newDeliveryCache(time.Hour, func() time.Time { return now })

	assert.False(t, c.markSeen("a"))
	assert.True(t, c.markSeen("a"))
	assert.False(t, c.markSeen("b"))

	c.forget("a")
	assert.False(t, c.markSeen("a"))

	now = now.Add(2 * time.Hour)
	assert.False(t, c.markSeen("b"), "expired ids are evicted")
	assert.Len(t, c.seen, 1)
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "repo_name", toSnake("RepoName"))
	assert.Equal(t, "zone_id", toSnake("ZoneID"))
	assert.Equal(t, "domain", toSnake("Domain"))
}
