package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagsMatches(t *testing.T) {
	tags := Tags{
		"subject": {"math", "statistics"},
		"level":   {"intro"},
	}

	t.Run("empty filter matches", func(t *testing.T) {
		assert.True(t, tags.Matches(nil))
		assert.True(t, tags.Matches(Tags{}))
	})

	t.Run("single key overlap", func(t *testing.T) {
		assert.True(t, tags.Matches(Tags{"subject": {"statistics"}}))
	})

	t.Run("all filter keys must be present", func(t *testing.T) {
		assert.True(t, tags.Matches(Tags{"subject": {"math"}, "level": {"intro"}}))
		assert.False(t, tags.Matches(Tags{"subject": {"math"}, "exam": {"2026"}}))
	})

	t.Run("value mismatch", func(t *testing.T) {
		assert.False(t, tags.Matches(Tags{"subject": {"history"}}))
	})

	t.Run("nil tags only match empty filter", func(t *testing.T) {
		var none Tags
		assert.True(t, none.Matches(nil))
		assert.False(t, none.Matches(Tags{"subject": {"math"}}))
	})
}
