package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostStatusTransitions(t *testing.T) {
	tests := []struct {
		from PostStatus
		to   PostStatus
		want bool
	}{
		{PostStatusDraft, PostStatusScheduled, true},
		{PostStatusScheduled, PostStatusPublishing, true},
		{PostStatusScheduled, PostStatusCancelled, true},
		{PostStatusPublishing, PostStatusPublished, true},
		{PostStatusPublishing, PostStatusFailed, true},
		{PostStatusFailed, PostStatusScheduled, true},
		{PostStatusPublishing, PostStatusCancelled, false},
		{PostStatusFailed, PostStatusPublished, false},
		{PostStatusDraft, PostStatusPublishing, false},
		{PostStatusDraft, PostStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	t.Run("terminal states have no exits", func(t *testing.T) {
		for _, terminal := range []PostStatus{PostStatusPublished, PostStatusCancelled} {
			assert.True(t, terminal.IsTerminal())
			for _, next := range AllPostStatuses {
				assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
			}
		}
	})
}

func TestPlatformValid(t *testing.T) {
	assert.True(t, PlatformFacebook.Valid())
	assert.True(t, Platform("tiktok").Valid())
	assert.False(t, Platform("myspace").Valid())
}
