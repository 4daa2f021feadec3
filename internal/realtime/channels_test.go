package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "private-federation-user-2-7", UserChannel(2, 7))
}

func TestConversationChannelSymmetry(t *testing.T) {
	// Both endpoints derive the same channel name
	a := ConversationChannel(1, 10, 2, 20)
	b := ConversationChannel(2, 20, 1, 10)
	assert.Equal(t, a, b)
	assert.Equal(t, "private-federation-conv-1-10-2-20", a)

	// Same tenant, ordered by user id
	assert.Equal(t, "private-federation-conv-3-5-3-9", ConversationChannel(3, 9, 3, 5))
}

func TestAuthorizeChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		userID  uint
		tenant  uint
		want    bool
	}{
		{"own user channel", "private-federation-user-2-7", 7, 2, true},
		{"someone else's user channel", "private-federation-user-2-8", 7, 2, false},
		{"conversation endpoint a", "private-federation-conv-1-10-2-20", 10, 1, true},
		{"conversation endpoint b", "private-federation-conv-1-10-2-20", 20, 2, true},
		{"conversation outsider", "private-federation-conv-1-10-2-20", 30, 3, false},
		{"non-canonical endpoint order", "private-federation-conv-2-20-1-10", 10, 1, false},
		{"malformed conversation", "private-federation-conv-1-10-2", 10, 1, false},
		{"non-numeric ids", "private-federation-conv-a-b-c-d", 10, 1, false},
		{"unknown shape", "presence-lobby", 10, 1, false},
		{"empty", "", 10, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuthorizeChannel(tt.channel, tt.userID, tt.tenant))
		})
	}
}
