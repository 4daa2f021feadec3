package realtime

import (
	"fmt"
	"strconv"
	"strings"
)

// UserChannel names the private per-user channel
func UserChannel(tenantID, userID uint) string {
	return fmt.Sprintf("private-federation-user-%d-%d", tenantID, userID)
}

// ConversationChannel names the private two-party conversation channel. The
// endpoints are ordered so both sides derive the same name.
func ConversationChannel(tenantA, userA, tenantB, userB uint) string {
	if tenantB < tenantA || (tenantB == tenantA && userB < userA) {
		tenantA, userA, tenantB, userB = tenantB, userB, tenantA, userA
	}
	return fmt.Sprintf("private-federation-conv-%d-%d-%d-%d", tenantA, userA, tenantB, userB)
}

// AuthorizeChannel reports whether a user may subscribe to a channel. Users
// get their own channel and any conversation channel they are an endpoint
// of. Only the canonical conversation name authorizes; messages are never
// published on the reversed form. Unknown channel shapes are denied.
func AuthorizeChannel(channel string, userID, tenantID uint) bool {
	switch {
	case strings.HasPrefix(channel, "private-federation-user-"):
		return channel == UserChannel(tenantID, userID)
	case strings.HasPrefix(channel, "private-federation-conv-"):
		parts := strings.Split(strings.TrimPrefix(channel, "private-federation-conv-"), "-")
		if len(parts) != 4 {
			return false
		}
		ids := make([]uint, 4)
		for i, p := range parts {
			n, err := strconv.ParseUint(p, 10, 32)
			if err != nil {
				return false
			}
			ids[i] = uint(n)
		}
		if channel != ConversationChannel(ids[0], ids[1], ids[2], ids[3]) {
			return false
		}
		return (ids[0] == tenantID && ids[1] == userID) || (ids[2] == tenantID && ids[3] == userID)
	}
	return false
}
