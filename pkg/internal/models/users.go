package models

import "strings"

// UnknownName is shown for a user without a display name.
const UnknownName = "Unknown"

// DisplayName falls back to UnknownName when name is blank.
func DisplayName(name string) string {
	if len(strings.TrimSpace(name)) == 0 {
		return UnknownName
	}
	return name
}

type User struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Bio            string  `json:"bio"`
	PhotoURL       *string `json:"photoUrl,omitempty"`
	Role           Role    `json:"role"`
	Verified       bool    `json:"verified"`
	FollowersCount int     `json:"followersCount"`
	FollowingCount int     `json:"followingCount"`
}

// PersonalChat is a DM row of the channel list.
type PersonalChat struct {
	ChannelID   string `json:"channel_id"`
	PeerID      string `json:"peer_id"`
	OtherUser   *User  `json:"other_user"`
	LastMessage string `json:"last_message"`
	Timestamp   int64  `json:"timestamp"`
	IsMuted     bool   `json:"is_muted"`
}
