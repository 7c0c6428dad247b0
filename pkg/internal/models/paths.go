package models

import "strings"

// Store layout. Every path the client touches is built here.

func JoinPath(segments ...string) string {
	return "/" + strings.Join(segments, "/")
}

func MessagesPath(channelId string) string {
	return JoinPath("messages", channelId)
}

func MessagePath(channelId, messageId string) string {
	return JoinPath("messages", channelId, messageId)
}

func SeenByPath(channelId, messageId, userId string) string {
	return JoinPath("messages", channelId, messageId, "seenBy", userId)
}

func ReactionPath(channelId, messageId, userId string) string {
	return JoinPath("messages", channelId, messageId, "reactions", userId)
}

func TypingChannelPath(channelId string) string {
	return JoinPath("typing_status", channelId)
}

func TypingPath(channelId, userId string) string {
	return JoinPath("typing_status", channelId, userId)
}

func ChannelsPath() string {
	return JoinPath("channels")
}

func ChannelPath(channelId string) string {
	return JoinPath("channels", channelId)
}

func ChannelFieldPath(channelId string, field ...string) string {
	return JoinPath(append([]string{"channels", channelId}, field...)...)
}

func UserPath(userId string) string {
	return JoinPath("users", userId)
}

func FollowingPath(userId string) string {
	return JoinPath("following", userId)
}

func StoriesPath() string {
	return JoinPath("stories")
}

func StoryPath(authorId, storyId string) string {
	return JoinPath("stories", authorId, storyId)
}

func NotificationsPath(userId string) string {
	return JoinPath("notifications", userId)
}

func NotificationPath(userId, notificationId string) string {
	return JoinPath("notifications", userId, notificationId)
}
