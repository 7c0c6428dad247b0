package models

type NotificationType = string

const (
	NotificationFollow     = NotificationType("FOLLOW")
	NotificationFollowBack = NotificationType("FOLLOW_BACK")
	NotificationUnknown    = NotificationType("UNKNOWN")
)

// AppNotification is an in-app activity entry, not a push message.
type AppNotification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	Timestamp     int64            `json:"timestamp"`
	ActorID       string           `json:"actorId"`
	ActorUsername string           `json:"actorUsername"`
	ActorPhotoURL *string          `json:"actorPhotoUrl,omitempty"`
	Read          bool             `json:"read"`
}
