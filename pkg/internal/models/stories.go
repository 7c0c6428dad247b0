package models

import "time"

// StoryLifetime is how long a story stays visible. Expiry is applied when
// reading, stories are not deleted by the store.
const StoryLifetime = 24 * time.Hour

type MusicTrack struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Artist         string  `json:"artist"`
	ThumbnailURL   string  `json:"thumbnailUrl"`
	StartTimeMs    int64   `json:"startTimeMs"`
	MusicStreamURL *string `json:"musicStreamUrl,omitempty"`
}

type Story struct {
	ID         string          `json:"id"`
	MediaURL   string          `json:"mediaUrl"`
	MediaType  string          `json:"mediaType"`
	Timestamp  int64           `json:"timestamp"`
	MusicTrack *MusicTrack     `json:"musicTrack,omitempty"`
	ViewedBy   map[string]bool `json:"viewedBy,omitempty"`
}

func (v Story) ExpiredAt(now time.Time) bool {
	return v.Timestamp <= now.Add(-StoryLifetime).UnixMilli()
}

type UserStory struct {
	User    User    `json:"user"`
	Stories []Story `json:"stories"`
}
