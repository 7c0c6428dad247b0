package models

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type Message struct {
	ID           string            `json:"id"`
	SenderID     string            `json:"senderId"`
	SenderName   string            `json:"senderName"`
	Text         string            `json:"message"`
	CreatedAt    int64             `json:"createdAt"`
	MediaURL     *string           `json:"mediaUrl,omitempty"`
	MediaType    *string           `json:"mediaType,omitempty"`
	ThumbnailURL *string           `json:"thumbnailUrl,omitempty"`
	ReplyTo      *ReplyMeta        `json:"replyTo,omitempty"`
	SeenBy       SeenBy            `json:"seenBy,omitempty"`
	Reactions    map[string]string `json:"reactions,omitempty"`
	IsEdited     bool              `json:"isEdited"`
}

// Complete reports whether the node is a whole message. A seen mark or a
// reaction written after a delete leaves a bare node without sender.
func (v Message) Complete() bool {
	return len(v.SenderID) > 0 && v.CreatedAt > 0
}

// HasMedia reports whether the message carries an attachment.
// Media messages cannot be edited.
func (v Message) HasMedia() bool {
	return v.MediaURL != nil && len(*v.MediaURL) > 0
}

// PreviewText is the text shown where a message is summarized,
// falling back to a media label for media-only messages.
func (v Message) PreviewText() string {
	if len(v.Text) > 0 {
		return v.Text
	}
	if v.MediaType != nil && *v.MediaType == MediaTypeImage {
		return "Photo"
	}
	return "Video"
}

// ReplyMeta is a copy of the replied message taken at send time.
// It is never refreshed when the original changes.
type ReplyMeta struct {
	MessageID    string  `json:"messageId"`
	SenderName   string  `json:"senderName"`
	Text         string  `json:"message"`
	MediaType    *string `json:"mediaType,omitempty"`
	ThumbnailURL *string `json:"thumbnailUrl,omitempty"`
}

func NewReplyMeta(target Message) *ReplyMeta {
	return &ReplyMeta{
		MessageID:    target.ID,
		SenderName:   target.SenderName,
		Text:         target.PreviewText(),
		MediaType:    target.MediaType,
		ThumbnailURL: target.ThumbnailURL,
	}
}

// LastMessageLabel is the denormalized channel preview written on every send.
func LastMessageLabel(text string, mediaType *string) string {
	if len(text) > 0 || mediaType == nil {
		return text
	}
	switch *mediaType {
	case MediaTypeImage:
		return "📷 Photo"
	case MediaTypeVideo:
		return "📹 Video"
	}
	return text
}
