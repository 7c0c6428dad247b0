package conversation

import (
	"sort"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type Item struct {
	Message    models.Message `json:"message"`
	Mine       bool           `json:"mine"`
	DateHeader bool           `json:"date_header"`
	// SeenBy holds the viewers whose furthest read point is this message.
	SeenBy   []string `json:"seen_by,omitempty"`
	Expanded bool     `json:"expanded"`
}

type View struct {
	ChannelID  string            `json:"channel_id"`
	Channel    *models.Channel   `json:"channel,omitempty"`
	PeerID     string            `json:"peer_id,omitempty"`
	Items      []Item            `json:"items"`
	Typing     string            `json:"typing"`
	Draft      string            `json:"draft"`
	ReplyingTo *models.ReplyMeta `json:"replying_to,omitempty"`
	Editing    *models.Message   `json:"editing,omitempty"`
	Stale      bool              `json:"stale"`
}

// NeedsDateHeader reports whether a day separator goes above messages[index].
// A zero timestamp on either side never starts a new day.
func NeedsDateHeader(messages []models.Message, index int, loc *time.Location) bool {
	if index == 0 {
		return true
	}
	if index < 0 || index >= len(messages) {
		return false
	}
	prev, curr := messages[index-1].CreatedAt, messages[index].CreatedAt
	if prev == 0 || curr == 0 {
		return false
	}
	if loc == nil {
		loc = time.Local
	}
	a, b := time.UnixMilli(prev).In(loc), time.UnixMilli(curr).In(loc)
	return a.Year() != b.Year() || a.YearDay() != b.YearDay()
}

// DecodeMessages reads a messages snapshot in server order. Duplicate ids
// keep their first occurrence, malformed and incomplete children are skipped.
func DecodeMessages(snapshot realtime.Snapshot) []models.Message {
	out := make([]models.Message, 0, len(snapshot.Children))
	for _, child := range snapshot.Children {
		var message models.Message
		if err := child.Decode(&message); err != nil {
			log.Warn().Err(err).Str("path", child.Path).Msg("Skipped a malformed message...")
			continue
		}
		if !message.Complete() {
			log.Debug().Str("path", child.Path).Msg("Skipped an incomplete message...")
			continue
		}
		if len(message.ID) == 0 {
			message.ID = child.Key
		}
		out = append(out, message)
	}
	return Order(out)
}

// Order sorts by creation time then id and drops duplicate ids. Push ids
// grow with time, so equal timestamps still resolve the same way everywhere.
func Order(messages []models.Message) []models.Message {
	out := lo.UniqBy(messages, func(item models.Message) string {
		return item.ID
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Visible drops history older than the hide timestamp of the viewer.
func Visible(messages []models.Message, hiddenAt int64) []models.Message {
	if hiddenAt <= 0 {
		return messages
	}
	return lo.Filter(messages, func(item models.Message, _ int) bool {
		return item.CreatedAt > hiddenAt
	})
}
