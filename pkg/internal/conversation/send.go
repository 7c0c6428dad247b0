package conversation

import (
	"context"
	"fmt"
	"strings"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/notify"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/pushgw"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Send writes the draft. While editing it replaces the edited message
// text instead. The draft is kept when the write fails.
func (v *Conversation) Send(ctx context.Context) (models.Message, error) {
	v.mu.Lock()
	text := v.draft
	editing := v.editing
	reply := v.reply
	v.mu.Unlock()

	if editing != nil {
		return v.edit(ctx, *editing, text)
	}
	if len(strings.TrimSpace(text)) == 0 {
		return models.Message{}, ErrEmptyMessage
	}

	message := v.compose(text, reply)
	if err := v.write(ctx, message); err != nil {
		metrics.MessagesSent.WithLabelValues("text", "failed").Inc()
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when sending message...")
		return models.Message{}, err
	}
	metrics.MessagesSent.WithLabelValues("text", "sent").Inc()

	v.settle(ctx, text, true)
	v.announce(text)
	return message, nil
}

func (v *Conversation) edit(ctx context.Context, target models.Message, text string) (models.Message, error) {
	if target.SenderID != v.me || target.HasMedia() {
		return models.Message{}, ErrNotEditable
	}
	if len(strings.TrimSpace(text)) == 0 {
		return models.Message{}, ErrEmptyMessage
	}
	if err := v.ensureExists(ctx, target.ID); err != nil {
		return models.Message{}, err
	}

	path := models.MessagePath(v.channelId, target.ID)
	if err := v.tree.Update(ctx, map[string]any{
		path + "/message":  text,
		path + "/isEdited": true,
		models.ChannelFieldPath(v.channelId, "lastMessage"):          text,
		models.ChannelFieldPath(v.channelId, "lastMessageTimestamp"): v.clock.Now().UnixMilli(),
	}); err != nil {
		metrics.MessagesSent.WithLabelValues("edit", "failed").Inc()
		return models.Message{}, err
	}
	metrics.MessagesSent.WithLabelValues("edit", "sent").Inc()

	v.settle(ctx, text, false)
	target.Text = text
	target.IsEdited = true
	return target, nil
}

// compose builds a new message. The sender is its first viewer.
func (v *Conversation) compose(text string, reply *models.Message) models.Message {
	id, err := v.tree.Push(models.MessagesPath(v.channelId))
	if err != nil || len(id) == 0 {
		log.Warn().Err(err).Str("channel", v.channelId).Msg("Unable to allocate message id, falling back to a random one...")
		id = uuid.NewString()
	}
	message := models.Message{
		ID:         id,
		SenderID:   v.me,
		SenderName: v.myName,
		Text:       text,
		CreatedAt:  v.clock.Now().UnixMilli(),
		SeenBy:     models.SeenBy{v.me: models.NamedMark(v.myName)},
	}
	if reply != nil {
		message.ReplyTo = models.NewReplyMeta(*reply)
	}
	return message
}

// write stores the message together with the channel preview.
func (v *Conversation) write(ctx context.Context, message models.Message) error {
	node, err := models.EncodeNode(message)
	if err != nil {
		return err
	}
	return v.tree.Update(ctx, map[string]any{
		models.MessagePath(v.channelId, message.ID):                  node,
		models.ChannelFieldPath(v.channelId, "lastMessage"):          models.LastMessageLabel(message.Text, message.MediaType),
		models.ChannelFieldPath(v.channelId, "lastMessageTimestamp"): message.CreatedAt,
	})
}

// settle resets the composer after a successful write. The draft is only
// cleared if it still holds the sent text.
func (v *Conversation) settle(ctx context.Context, text string, clearReply bool) {
	v.mu.Lock()
	if v.draft == text {
		v.draft = ""
	}
	if clearReply {
		v.reply = nil
	}
	v.editing = nil
	v.mu.Unlock()

	if err := v.typer.Sent(ctx); err != nil {
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when clearing typing status...")
	}
}

func (v *Conversation) announce(content string) {
	if v.publisher == nil {
		return
	}
	v.mu.Lock()
	payload := notify.Payload{
		ChannelID:  v.channelId,
		SenderID:   v.me,
		SenderName: v.myName,
		Content:    content,
	}
	if v.channel != nil {
		payload.ChannelName = v.channel.Name
		payload.IsPersonal = v.channel.IsPersonal
	}
	v.mu.Unlock()

	v.publisher.Publish(pushgw.TopicFor(v.channelId), payload.Data())
}

// Unsend deletes an own message for everyone. No placeholder is left.
func (v *Conversation) Unsend(ctx context.Context, messageId string) error {
	v.mu.Lock()
	message, ok := v.find(messageId)
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageAbsent, messageId)
	}
	if message.SenderID != v.me {
		return ErrNotOwner
	}

	if err := v.tree.Remove(ctx, models.MessagePath(v.channelId, messageId)); err != nil {
		return err
	}

	v.mu.Lock()
	v.expanded = lo.Ternary(v.expanded == messageId, "", v.expanded)
	if v.reply != nil && v.reply.ID == messageId {
		v.reply = nil
	}
	v.mu.Unlock()
	return nil
}

// ToggleReaction sets the reaction of the local user. Sending the current
// emoji again removes it. It returns the reaction left in place.
func (v *Conversation) ToggleReaction(ctx context.Context, messageId, emoji string) (string, error) {
	path := models.ReactionPath(v.channelId, messageId, v.me)
	if len(emoji) == 0 {
		return "", v.tree.Remove(ctx, path)
	}

	if err := v.ensureExists(ctx, messageId); err != nil {
		return "", err
	}
	current, err := v.tree.Get(ctx, path)
	if err != nil {
		return "", err
	}
	if current.Exists && current.String() == emoji {
		return "", v.tree.Remove(ctx, path)
	}
	if err := v.tree.Set(ctx, path, emoji); err != nil {
		return "", err
	}
	return emoji, nil
}

// ensureExists reads the sender of a message from the store. Writing into
// a deleted message would bring back a bare node.
func (v *Conversation) ensureExists(ctx context.Context, messageId string) error {
	snapshot, err := v.tree.Get(ctx, models.MessagePath(v.channelId, messageId)+"/senderId")
	if err != nil {
		return err
	}
	if !snapshot.Exists {
		return fmt.Errorf("%w: %s", ErrMessageAbsent, messageId)
	}
	return nil
}
