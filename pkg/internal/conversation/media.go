package conversation

import (
	"context"
	"errors"
	"fmt"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/storage"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// MaxMediaSize caps a single attachment.
const MaxMediaSize = 25 << 20

var ErrInvalidMedia = errors.New("invalid media")

var validation = validator.New(validator.WithRequiredStructEnabled())

type MediaUpload struct {
	Type        string `json:"type" validate:"required,oneof=image video"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data" validate:"required,min=1,max=26214400"`
	Thumbnail   []byte `json:"thumbnail" validate:"omitempty,max=26214400"`
	Caption     string `json:"caption" validate:"max=4096"`
}

// Validate rejects an upload before anything is sent.
func (v MediaUpload) Validate() error {
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	return nil
}

// SendMedia uploads the thumbnail then the media, then writes the message.
// When any step fails the uploaded objects are removed and nothing is
// written.
func (v *Conversation) SendMedia(ctx context.Context, upload MediaUpload) (models.Message, error) {
	if err := upload.Validate(); err != nil {
		return models.Message{}, err
	}
	if v.storage == nil {
		return models.Message{}, ErrNoStorage
	}

	v.mu.Lock()
	reply := v.reply
	v.mu.Unlock()

	now := v.clock.Now()
	var uploaded []string
	abandon := func(err error) (models.Message, error) {
		metrics.MessagesSent.WithLabelValues("media", "failed").Inc()
		if len(uploaded) > 0 {
			if derr := v.storage.Delete(context.Background(), storage.MediaBucket, uploaded...); derr != nil {
				log.Warn().Err(derr).Strs("objects", uploaded).Msg("An error occurred when removing abandoned uploads...")
			}
		}
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when sending media message...")
		return models.Message{}, err
	}

	var thumbnailUrl *string
	if len(upload.Thumbnail) > 0 {
		name := storage.NewMediaName("thumb", now)
		url, err := v.storage.Upload(ctx, storage.MediaBucket, name, upload.Thumbnail, storage.ContentTypeOf("thumb"))
		if err != nil {
			return abandon(fmt.Errorf("unable to upload thumbnail: %w", err))
		}
		uploaded = append(uploaded, name)
		thumbnailUrl = &url
	}

	name := storage.NewMediaName(upload.Type, now)
	contentType := lo.Ternary(len(upload.ContentType) > 0, upload.ContentType, storage.ContentTypeOf(upload.Type))
	mediaUrl, err := v.storage.Upload(ctx, storage.MediaBucket, name, upload.Data, contentType)
	if err != nil {
		return abandon(fmt.Errorf("unable to upload media: %w", err))
	}
	uploaded = append(uploaded, name)

	mediaType := upload.Type
	message := v.compose(upload.Caption, reply)
	message.MediaURL = &mediaUrl
	message.MediaType = &mediaType
	message.ThumbnailURL = thumbnailUrl
	if err := v.write(ctx, message); err != nil {
		return abandon(err)
	}
	metrics.MessagesSent.WithLabelValues("media", "sent").Inc()

	v.mu.Lock()
	v.reply = nil
	v.mu.Unlock()
	if err := v.typer.Sent(ctx); err != nil {
		log.Warn().Err(err).Str("channel", v.channelId).Msg("An error occurred when clearing typing status...")
	}

	content := upload.Caption
	if len(content) == 0 {
		content = lo.Ternary(mediaType == models.MediaTypeImage, "Sent a photo", "Sent a video")
	}
	v.announce(content)
	return message, nil
}
