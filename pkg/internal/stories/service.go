package stories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/storage"
	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrNotAuthor     = errors.New("story belongs to another user")
	ErrInvalidUpload = errors.New("invalid story upload")
	ErrNoStorage     = errors.New("no object storage configured")
)

var validation = validator.New(validator.WithRequiredStructEnabled())

// UserLookup resolves user profiles and the follow graph.
type UserLookup interface {
	GetUsers(ctx context.Context, userIds []string) map[string]models.User
	Following(ctx context.Context, userId string) ([]string, error)
}

type Upload struct {
	Type        string             `json:"type" validate:"required,oneof=image video"`
	ContentType string             `json:"content_type"`
	Data        []byte             `json:"data" validate:"required,min=1,max=26214400"`
	MusicTrack  *models.MusicTrack `json:"music_track"`
}

type Option func(*Service)

func WithClock(clk clock.Clock) Option {
	return func(v *Service) {
		v.clock = clk
	}
}

func WithStorage(store storage.ObjectStorage) Option {
	return func(v *Service) {
		v.storage = store
	}
}

type Service struct {
	tree    realtime.Tree
	users   UserLookup
	storage storage.ObjectStorage
	clock   clock.Clock
	me      string
}

func NewService(tree realtime.Tree, users UserLookup, me string, opts ...Option) *Service {
	v := &Service{
		tree:  tree,
		users: users,
		clock: clock.New(),
		me:    me,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Feed lists the active stories of followed users and of the current user.
func (v *Service) Feed(ctx context.Context) ([]models.UserStory, error) {
	following, err := v.users.Following(ctx, v.me)
	if err != nil {
		return nil, err
	}
	authors := lo.Uniq(append(following, v.me))

	snapshot, err := v.tree.Get(ctx, models.StoriesPath())
	if err != nil {
		return nil, err
	}
	byUser := DecodeStories(snapshot)
	authors = lo.Filter(authors, func(item string, _ int) bool {
		return len(byUser[item]) > 0
	})
	return Active(byUser, v.users.GetUsers(ctx, authors), authors, v.clock.Now()), nil
}

// MarkViewed records the current user as a viewer. Own stories and stories
// already viewed are left alone.
func (v *Service) MarkViewed(ctx context.Context, authorId string, story models.Story) (bool, error) {
	if authorId == v.me || story.ViewedBy[v.me] {
		return false, nil
	}
	path := models.StoryPath(authorId, story.ID) + "/viewedBy/" + v.me
	if err := v.tree.Set(ctx, path, true); err != nil {
		return false, err
	}
	return true, nil
}

// Viewers resolves the profiles of everyone who viewed story.
func (v *Service) Viewers(ctx context.Context, story models.Story) []models.User {
	ids := lo.Keys(lo.PickBy(story.ViewedBy, func(_ string, viewed bool) bool { return viewed }))
	out := lo.Values(v.users.GetUsers(ctx, ids))
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes an own story, media first. A media object that cannot be
// removed is logged and left to the sweep.
func (v *Service) Delete(ctx context.Context, authorId string, story models.Story) error {
	if authorId != v.me {
		return ErrNotAuthor
	}
	if v.storage != nil {
		for _, bucket := range []string{storage.MediaBucket, storage.ProfileBucket} {
			name, ok := storage.ObjectNameFromURL(story.MediaURL, bucket)
			if !ok {
				continue
			}
			if err := v.storage.Delete(ctx, bucket, name); err != nil {
				log.Warn().Err(err).Str("story", story.ID).Msg("An error occurred when deleting story media...")
			}
			break
		}
	}
	return v.tree.Remove(ctx, models.StoryPath(v.me, story.ID))
}

// Publish uploads the media then writes the story. Nothing is written when
// the upload fails.
func (v *Service) Publish(ctx context.Context, upload Upload) (models.Story, error) {
	if err := validation.Struct(upload); err != nil {
		return models.Story{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	if v.storage == nil {
		return models.Story{}, ErrNoStorage
	}

	now := v.clock.Now()
	name := storage.NewMediaName(upload.Type, now)
	contentType := lo.Ternary(len(upload.ContentType) > 0, upload.ContentType, storage.ContentTypeOf(upload.Type))
	url, err := v.storage.Upload(ctx, storage.MediaBucket, name, upload.Data, contentType)
	if err != nil {
		return models.Story{}, fmt.Errorf("unable to upload story media: %w", err)
	}

	id, err := v.tree.Push(models.JoinPath("stories", v.me))
	if err != nil {
		_ = v.storage.Delete(context.Background(), storage.MediaBucket, name)
		return models.Story{}, fmt.Errorf("unable to allocate story id: %v", err)
	}

	story := models.Story{
		ID:         id,
		MediaURL:   url,
		MediaType:  upload.Type,
		Timestamp:  now.UnixMilli(),
		MusicTrack: upload.MusicTrack,
	}
	node, err := models.EncodeNode(story)
	if err != nil {
		return story, err
	}
	if err := v.tree.Set(ctx, models.StoryPath(v.me, id), node); err != nil {
		_ = v.storage.Delete(context.Background(), storage.MediaBucket, name)
		return models.Story{}, err
	}
	return story, nil
}
