package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var ErrUserNotFound = errors.New("user not found")

const DefaultTTL = 10 * time.Minute

// NewStore picks the cache backend. A redis address selects redis, an
// empty one keeps profiles in process.
func NewStore(redisAddr, redisPassword string, redisDb int) store.StoreInterface {
	if len(redisAddr) > 0 {
		return redis_store.NewRedis(redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDb,
		}))
	}
	return gocache_store.NewGoCache(gocache.New(DefaultTTL, 2*DefaultTTL))
}

// Directory resolves user profiles from the tree through a cache.
type Directory struct {
	tree    realtime.Tree
	marshal *marshaler.Marshaler
	ttl     time.Duration
}

func New(tree realtime.Tree, cacheStore store.StoreInterface, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{
		tree:    tree,
		marshal: marshaler.New(cache.New[any](cacheStore)),
		ttl:     ttl,
	}
}

func GetUserCacheKey(userId string) string {
	return fmt.Sprintf("user-profile#%s", userId)
}

func (v *Directory) GetUser(ctx context.Context, userId string) (models.User, error) {
	key := GetUserCacheKey(userId)
	if val, err := v.marshal.Get(ctx, key, new(models.User)); err == nil {
		if user, ok := val.(*models.User); ok {
			return *user, nil
		}
	}

	snapshot, err := v.tree.Get(ctx, models.UserPath(userId))
	if err != nil {
		return models.User{}, err
	} else if !snapshot.Exists {
		return models.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userId)
	}

	var user models.User
	if err := snapshot.Decode(&user); err != nil {
		return user, fmt.Errorf("unable to decode user %s: %v", userId, err)
	}
	if len(user.ID) == 0 {
		user.ID = userId
	}

	if err := v.marshal.Set(
		ctx,
		key,
		user,
		store.WithExpiration(v.ttl),
		store.WithTags([]string{"user-profile", fmt.Sprintf("user#%s", userId)}),
	); err != nil {
		log.Warn().Err(err).Str("user", userId).Msg("An error occurred when caching user profile...")
	}
	return user, nil
}

// GetUsers resolves several profiles, skipping the ones that cannot be found.
func (v *Directory) GetUsers(ctx context.Context, userIds []string) map[string]models.User {
	out := make(map[string]models.User, len(userIds))
	for _, id := range lo.Uniq(userIds) {
		user, err := v.GetUser(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrUserNotFound) {
				log.Warn().Err(err).Str("user", id).Msg("An error occurred when resolving user profile...")
			}
			continue
		}
		out[id] = user
	}
	return out
}

func (v *Directory) Invalidate(ctx context.Context, userId string) error {
	return v.marshal.Invalidate(ctx, store.WithInvalidateTags([]string{fmt.Sprintf("user#%s", userId)}))
}

// Following lists the ids the user follows, sorted.
func (v *Directory) Following(ctx context.Context, userId string) ([]string, error) {
	snapshot, err := v.tree.Get(ctx, models.FollowingPath(userId))
	if err != nil {
		return nil, err
	}
	out := lo.FilterMap(snapshot.Children, func(item realtime.Snapshot, _ int) (string, bool) {
		return item.Key, item.Exists
	})
	sort.Strings(out)
	return out, nil
}
