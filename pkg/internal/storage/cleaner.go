package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CleanupExpiredMedia removes chat media older than MediaLifetime. Profile
// pictures live in another bucket and are never touched.
func CleanupExpiredMedia(ctx context.Context, store ObjectStorage, now time.Time) (int, error) {
	objects, err := store.List(ctx, MediaBucket)
	if err != nil {
		return 0, err
	}
	expired := Expired(objects, now, MediaLifetime)
	if len(expired) == 0 {
		return 0, nil
	}
	if err := store.Delete(ctx, MediaBucket, expired...); err != nil {
		return 0, err
	}
	return len(expired), nil
}

// DoAutoMediaCleanup is the cron entry of CleanupExpiredMedia.
func DoAutoMediaCleanup(store ObjectStorage) func() {
	return func() {
		log.Debug().Time("now", time.Now()).Msg("Now cleaning up expired media...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		count, err := CleanupExpiredMedia(ctx, store, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("An error occurred when cleaning up expired media...")
			return
		}
		log.Debug().Int("count", count).Msg("Expired media cleaned up.")
	}
}
