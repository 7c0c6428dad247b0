package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// MediaBucket holds chat media and story media. It is swept daily.
	MediaBucket = "syncup_media"
	// ProfileBucket holds profile pictures and is never swept.
	ProfileBucket = "syncup_images"
)

// MediaLifetime is how long chat media is kept before the sweep removes it.
const MediaLifetime = 24 * time.Hour

var ErrNotFound = errors.New("object not found")

type Object struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// ObjectStorage is the bucket based blob store behind media messages.
type ObjectStorage interface {
	// Upload stores data and returns its public URL.
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, bucket string, names ...string) error
	List(ctx context.Context, bucket string) ([]Object, error)
}

// NewMediaName builds a collision free object name, kind is image, video or thumb.
func NewMediaName(kind string, now time.Time) string {
	ext := lo.Switch[string, string](kind).
		Case("video", "mp4").
		Default("jpg")
	return fmt.Sprintf("%s_%d_%s.%s", kind, now.UnixMilli(), uuid.NewString(), ext)
}

// NewProfileName names a profile picture.
func NewProfileName() string {
	return fmt.Sprintf("image_%s.jpg", uuid.NewString())
}

// ContentTypeOf guesses the upload content type from the media kind.
func ContentTypeOf(kind string) string {
	if kind == "video" {
		return "video/mp4"
	}
	return "image/jpeg"
}

// ObjectNameFromURL recovers the object name of a public URL in bucket.
func ObjectNameFromURL(raw, bucket string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := lo.IndexOf(segments, bucket)
	if idx < 0 || idx+1 >= len(segments) {
		return "", false
	}
	name := strings.Join(segments[idx+1:], "/")
	return name, len(name) > 0
}

// Expired selects objects older than lifetime. Objects without a creation
// time are kept.
func Expired(objects []Object, now time.Time, lifetime time.Duration) []string {
	cutoff := now.Add(-lifetime)
	return lo.FilterMap(objects, func(item Object, _ int) (string, bool) {
		return item.Name, !item.CreatedAt.IsZero() && item.CreatedAt.Before(cutoff)
	})
}
