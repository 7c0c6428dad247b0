package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Memory is an in-process ObjectStorage, used when no remote storage is
// configured.
type Memory struct {
	BaseURL string
	Now     func() time.Time

	mu      sync.Mutex
	buckets map[string]map[string]Object
	failing map[string]error
}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		BaseURL: baseURL,
		Now:     time.Now,
		buckets: make(map[string]map[string]Object),
		failing: make(map[string]error),
	}
}

// FailUploads makes every upload whose name starts with prefix fail.
func (v *Memory) FailUploads(prefix string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failing[prefix] = err
}

func (v *Memory) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for prefix, err := range v.failing {
		if strings.HasPrefix(name, prefix) {
			return "", err
		}
	}
	if _, ok := v.buckets[bucket]; !ok {
		v.buckets[bucket] = make(map[string]Object)
	}
	v.buckets[bucket][name] = Object{Name: name, CreatedAt: v.Now(), Size: int64(len(data))}
	return fmt.Sprintf("%s/%s/%s", v.BaseURL, bucket, name), nil
}

func (v *Memory) Delete(ctx context.Context, bucket string, names ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, name := range names {
		delete(v.buckets[bucket], name)
	}
	return nil
}

func (v *Memory) List(ctx context.Context, bucket string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	out := lo.Values(v.buckets[bucket])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Put inserts an object directly, bypassing the clock.
func (v *Memory) Put(bucket string, object Object) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.buckets[bucket]; !ok {
		v.buckets[bucket] = make(map[string]Object)
	}
	v.buckets[bucket][object.Name] = object
}
