package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
	errs      []error
}

func (v *recorder) OnSnapshot(snapshot Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshots = append(v.snapshots, snapshot)
}

func (v *recorder) OnError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs = append(v.errs, err)
}

func (v *recorder) last() (Snapshot, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.snapshots) == 0 {
		return Snapshot{}, 0
	}
	return v.snapshots[len(v.snapshots)-1], len(v.snapshots)
}

func (v *recorder) errCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.errs)
}

func TestSetAndGet(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	require.NoError(t, tree.Set(ctx, "/channels/c1", map[string]any{"name": "general", "members": map[string]any{"u1": "owner"}}))

	snapshot, err := tree.Get(ctx, "/channels/c1/name")
	require.NoError(t, err)
	require.True(t, snapshot.Exists)
	require.Equal(t, "general", snapshot.String())

	snapshot, err = tree.Get(ctx, "/channels/c2")
	require.NoError(t, err)
	require.False(t, snapshot.Exists)
}

func TestRemovePrunesEmptyParents(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	require.NoError(t, tree.Set(ctx, "/typing_status/c1/u1", "Alice"))
	require.NoError(t, tree.Remove(ctx, "/typing_status/c1/u1"))

	snapshot, err := tree.Get(ctx, "/typing_status")
	require.NoError(t, err)
	require.False(t, snapshot.Exists)
}

func TestOrderByFieldThenKey(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	require.NoError(t, tree.Update(ctx, map[string]any{
		"/messages/c1/b": map[string]any{"createdAt": 100},
		"/messages/c1/a": map[string]any{"createdAt": 100},
		"/messages/c1/c": map[string]any{"createdAt": 50},
	}))

	rec := &recorder{}
	reg := tree.Watch("/messages/c1", Query{OrderBy: "createdAt"}, rec)
	defer reg.Remove()

	require.Eventually(t, func() bool {
		_, n := rec.last()
		return n > 0
	}, time.Second, 5*time.Millisecond)

	snapshot, _ := rec.last()
	var keys []string
	for _, child := range snapshot.Children {
		keys = append(keys, child.Key)
	}
	require.Equal(t, []string{"c", "a", "b"}, keys)
}

func TestUpdateRejectsOverlappingPaths(t *testing.T) {
	tree := NewMemoryTree()
	err := tree.Update(context.Background(), map[string]any{
		"/messages/c1/m1":        map[string]any{"message": "hi"},
		"/messages/c1/m1/seenBy": map[string]any{"u2": "Bob"},
	})
	require.True(t, errors.Is(err, ErrInvalidPath))
}

func TestWatchDeliversFullSnapshots(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	rec := &recorder{}
	reg := tree.Watch("/messages/c1", Query{OrderBy: "createdAt"}, rec)

	require.NoError(t, tree.Set(ctx, "/messages/c1/m1", map[string]any{"createdAt": 1}))
	require.NoError(t, tree.Set(ctx, "/messages/c1/m2", map[string]any{"createdAt": 2}))

	require.Eventually(t, func() bool {
		snapshot, _ := rec.last()
		return len(snapshot.Children) == 2
	}, time.Second, 5*time.Millisecond)

	reg.Remove()
	require.Equal(t, 0, tree.Watchers())

	_, before := rec.last()
	require.NoError(t, tree.Set(ctx, "/messages/c1/m3", map[string]any{"createdAt": 3}))
	time.Sleep(20 * time.Millisecond)
	_, after := rec.last()
	require.Equal(t, before, after)
}

func TestUnrelatedWritesDoNotFire(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	rec := &recorder{}
	reg := tree.Watch("/messages/c1", Query{}, rec)
	defer reg.Remove()

	require.Eventually(t, func() bool {
		_, n := rec.last()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, tree.Set(ctx, "/messages/c2/m1", map[string]any{"createdAt": 1}))
	time.Sleep(20 * time.Millisecond)
	_, n := rec.last()
	require.Equal(t, 1, n)
}

func TestDeniedWatchReportsError(t *testing.T) {
	tree := NewMemoryTree()
	tree.Deny("/messages/secret")

	rec := &recorder{}
	reg := tree.Watch("/messages/secret", Query{}, rec)
	defer reg.Remove()

	require.Eventually(t, func() bool {
		return rec.errCount() > 0
	}, time.Second, 5*time.Millisecond)

	err := tree.Set(context.Background(), "/messages/secret/m1", "x")
	require.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestDisconnectRunsCleanups(t *testing.T) {
	tree := NewMemoryTree()
	ctx := context.Background()

	require.NoError(t, tree.OnDisconnectRemove("/typing_status/c1/u1"))
	require.NoError(t, tree.Set(ctx, "/typing_status/c1/u1", "Alice"))
	require.NoError(t, tree.Disconnect(ctx))

	snapshot, err := tree.Get(ctx, "/typing_status/c1/u1")
	require.NoError(t, err)
	require.False(t, snapshot.Exists)
}

func TestPushKeysAreOrderedAndUnique(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	keys := NewKeyGenerator(func() time.Time { return now })

	var last string
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		if i == 250 {
			now = now.Add(time.Millisecond)
		}
		key, err := keys.Next()
		require.NoError(t, err)
		require.Len(t, key, 20)
		require.False(t, seen[key])
		require.Greater(t, key, last)
		seen[key] = true
		last = key
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	value := map[string]any{
		"name":    "general",
		"members": map[string]any{"u1": "owner", "u2": "member"},
	}
	leaves := Flatten("/channels/c1", value)
	require.Equal(t, "owner", leaves["/channels/c1/members/u1"])
	require.Len(t, leaves, 3)

	root := Unflatten(leaves)
	require.Equal(t, value, root["channels"].(map[string]any)["c1"])
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `/messages/a\_b\%`, escapeLike("/messages/a_b%"))
}
