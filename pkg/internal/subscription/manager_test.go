package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/stretchr/testify/require"
)

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	tree := realtime.NewMemoryTree()
	manager := NewManager(tree)
	defer manager.Close()

	sub, err := manager.Subscribe("/messages/c1", realtime.Query{OrderBy: "createdAt"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	initial, err := sub.Next(ctx)
	require.NoError(t, err)
	require.False(t, initial.Exists)

	require.NoError(t, tree.Set(ctx, "/messages/c1/m1", map[string]any{"createdAt": 1}))
	require.NoError(t, tree.Set(ctx, "/messages/c1/m2", map[string]any{"createdAt": 2}))

	require.Eventually(t, func() bool {
		next, err := sub.Next(ctx)
		return err == nil && len(next.Children) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDuplicateSubscribeIsRejected(t *testing.T) {
	manager := NewManager(realtime.NewMemoryTree())
	defer manager.Close()

	_, err := manager.Subscribe("/typing_status/c1", realtime.Query{})
	require.NoError(t, err)

	_, err = manager.Subscribe("typing_status/c1/", realtime.Query{})
	require.True(t, errors.Is(err, ErrAlreadySubscribed))
}

func TestCloseIsSynchronous(t *testing.T) {
	tree := realtime.NewMemoryTree()
	manager := NewManager(tree)

	sub, err := manager.Subscribe("/messages/c1", realtime.Query{})
	require.NoError(t, err)

	sub.Close()
	require.Equal(t, 0, tree.Watchers())
	require.Empty(t, manager.Paths())

	require.NoError(t, tree.Set(context.Background(), "/messages/c1/m1", "x"))
	_, err = sub.Next(context.Background())
	require.True(t, errors.Is(err, ErrClosed))

	// Closing twice is harmless and the path can be watched again.
	sub.Close()
	_, err = manager.Subscribe("/messages/c1", realtime.Query{})
	require.NoError(t, err)
	manager.Close()
	require.Equal(t, 0, tree.Watchers())
}

func TestManagerCloseRejectsNewSubscriptions(t *testing.T) {
	manager := NewManager(realtime.NewMemoryTree())
	manager.Close()

	_, err := manager.Subscribe("/messages/c1", realtime.Query{})
	require.True(t, errors.Is(err, ErrClosed))
}

func TestErrorIsReportedOnceAndStreamStaysOpen(t *testing.T) {
	tree := realtime.NewMemoryTree()
	tree.Deny("/messages/c1")
	manager := NewManager(tree)
	defer manager.Close()

	sub, err := manager.Subscribe("/messages/c1", realtime.Query{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sub.Err() != nil
	}, time.Second, 5*time.Millisecond)
	first := sub.Err()
	require.True(t, errors.Is(first, realtime.ErrPermissionDenied))

	tree.Allow("/messages/c1")
	require.NoError(t, tree.Set(context.Background(), "/messages/c1/m1", "x"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snapshot, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, snapshot.Exists)
	require.Equal(t, first, sub.Err())
}

func TestNextHonorsContext(t *testing.T) {
	manager := NewManager(realtime.NewMemoryTree())
	defer manager.Close()

	sub, err := manager.Subscribe("/messages/c1", realtime.Query{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_, err = sub.Next(ctx)
	cancel()
	require.NoError(t, err)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sub.Next(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}
