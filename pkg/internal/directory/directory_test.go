package directory

import (
	"context"
	"errors"
	"testing"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) (*Directory, *realtime.MemoryTree) {
	tree := realtime.NewMemoryTree()
	return New(tree, NewStore("", "", 0), 0), tree
}

func TestGetUserReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	dir, tree := newTestDirectory(t)

	require.NoError(t, tree.Set(ctx, models.UserPath("alice"), map[string]any{
		"name":     "Alice",
		"username": "alice",
	}))

	user, err := dir.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", user.ID)
	require.Equal(t, "Alice", user.Name)

	require.NoError(t, tree.Set(ctx, models.UserPath("alice")+"/name", "Alice B."))
	cached, err := dir.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", cached.Name)

	require.NoError(t, dir.Invalidate(ctx, "alice"))
	fresh, err := dir.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice B.", fresh.Name)
}

func TestGetUserMissing(t *testing.T) {
	dir, _ := newTestDirectory(t)

	_, err := dir.GetUser(context.Background(), "ghost")
	require.True(t, errors.Is(err, ErrUserNotFound))
}

func TestGetUsersSkipsUnknown(t *testing.T) {
	ctx := context.Background()
	dir, tree := newTestDirectory(t)
	require.NoError(t, tree.Set(ctx, models.UserPath("bob"), map[string]any{"name": "Bob"}))

	users := dir.GetUsers(ctx, []string{"bob", "ghost", "bob"})
	require.Len(t, users, 1)
	require.Equal(t, "Bob", users["bob"].Name)
}

func TestFollowing(t *testing.T) {
	ctx := context.Background()
	dir, tree := newTestDirectory(t)
	require.NoError(t, tree.Set(ctx, models.FollowingPath("me"), map[string]any{"zed": true, "amy": true}))

	ids, err := dir.Following(ctx, "me")
	require.NoError(t, err)
	require.Equal(t, []string{"amy", "zed"}, ids)

	none, err := dir.Following(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}
