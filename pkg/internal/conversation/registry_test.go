package conversation

import (
	"errors"
	"testing"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/stretchr/testify/require"
)

func TestRegistryKeepsOnePerChannel(t *testing.T) {
	tree := realtime.NewMemoryTree()
	registry := NewRegistry(func(channelId string) *Conversation {
		return New(tree, channelId, "me", "Me")
	})

	_, err := registry.Get("c1")
	require.True(t, errors.Is(err, ErrNotOpen))

	first, err := registry.Open("c1")
	require.NoError(t, err)
	again, err := registry.Open("c1")
	require.NoError(t, err)
	require.Same(t, first, again)

	_, err = registry.Open("c2")
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, registry.Channels())

	registry.Close("c1")
	registry.Close("unknown")
	require.Equal(t, []string{"c2"}, registry.Channels())

	registry.CloseAll()
	require.Empty(t, registry.Channels())
	require.Equal(t, 0, tree.Watchers())
}
