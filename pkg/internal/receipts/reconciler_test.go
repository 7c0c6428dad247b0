package receipts

import (
	"context"
	"testing"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/stretchr/testify/require"
)

type countingTree struct {
	*realtime.MemoryTree
	batches []map[string]any
}

func (v *countingTree) Update(ctx context.Context, values map[string]any) error {
	v.batches = append(v.batches, values)
	return v.MemoryTree.Update(ctx, values)
}

func TestUnread(t *testing.T) {
	messages := []models.Message{
		{ID: "m1", SenderID: "me"},
		{ID: "m2", SenderID: "bob", SeenBy: models.SeenBy{"me": {Legacy: true}}},
		{ID: "m3", SenderID: "bob", SeenBy: models.SeenBy{"bob": models.NamedMark("Bob")}},
		{ID: "m4", SenderID: "carol"},
	}

	unread := Unread(messages, "me")
	require.Len(t, unread, 2)
	require.Equal(t, "m3", unread[0].ID)
	require.Equal(t, "m4", unread[1].ID)
	require.Equal(t, 2, UnreadCount(messages, "me"))
}

func TestMarkReadIsIdempotent(t *testing.T) {
	tree := &countingTree{MemoryTree: realtime.NewMemoryTree()}
	ctx := context.Background()
	require.NoError(t, tree.MemoryTree.Set(ctx, models.MessagePath("c1", "m1"), map[string]any{
		"senderId": "bob",
		"message":  "hi",
		"seenBy":   map[string]any{"bob": "Bob"},
	}))

	messages := []models.Message{
		{ID: "m1", SenderID: "bob", SeenBy: models.SeenBy{"bob": models.NamedMark("Bob")}},
		{ID: "m2", SenderID: "me"},
	}

	reconciler := NewReconciler(tree, "me", "Me")
	n, err := reconciler.MarkRead(ctx, "c1", messages)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = reconciler.MarkRead(ctx, "c1", messages)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Len(t, tree.batches, 1)

	snapshot, err := tree.Get(ctx, models.JoinPath("messages", "c1", "m1", "seenBy"))
	require.NoError(t, err)
	var seen models.SeenBy
	require.NoError(t, snapshot.Decode(&seen))
	require.Equal(t, models.SeenBy{"bob": models.NamedMark("Bob"), "me": models.NamedMark("Me")}, seen)
}

func TestCaptionsPlacedAtFurthestPoint(t *testing.T) {
	messages := []models.Message{
		{ID: "m1", SenderID: "me", CreatedAt: 1, SeenBy: models.SeenBy{"me": models.NamedMark("Me"), "u": models.NamedMark("U")}},
		{ID: "m2", SenderID: "me", CreatedAt: 2, SeenBy: models.SeenBy{"me": models.NamedMark("Me"), "u": models.NamedMark("U"), "v": models.NamedMark("V")}},
		{ID: "m3", SenderID: "me", CreatedAt: 3, SeenBy: models.SeenBy{"me": models.NamedMark("Me"), "u": models.NamedMark("U"), "w": {Legacy: true}}},
		{ID: "m4", SenderID: "u", CreatedAt: 4, SeenBy: models.SeenBy{"u": models.NamedMark("U"), "me": models.NamedMark("Me")}},
	}

	captions := Captions(messages, "me")
	require.Equal(t, map[string][]string{
		"m2": {"V"},
		"m3": {"U"},
	}, captions)
}

func TestMarkNotificationsRead(t *testing.T) {
	tree := realtime.NewMemoryTree()
	ctx := context.Background()
	require.NoError(t, tree.Update(ctx, map[string]any{
		models.NotificationPath("me", "n1"): map[string]any{"type": "FOLLOW", "timestamp": 10, "read": false},
		models.NotificationPath("me", "n2"): map[string]any{"type": "FOLLOW_BACK", "timestamp": 20, "read": true},
		models.NotificationPath("me", "n3"): map[string]any{"timestamp": 30},
	}))

	snapshot, err := tree.Get(ctx, models.NotificationsPath("me"))
	require.NoError(t, err)
	items := DecodeNotifications(snapshot)
	require.Len(t, items, 3)
	require.Equal(t, "n3", items[0].ID)
	require.Equal(t, models.NotificationUnknown, items[0].Type)

	n, err := MarkNotificationsRead(ctx, tree, "me", items)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	snapshot, err = tree.Get(ctx, models.NotificationsPath("me"))
	require.NoError(t, err)
	for _, item := range DecodeNotifications(snapshot) {
		require.True(t, item.Read)
	}
}

func TestBlankNameStillMarksSeen(t *testing.T) {
	tree := &countingTree{MemoryTree: realtime.NewMemoryTree()}
	ctx := context.Background()
	require.NoError(t, tree.MemoryTree.Set(ctx, models.MessagePath("c1", "m1"), map[string]any{
		"senderId":  "bob",
		"createdAt": 1,
	}))

	for round := 0; round < 2; round++ {
		snapshot, err := tree.Get(ctx, models.MessagePath("c1", "m1"))
		require.NoError(t, err)
		var message models.Message
		require.NoError(t, snapshot.Decode(&message))
		message.ID = "m1"

		n, err := NewReconciler(tree, "me", "").MarkRead(ctx, "c1", []models.Message{message})
		require.NoError(t, err)
		require.Equal(t, 1-round, n)
	}
	require.Len(t, tree.batches, 1)

	mark, err := tree.Get(ctx, models.SeenByPath("c1", "m1", "me"))
	require.NoError(t, err)
	require.Equal(t, models.UnknownName, mark.String())
}

func TestMarkReadSkipsDeletedMessages(t *testing.T) {
	tree := &countingTree{MemoryTree: realtime.NewMemoryTree()}
	ctx := context.Background()

	n, err := NewReconciler(tree, "me", "Me").MarkRead(ctx, "c1", []models.Message{
		{ID: "gone", SenderID: "bob", CreatedAt: 1},
	})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, tree.batches)

	snapshot, err := tree.Get(ctx, models.MessagesPath("c1"))
	require.NoError(t, err)
	require.False(t, snapshot.Exists)
}
