package models

import (
	"sort"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

func TestSeenByAcceptsLegacyMarks(t *testing.T) {
	var seen SeenBy
	require.NoError(t, jsoniter.Unmarshal([]byte(`{"u1":"Alice","u2":true,"u3":false}`), &seen))

	require.Equal(t, NamedMark("Alice"), seen["u1"])
	require.True(t, seen["u2"].Legacy)
	require.True(t, seen.Has("u1"))
	require.True(t, seen.Has("u2"))
	require.True(t, seen.Has("u3"))
	require.False(t, seen.Has("u4"))

	viewers := seen.Viewers("u1")
	sort.Strings(viewers)
	require.Equal(t, []string{"u2", "u3"}, viewers)
}

func TestSeenMarkEncoding(t *testing.T) {
	raw, err := jsoniter.Marshal(SeenBy{"u1": NamedMark("Alice"), "u2": {Legacy: true}})
	require.NoError(t, err)
	require.JSONEq(t, `{"u1":"Alice","u2":true}`, string(raw))
}

func TestReplyMetaFallsBackToMediaLabel(t *testing.T) {
	image := MediaTypeImage
	url := "https://cdn/x.jpg"
	reply := NewReplyMeta(Message{ID: "m1", SenderName: "Bob", MediaURL: &url, MediaType: &image})
	require.Equal(t, "Photo", reply.Text)
	require.Equal(t, "m1", reply.MessageID)

	video := MediaTypeVideo
	require.Equal(t, "📹 Video", LastMessageLabel("", &video))
	require.Equal(t, "📷 Photo", LastMessageLabel("", &image))
	require.Equal(t, "caption", LastMessageLabel("caption", &image))
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Alice", DisplayName("Alice"))
	require.Equal(t, UnknownName, DisplayName(""))
	require.Equal(t, UnknownName, DisplayName("  "))
}
