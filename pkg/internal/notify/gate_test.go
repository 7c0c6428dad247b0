package notify

import (
	"context"
	"errors"
	"testing"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/stretchr/testify/require"
)

func mutes(muted bool, err error) MuteLookup {
	return MuteLookupFunc(func(ctx context.Context, channelId, userId string) (bool, error) {
		return muted, err
	})
}

func TestOwnEchoIsSuppressed(t *testing.T) {
	gate := NewGate(mutes(false, nil))
	decision := gate.Decide(context.Background(), Payload{ChannelID: "c1", SenderID: "me"}, Local{UserID: "me"})
	require.Equal(t, OutcomeSelf, decision.Outcome)
	require.False(t, decision.Show())
}

func TestActiveChannelIsSuppressedRegardlessOfMute(t *testing.T) {
	gate := NewGate(mutes(false, errors.New("offline")))
	decision := gate.Decide(context.Background(), Payload{ChannelID: "c1", SenderID: "bob"}, Local{UserID: "me", ActiveChannelID: "c1"})
	require.Equal(t, OutcomeActiveChannel, decision.Outcome)
}

func TestMutedChannelIsSuppressed(t *testing.T) {
	gate := NewGate(mutes(true, nil))
	decision := gate.Decide(context.Background(), Payload{ChannelID: "c1", SenderID: "bob"}, Local{UserID: "me", ActiveChannelID: "c2"})
	require.Equal(t, OutcomeMuted, decision.Outcome)
}

func TestGroupNotificationFormat(t *testing.T) {
	gate := NewGate(mutes(false, nil))
	decision := gate.Decide(context.Background(), Payload{
		ChannelID:   "c1",
		ChannelName: "Team",
		SenderID:    "bob",
		SenderName:  "Bob",
		Content:     "hello",
	}, Local{UserID: "me"})
	require.True(t, decision.Show())
	require.Equal(t, "Team", decision.Title)
	require.Equal(t, "Bob: hello", decision.Body)
	require.Equal(t, "Team", decision.TargetChannelName)
}

func TestPersonalNotificationFormat(t *testing.T) {
	gate := NewGate(mutes(false, nil))
	decision := gate.Decide(context.Background(), Payload{
		ChannelID:   "me_bob",
		ChannelName: "ignored",
		SenderID:    "bob",
		SenderName:  "Bob",
		Content:     "hello",
		IsPersonal:  true,
	}, Local{UserID: "me"})
	require.True(t, decision.Show())
	require.Equal(t, "Bob", decision.Title)
	require.Equal(t, "hello", decision.Body)
}

func TestMuteLookupFailureFailsOpen(t *testing.T) {
	gate := NewGate(mutes(true, errors.New("network down")))
	decision := gate.Decide(context.Background(), Payload{ChannelID: "c1", SenderID: "bob", SenderName: "Bob"}, Local{UserID: "me"})
	require.True(t, decision.Show())
}

func TestTreeMuteLookup(t *testing.T) {
	tree := realtime.NewMemoryTree()
	ctx := context.Background()
	require.NoError(t, tree.Set(ctx, models.ChannelFieldPath("c1", "mutedBy", "me"), true))

	gate := NewGate(TreeMuteLookup{Tree: tree})
	require.Equal(t, OutcomeMuted, gate.Decide(ctx, Payload{ChannelID: "c1", SenderID: "bob"}, Local{UserID: "me"}).Outcome)
	require.Equal(t, OutcomeShow, gate.Decide(ctx, Payload{ChannelID: "c2", SenderID: "bob"}, Local{UserID: "me"}).Outcome)

	tree.Deny("/channels/c3")
	require.Equal(t, OutcomeShow, gate.Decide(ctx, Payload{ChannelID: "c3", SenderID: "bob"}, Local{UserID: "me"}).Outcome)
}

func TestActiveChannelMarker(t *testing.T) {
	var active ActiveChannel
	active.Enter("c1")
	require.Equal(t, "c1", active.Current())

	active.Enter("c2")
	active.Leave("c1")
	require.Equal(t, "c2", active.Current())

	active.Leave("c2")
	require.Equal(t, Local{UserID: "me"}, active.Local("me"))
}

func TestParsePayload(t *testing.T) {
	payload := Payload{ChannelID: "c1", ChannelName: "Team", SenderID: "bob", SenderName: "Bob", Content: "hi", IsPersonal: true}
	require.Equal(t, payload, ParsePayload(payload.Data()))

	require.False(t, ParsePayload(map[string]string{"isPersonal": "maybe"}).IsPersonal)

	parsed, err := ParsePayloadJSON([]byte(`{"message":{"topic":"group_c1","data":{"channelId":"c1","senderName":"Bob","isPersonal":"false"}}}`))
	require.NoError(t, err)
	require.Equal(t, "c1", parsed.ChannelID)
	require.Equal(t, "Bob", parsed.SenderName)

	parsed, err = ParsePayloadJSON([]byte(`{"channelId":"c2","isPersonal":true}`))
	require.NoError(t, err)
	require.Equal(t, "c2", parsed.ChannelID)
	require.True(t, parsed.IsPersonal)

	_, err = ParsePayloadJSON([]byte(`[1,2]`))
	require.Error(t, err)
}
