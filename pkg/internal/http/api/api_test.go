package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/channels"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/conversation"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/directory"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/notify"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/stories"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *realtime.MemoryTree, Dependencies) {
	tree := realtime.NewMemoryTree()
	users := directory.New(tree, directory.NewStore("", "", 0), time.Minute)
	d := Dependencies{
		Me:       "me",
		Tree:     tree,
		Channels: channels.NewService(tree, users, "me"),
		Stories:  stories.NewService(tree, users, "me"),
		Conversations: conversation.NewRegistry(func(channelId string) *conversation.Conversation {
			return conversation.New(tree, channelId, "me", "Me")
		}),
		Gate:   notify.NewGate(notify.TreeMuteLookup{Tree: tree}),
		Active: new(notify.ActiveChannel),
	}
	app := fiber.New()
	MapAPIs(app, "/api", d)
	t.Cleanup(d.Conversations.CloseAll)
	return app, tree, d
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if len(body) > 0 {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = jsoniter.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestChannelRoutes(t *testing.T) {
	app, tree, _ := newTestApp(t)

	code, _ := call(t, app, http.MethodPost, "/api/channels", `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, created := call(t, app, http.MethodPost, "/api/channels", `{"name":"Friends","members":["amy"]}`)
	require.Equal(t, http.StatusOK, code)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	code, muted := call(t, app, http.MethodPut, "/api/channels/"+id+"/mute", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, muted["muted"])

	code, muted = call(t, app, http.MethodPut, "/api/channels/"+id+"/mute", `{"muted":false}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, muted["muted"])

	code, _ = call(t, app, http.MethodGet, "/api/channels/missing", "")
	require.Equal(t, http.StatusNotFound, code)

	code, direct := call(t, app, http.MethodPost, "/api/channels/dm", `{"related_user":"bob"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "me_bob", direct["id"])

	code, _ = call(t, app, http.MethodPut, "/api/channels/"+id+"/members/amy/role", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, code)
	channel, err := tree.Get(context.Background(), models.ChannelFieldPath(id, "members", "amy"))
	require.NoError(t, err)
	require.Equal(t, "admin", channel.String())

	code, _ = call(t, app, http.MethodDelete, "/api/channels/"+id+"/members/me", "")
	require.Equal(t, http.StatusForbidden, code)
}

func TestConversationRoutes(t *testing.T) {
	app, tree, d := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, tree.Set(ctx, models.ChannelPath("c1"), map[string]any{
		"name":    "General",
		"members": map[string]any{"me": "owner"},
	}))

	code, _ := call(t, app, http.MethodGet, "/api/channels/c1/messages", "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, app, http.MethodPost, "/api/channels/c1/open", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "c1", d.Active.Current())

	code, _ = call(t, app, http.MethodPost, "/api/channels/c1/messages", `{"text":"   "}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, sent := call(t, app, http.MethodPost, "/api/channels/c1/messages", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, code)
	messageId := sent["id"].(string)

	code, reacted := call(t, app, http.MethodPost, "/api/channels/c1/messages/"+messageId+"/reactions", `{"emoji":"👍"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "👍", reacted["reaction"])

	snapshot, err := tree.Get(ctx, models.ChannelFieldPath("c1", "lastMessage"))
	require.NoError(t, err)
	require.Equal(t, "hello", snapshot.String())

	require.Eventually(t, func() bool {
		_, view := call(t, app, http.MethodGet, "/api/channels/c1/messages", "")
		items, _ := view["items"].([]any)
		return len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, _ = call(t, app, http.MethodPut, "/api/channels/c1/messages/"+messageId, `{"text":"hello again"}`)
	require.Equal(t, http.StatusOK, code)
	snapshot, err = tree.Get(ctx, models.MessagePath("c1", messageId)+"/isEdited")
	require.NoError(t, err)
	require.Equal(t, true, snapshot.Value)

	tree.Deny(models.MessagePath("c1", messageId))
	code, _ = call(t, app, http.MethodPut, "/api/channels/c1/messages/"+messageId, `{"text":"not saved"}`)
	require.Equal(t, http.StatusForbidden, code)
	_, view := call(t, app, http.MethodGet, "/api/channels/c1/messages", "")
	require.Equal(t, "not saved", view["draft"])
	require.Nil(t, view["editing"])
	tree.Allow(models.MessagePath("c1", messageId))

	code, _ = call(t, app, http.MethodDelete, "/api/channels/c1/messages/"+messageId, "")
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, app, http.MethodDelete, "/api/channels/c1/open", "")
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, d.Active.Current())
}

func TestPushRoute(t *testing.T) {
	app, tree, d := newTestApp(t)
	require.NoError(t, tree.Set(context.Background(), models.ChannelFieldPath("muted", "mutedBy", "me"), true))

	body := func(channelId, sender string) string {
		return `{"message":{"data":{"channelId":"` + channelId + `","channelName":"General","senderId":"` + sender + `","senderName":"Amy","messageContent":"hi","isPersonal":"false"}}}`
	}

	code, decision := call(t, app, http.MethodPost, "/api/push", body("c1", "amy"))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, decision["show"])
	require.Equal(t, "General", decision["title"])
	require.Equal(t, "Amy: hi", decision["body"])

	_, decision = call(t, app, http.MethodPost, "/api/push", body("c1", "me"))
	require.Equal(t, "self", decision["outcome"])

	_, decision = call(t, app, http.MethodPost, "/api/push", body("muted", "amy"))
	require.Equal(t, "muted", decision["outcome"])

	d.Active.Enter("c1")
	_, decision = call(t, app, http.MethodPost, "/api/push", body("c1", "amy"))
	require.Equal(t, "active_channel", decision["outcome"])

	code, _ = call(t, app, http.MethodPost, "/api/push", "not json")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestStoriesRoutes(t *testing.T) {
	app, tree, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, tree.Set(ctx, models.UserPath("amy"), map[string]any{"name": "Amy"}))
	require.NoError(t, tree.Set(ctx, models.FollowingPath("me"), map[string]any{"amy": true}))
	require.NoError(t, tree.Set(ctx, models.StoryPath("amy", "s1"), map[string]any{
		"mediaUrl":  "https://cdn.test/syncup_media/image_1.jpg",
		"timestamp": time.Now().UnixMilli(),
	}))

	code, marked := call(t, app, http.MethodPost, "/api/stories/amy/s1/view", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, marked["marked"])

	code, marked = call(t, app, http.MethodPost, "/api/stories/amy/s1/view", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, marked["marked"])

	code, _ = call(t, app, http.MethodDelete, "/api/stories/amy/s1", "")
	require.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, app, http.MethodGet, "/api/stories/amy/missing/viewers", "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, app, http.MethodPost, "/api/stories", `{"type":"image","data":"AQID"}`)
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestNotificationRoutes(t *testing.T) {
	app, tree, _ := newTestApp(t)
	require.NoError(t, tree.Set(context.Background(), models.NotificationsPath("me"), map[string]any{
		"n1": map[string]any{"type": "FOLLOW", "timestamp": 1, "read": false},
		"n2": map[string]any{"type": "LIKE", "timestamp": 2, "read": true},
	}))

	code, out := call(t, app, http.MethodPut, "/api/notifications/read", "")
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["count"])
}
