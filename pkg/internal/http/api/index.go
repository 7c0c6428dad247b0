package api

import (
	"errors"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/channels"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/conversation"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/directory"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/notify"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/stories"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the components the bridge routes act on. Every route
// runs as Me.
type Dependencies struct {
	Me            string
	Tree          realtime.Tree
	Channels      *channels.Service
	Stories       *stories.Service
	Conversations *conversation.Registry
	Gate          *notify.Gate
	Active        *notify.ActiveChannel
}

var deps Dependencies

func MapAPIs(app *fiber.App, baseURL string, d Dependencies) {
	deps = d

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group(baseURL).Name("API")
	{
		channelsApi := api.Group("/channels").Name("Channels API")
		{
			channelsApi.Get("/", listChannels)
			channelsApi.Post("/", createChannel)
			channelsApi.Post("/dm", createDirectChannel)
			channelsApi.Get("/:channel", getChannel)
			channelsApi.Put("/:channel/mute", muteChannel)
			channelsApi.Put("/:channel/hide", hideChannel)

			channelsApi.Get("/:channel/members", listChannelMembers)
			channelsApi.Get("/:channel/members/candidates", listChannelCandidates)
			channelsApi.Post("/:channel/members", addChannelMembers)
			channelsApi.Delete("/:channel/members/me", leaveChannel)
			channelsApi.Put("/:channel/members/:memberId/role", editChannelMemberRole)
			channelsApi.Delete("/:channel/members/:memberId", removeChannelMember)

			channelsApi.Post("/:channel/open", openConversation)
			channelsApi.Delete("/:channel/open", closeConversation)
			channelsApi.Get("/:channel/messages", getConversation)
			channelsApi.Put("/:channel/draft", editDraft)
			channelsApi.Post("/:channel/messages", newMessage)
			channelsApi.Post("/:channel/media", newMediaMessage)
			channelsApi.Put("/:channel/messages/:messageId", editMessage)
			channelsApi.Delete("/:channel/messages/:messageId", deleteMessage)
			channelsApi.Post("/:channel/messages/:messageId/reactions", reactMessage)
		}

		api.Post("/push", receivePush)

		storiesApi := api.Group("/stories").Name("Stories API")
		{
			storiesApi.Get("/", listStories)
			storiesApi.Post("/", publishStory)
			storiesApi.Post("/:author/:story/view", viewStory)
			storiesApi.Get("/:author/:story/viewers", listStoryViewers)
			storiesApi.Delete("/:author/:story", deleteStory)
		}

		api.Get("/notifications", listNotifications)
		api.Put("/notifications/read", readNotifications)
	}
}

// toHttpError maps domain errors onto status codes, anything else is a 500.
func toHttpError(err error) error {
	var fiberErr *fiber.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fiberErr):
		return err
	case errors.Is(err, channels.ErrChannelNotFound),
		errors.Is(err, conversation.ErrMessageAbsent),
		errors.Is(err, conversation.ErrNotOpen),
		errors.Is(err, directory.ErrUserNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, channels.ErrAccessDenied),
		errors.Is(err, channels.ErrNotMember),
		errors.Is(err, conversation.ErrNotOwner),
		errors.Is(err, stories.ErrNotAuthor),
		errors.Is(err, realtime.ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, channels.ErrInvalidName),
		errors.Is(err, channels.ErrDirectToSelf),
		errors.Is(err, channels.ErrPersonalChannel),
		errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrNotEditable),
		errors.Is(err, conversation.ErrInvalidMedia),
		errors.Is(err, stories.ErrInvalidUpload),
		errors.Is(err, realtime.ErrInvalidPath):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrAlreadyOpen):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, conversation.ErrNoStorage),
		errors.Is(err, stories.ErrNoStorage):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
