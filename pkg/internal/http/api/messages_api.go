package api

import (
	"git.solsynth.dev/hypernet/syncup/pkg/internal/conversation"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/http/exts"
	"github.com/gofiber/fiber/v2"
)

func openConversation(c *fiber.Ctx) error {
	channelId := c.Params("channel")
	conv, err := deps.Conversations.Open(channelId)
	if err != nil {
		return toHttpError(err)
	}
	deps.Active.Enter(channelId)
	return c.JSON(conv.View())
}

func closeConversation(c *fiber.Ctx) error {
	channelId := c.Params("channel")
	deps.Conversations.Close(channelId)
	deps.Active.Leave(channelId)
	return c.SendStatus(fiber.StatusOK)
}

func getConversation(c *fiber.Ctx) error {
	conv, err := deps.Conversations.Get(c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(conv.View())
}

func editDraft(c *fiber.Ctx) error {
	var data struct {
		Text    string  `json:"text" validate:"max=4096"`
		ReplyTo *string `json:"reply_to"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	conv, err := deps.Conversations.Get(c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	if data.ReplyTo != nil {
		if err := conv.SetReplyingTo(*data.ReplyTo); err != nil {
			return toHttpError(err)
		}
	}
	conv.SetDraft(c.UserContext(), data.Text)
	return c.JSON(conv.View())
}

func newMessage(c *fiber.Ctx) error {
	var data struct {
		Text    *string `json:"text" validate:"omitempty,max=4096"`
		ReplyTo *string `json:"reply_to"`
	}

	if len(c.Body()) > 0 {
		if err := exts.BindAndValidate(c, &data); err != nil {
			return err
		}
	}

	conv, err := deps.Conversations.Get(c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	if data.ReplyTo != nil {
		if err := conv.SetReplyingTo(*data.ReplyTo); err != nil {
			return toHttpError(err)
		}
	}
	// Without a text the current draft is sent.
	if data.Text != nil {
		conv.SetDraft(c.UserContext(), *data.Text)
	}

	message, err := conv.Send(c.UserContext())
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(message)
}

func newMediaMessage(c *fiber.Ctx) error {
	var data conversation.MediaUpload

	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	conv, err := deps.Conversations.Get(c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	message, err := conv.SendMedia(c.UserContext(), data)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(message)
}

func editMessage(c *fiber.Ctx) error {
	var data struct {
		Text string `json:"text" validate:"required,max=4096"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	conv, err := deps.Conversations.Get(c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	if err := conv.StartEditing(c.Params("messageId")); err != nil {
		return toHttpError(err)
	}
	conv.SetDraft(c.UserContext(), data.Text)

	message, err := conv.Send(c.UserContext())
	if err != nil {
		conv.StopEditing()
		return toHttpError(err)
	}
	return c.JSON(message)
}

func deleteMessage(c *fiber.Ctx) error {
	conv, err := deps.Conversations.Get(c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	if err := conv.Unsend(c.UserContext(), c.Params("messageId")); err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func reactMessage(c *fiber.Ctx) error {
	var data struct {
		Emoji string `json:"emoji" validate:"max=32"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	conv, err := deps.Conversations.Get(c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	reaction, err := conv.ToggleReaction(c.UserContext(), c.Params("messageId"), data.Emoji)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"reaction": reaction})
}
