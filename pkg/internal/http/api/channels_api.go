package api

import (
	"git.solsynth.dev/hypernet/syncup/pkg/internal/http/exts"
	"github.com/gofiber/fiber/v2"
)

func listChannels(c *fiber.Ctx) error {
	feed, err := deps.Channels.Feed(c.UserContext())
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(feed)
}

func getChannel(c *fiber.Ctx) error {
	channel, err := deps.Channels.GetChannel(c.UserContext(), c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(channel)
}

func createChannel(c *fiber.Ctx) error {
	var data struct {
		Name    string   `json:"name" validate:"required,max=256"`
		Members []string `json:"members"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	channel, err := deps.Channels.CreateGroup(c.UserContext(), data.Name, data.Members...)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(channel)
}

func createDirectChannel(c *fiber.Ctx) error {
	var data struct {
		RelatedUser string `json:"related_user" validate:"required"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	channel, err := deps.Channels.StartDirect(c.UserContext(), data.RelatedUser)
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(channel)
}

func muteChannel(c *fiber.Ctx) error {
	var data struct {
		Muted *bool `json:"muted"`
	}

	if len(c.Body()) > 0 {
		if err := exts.BindAndValidate(c, &data); err != nil {
			return err
		}
	}

	channelId := c.Params("channel")
	if data.Muted == nil {
		muted, err := deps.Channels.ToggleMute(c.UserContext(), channelId)
		if err != nil {
			return toHttpError(err)
		}
		return c.JSON(fiber.Map{"muted": muted})
	}
	if err := deps.Channels.SetMuted(c.UserContext(), channelId, *data.Muted); err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"muted": *data.Muted})
}

func hideChannel(c *fiber.Ctx) error {
	if err := deps.Channels.Hide(c.UserContext(), c.Params("channel")); err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}
