package api

import (
	"git.solsynth.dev/hypernet/syncup/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"github.com/gofiber/fiber/v2"
)

func listChannelMembers(c *fiber.Ctx) error {
	members, err := deps.Channels.Members(c.UserContext(), c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(members)
}

func listChannelCandidates(c *fiber.Ctx) error {
	users, err := deps.Channels.Candidates(c.UserContext(), c.Params("channel"))
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(users)
}

func addChannelMembers(c *fiber.Ctx) error {
	var data struct {
		Members []string `json:"members" validate:"required,min=1"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if err := deps.Channels.AddMembers(c.UserContext(), c.Params("channel"), data.Members); err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func editChannelMemberRole(c *fiber.Ctx) error {
	var data struct {
		Role string `json:"role" validate:"required,oneof=admin member"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	channelId, memberId := c.Params("channel"), c.Params("memberId")
	var err error
	if data.Role == models.RoleAdmin {
		err = deps.Channels.Promote(c.UserContext(), channelId, memberId)
	} else {
		err = deps.Channels.Demote(c.UserContext(), channelId, memberId)
	}
	if err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func removeChannelMember(c *fiber.Ctx) error {
	if err := deps.Channels.Kick(c.UserContext(), c.Params("channel"), c.Params("memberId")); err != nil {
		return toHttpError(err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func leaveChannel(c *fiber.Ctx) error {
	channelId := c.Params("channel")
	if err := deps.Channels.Leave(c.UserContext(), channelId); err != nil {
		return toHttpError(err)
	}
	deps.Conversations.Close(channelId)
	deps.Active.Leave(channelId)
	return c.SendStatus(fiber.StatusOK)
}
