package api

import (
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/receipts"
	"github.com/gofiber/fiber/v2"
)

func listNotifications(c *fiber.Ctx) error {
	snapshot, err := deps.Tree.Get(c.UserContext(), models.NotificationsPath(deps.Me))
	if err != nil {
		return toHttpError(err)
	}
	items := receipts.DecodeNotifications(snapshot)
	if items == nil {
		items = make([]models.AppNotification, 0)
	}
	return c.JSON(items)
}

func readNotifications(c *fiber.Ctx) error {
	snapshot, err := deps.Tree.Get(c.UserContext(), models.NotificationsPath(deps.Me))
	if err != nil {
		return toHttpError(err)
	}
	count, err := receipts.MarkNotificationsRead(c.UserContext(), deps.Tree, deps.Me, receipts.DecodeNotifications(snapshot))
	if err != nil {
		return toHttpError(err)
	}
	return c.JSON(fiber.Map{"count": count})
}
