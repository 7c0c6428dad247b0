package api

import (
	"git.solsynth.dev/hypernet/syncup/pkg/internal/notify"
	"github.com/gofiber/fiber/v2"
)

// receivePush runs an inbound push message through the suppression gate
// and reports whether the device should show it.
func receivePush(c *fiber.Ctx) error {
	payload, err := notify.ParsePayloadJSON(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	decision := deps.Gate.Decide(c.UserContext(), payload, deps.Active.Local(deps.Me))
	return c.JSON(fiber.Map{
		"show":    decision.Show(),
		"outcome": decision.Outcome,
		"title":   decision.Title,
		"body":    decision.Body,
		"target": fiber.Map{
			"channel_id":   decision.TargetChannelID,
			"channel_name": decision.TargetChannelName,
		},
	})
}
