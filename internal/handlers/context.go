package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// academyIDFromCtx reads the tenant id the auth middleware resolved from
// the token. Handlers never accept an academy id from the request body.
func academyIDFromCtx(c *fiber.Ctx) (int64, error) {
	academyID, ok := c.Locals("academy_id").(int64)
	if !ok || academyID <= 0 {
		return 0, fiber.ErrUnauthorized
	}
	return academyID, nil
}

func actorIDFromCtx(c *fiber.Ctx) (int64, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fiber.ErrUnauthorized
	}
	return userID, nil
}

func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.ErrBadRequest
	}
	return id, nil
}
