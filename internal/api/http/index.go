package httpapi

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed web/index.html
var indexHTML []byte

func handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
	return c.Status(fiber.StatusOK).Send(indexHTML)
}
