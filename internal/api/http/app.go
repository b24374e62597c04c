package httpapi

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const accessLogFormat = "${time} ${locals:requestid} ${status} - ${method} ${path} ${latency}\n"

// NewApp builds the Fiber app with middleware and every route registered.
// Access logs go to accessLog, or stdout when nil.
func NewApp(deps Deps, accessLog io.Writer) *fiber.App {
	if accessLog == nil {
		accessLog = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:               "weather-now",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New(fiberlogger.Config{Format: accessLogFormat, Output: accessLog}))
	app.Use(recover.New())
	if deps.BaseContext != nil {
		app.Use(baseContext(deps.BaseContext))
	}

	RegisterRoutes(app, deps)
	return app
}

func baseContext(parent context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(parent)
		return c.Next()
	}
}

// ErrorHandler renders every handler error as a terse JSON body. Only
// messages from *fiber.Error reach the client; anything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
