package server

import (
	"bytes"
	"encoding/json"

	"vahan/internal/core/gateway"
	"vahan/internal/health"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Dependencies struct {
	Lookup gateway.LookupRunner
	Checks map[string]health.Check
}

// NewApp builds the fiber app with the gateway's JSON encoding and error
// rendering.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Vahan Lookup Gateway",
		DisableStartupMessage: true,
		ErrorHandler:          gateway.ErrorHandler,
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	app.Use(recover.New())
	return app
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Checks)
	app.Get("/v1/health", healthHandler.HandleHealth)

	lookupHandler := gateway.NewHandler(d.Lookup)
	app.Get("/", lookupHandler.HandleHome)
	app.Get("/lookup", lookupHandler.HandleLookup)

	return healthHandler
}
