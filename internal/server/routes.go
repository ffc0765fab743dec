package server

import (
	"bytes"
	"encoding/json"

	"breederchat/internal/core/chat"
	"breederchat/internal/core/scrape"
	"breederchat/internal/health"
	"breederchat/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Dependencies struct {
	Scrape  *scrape.Service
	Chat    *chat.Service
	Metrics *metrics.Metrics
	// Checks are the health probes; nil entries are skipped.
	Checks map[string]health.CheckFunc
	// RateLimit is requests per minute per IP on the API group. Zero disables it.
	RateLimit int
}

// NewApp builds the fiber app with the shared middleware.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Breederchat",
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
	app.Use(cors.New())
	return app
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Checks)
	app.Get("/v1/health", health.Limiter(300), healthHandler.HandleHealth)

	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	api := app.Group("/v1")
	if d.RateLimit > 0 {
		api.Use(health.Limiter(d.RateLimit))
	}

	scrapeHandler := scrape.NewHandler(d.Scrape)
	api.Get("/scrape", scrapeHandler.HandleGetScrape)
	api.Post("/scrape", scrapeHandler.HandlePostScrape)
	api.Get("/sessions/:id", scrapeHandler.HandleGetSession)

	if d.Chat != nil {
		chatHandler := chat.NewHandler(d.Chat)
		api.Post("/chat", chatHandler.HandleChat)
	}

	return healthHandler
}
