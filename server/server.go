package server

import (
	"context"
	"strings"
	"time"

	"feedgrid/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const DefaultNamespace = "af/v1"

type FeedService interface {
	Get(ctx context.Context, req models.FeedRequest) models.Envelope
}

type ServerConfig struct {

	// Route prefix for the feed endpoint, e.g. "af/v1"
	APINamespace string

	// Origins allowed to call the API from a browser
	AllowOrigins []string

	// Runs feed requests
	Feeds FeedService
}

// Returns a fiber.App instance serving the xml-feed endpoint
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	origins := "*"
	if len(config.AllowOrigins) > 0 {
		origins = strings.Join(config.AllowOrigins, ",")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,HEAD,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get(FeedPath(config.APINamespace), func(c *fiber.Ctx) error {
		req := models.FeedRequest{
			FeedID:     c.Query("feed"),
			DateFormat: c.Query("dateFormat"),
			ImageSize:  c.Query("imageSize"),
		}

		env := config.Feeds.Get(c.UserContext(), req)
		return c.Status(env.Status).JSON(env.Body())
	})

	return app
}

// FeedPath returns the route of the feed endpoint under namespace
func FeedPath(namespace string) string {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return "/" + namespace + "/xml-feed"
}
