package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pedidopro/pedidopro/internal/pkg/cache"
	"github.com/pedidopro/pedidopro/internal/pkg/database"
	"github.com/pedidopro/pedidopro/internal/pkg/env"
	"github.com/pedidopro/pedidopro/internal/pkg/ratelimit"
	"github.com/pedidopro/pedidopro/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	ratelimit.Setup()

	app := fiber.New(fiber.Config{
		AppName: "pedidopro",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
