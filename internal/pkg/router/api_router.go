package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pedidopro/pedidopro/app/controllers"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})

	paymentController := controllers.NewPaymentControllerFromEnv()
	api.Post("/payments/verify", paymentController.HandleVerifyPayment)
	api.Options("/payments/verify", paymentController.HandleVerifyPreflight)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
