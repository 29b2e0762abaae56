package server

import (
	"context"
	"errors"
	"time"

	"github.com/bdmouza/mouzadrive/internal/controllers"
	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"
)

type HTTPServerDependencies struct {
	DriveController   *controllers.DriveController
	PaymentController *controllers.PaymentController
	PackageController *controllers.PackageController
}

func NewHTTPServer(ctx context.Context, deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName:      "mouzadrive",
		ErrorHandler: errorHandler,
	})

	router.Use(cors.New())
	router.Use(logger.New())

	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "mouzadrive",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")

	drive := api.Group("/drive")
	drive.Get("/explore/*", deps.DriveController.Explore)
	drive.Get("/search", deps.DriveController.Search)
	drive.Post("/search/batch", deps.DriveController.SearchBatch)
	drive.Get("/user-files", deps.DriveController.UserFiles)
	drive.Get("/user-files/all", deps.DriveController.UserFilesAll)
	drive.Get("/preview", deps.DriveController.Preview)
	drive.Get("/convert", deps.DriveController.Convert)

	payment := api.Group("/payment")
	payment.Post("/initialize", deps.PaymentController.Initialize)
	payment.Get("/verify/:id", deps.PaymentController.Verify)
	payment.Get("/status/:id", deps.PaymentController.Status)
	payment.Get("/purchases", deps.PaymentController.Purchases)
	payment.Get("/eps/callback", deps.PaymentController.Callback)
	payment.Post("/eps/callback", deps.PaymentController.Callback)

	packages := api.Group("/packages")
	packages.Get("/", deps.PackageController.List)
	packages.Post("/purchase", deps.PackageController.Purchase)

	me := packages.Group("/me")
	me.Get("/subscriptions", deps.PackageController.Subscriptions)
	me.Get("/daily-status", deps.PackageController.DailyStatus)
	me.Get("/usage-history", deps.PackageController.UsageHistory)
	me.Post("/validate-order", deps.PackageController.ValidateOrder)
	me.Post("/free-order", deps.PackageController.FreeOrder)
	me.Post("/cleanup-pending", deps.PackageController.CleanupPending)

	packages.Get("/:id", deps.PackageController.Get)

	return router
}

// errorHandler translates domain errors into HTTP responses so controllers
// can return manager errors untouched.
func errorHandler(ctx fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	status := fiber.StatusInternalServerError

	switch {
	case domain.IsNotFound(err):
		status = fiber.StatusNotFound
	case domain.IsValidation(err), domain.IsUnsupportedFormat(err):
		status = fiber.StatusBadRequest
	case domain.IsTimeout(err):
		status = fiber.StatusGatewayTimeout
	case domain.IsUpstream(err):
		status = fiber.StatusBadGateway
	case errors.Is(err, domain.ErrConfigurationMissing):
		status = fiber.StatusServiceUnavailable
	}

	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.Path()).Msg("Unhandled request error")
	}

	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
