package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bdmouza/mouzadrive/internal/server"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := LoadConfig()
	if err != nil {
		return err
	}

	deps, err := BuildAppDependencies(ctx, config)
	if err != nil {
		return err
	}
	defer deps.Close()

	app := server.NewHTTPServer(ctx, server.HTTPServerDependencies{
		DriveController:   deps.DriveController,
		PaymentController: deps.PaymentController,
		PackageController: deps.PackageController,
	})

	log.Info().Str("address", config.HTTPAddress).Msg("Starting HTTP server")

	if err := app.Listen(config.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}
