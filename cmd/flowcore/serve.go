package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/flowcore/pkg/events"
	"github.com/dukex/flowcore/pkg/log"
	"github.com/dukex/flowcore/pkg/sources/redisstream"
	"github.com/dukex/flowcore/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the engine and its HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL of the event stream, empty to disable",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-stream",
				Usage:   "Redis stream whose entries fire event triggers",
				Value:   "flowcore:events",
				Sources: cli.EnvVars("REDIS_STREAM"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("serve")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing flowcore")

			rt, err := newRuntime(ctx, command, logger)
			if err != nil {
				return err
			}

			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				err := rt.Close(closeCtx)
				if err != nil {
					logger.ErrorContext(closeCtx, "Failed to shut down cleanly", "error", err)
				}
			}()

			err = rt.bus.Handle(events.ExternalEventReceivedEvent, rt.engine.EventHandler())
			if err != nil {
				return err
			}

			err = rt.bus.Subscribe(ctx)
			if err != nil {
				return err
			}

			if url := command.String("redis-url"); url != "" {
				source, err := redisstream.NewSource(ctx, url, rt.engine, logger, redisstream.Options{
					Stream: command.String("redis-stream"),
				})
				if err != nil {
					return err
				}

				source.Start(ctx)

				defer func() {
					_ = source.Stop(context.Background())
				}()
			}

			app := newApp(rt)

			errCh := make(chan error, 1)

			go func() {
				errCh <- app.Listen(":" + strconv.Itoa(int(command.Int("port"))))
			}()

			select {
			case err = <-errCh:
				return err
			case <-ctx.Done():
				logger.InfoContext(ctx, "Shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				err = app.ShutdownWithContext(shutdownCtx)
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}

				return nil
			}
		},
	}
}

func newApp(rt *runtime) *fiber.App {
	handlers := web.NewAPIHandlers(rt.engine, validator.New(validator.WithRequiredStructEnabled()), rt.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowcore")
	})

	handlers.Register(app)

	return app
}
