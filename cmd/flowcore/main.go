// Package main provides the flowcore engine server and workflow tooling.
package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/flowcore/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	err := rootCommand().Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("flowcore").Error("flowcore failed", "error", err)
		os.Exit(1)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "flowcore",
		Usage:                 "Run triggers, queued actions and workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers used when the event bus is kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringSliceFlag{
				Name:    "service",
				Usage:   "Webhook service as name=url, repeatable",
				Sources: cli.EnvVars("SERVICES"),
			},
			&cli.DurationFlag{
				Name:    "dispatch-timeout",
				Usage:   "Timeout of every dispatch to a service",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("DISPATCH_TIMEOUT"),
			},
			&cli.FloatFlag{
				Name:    "rate-limit",
				Usage:   "Maximum dispatches per second, 0 for unlimited",
				Sources: cli.EnvVars("RATE_LIMIT"),
			},
			&cli.StringFlag{
				Name:    "integration-check",
				Usage:   "How validation probes services (dryrun, live, skip)",
				Value:   "dryrun",
				Sources: cli.EnvVars("INTEGRATION_CHECK"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export workflow traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.BoolFlag{
				Name:    "record-workflow-actions",
				Usage:   "Also queue every action a workflow dispatched",
				Sources: cli.EnvVars("RECORD_WORKFLOW_ACTIONS"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.SetupWithWriter(os.Stderr, command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			validateCommand(),
			runCommand(),
		},
	}
}
