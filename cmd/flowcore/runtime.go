package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/flowcore/pkg/cmd"
	"github.com/dukex/flowcore/pkg/engine"
	"github.com/dukex/flowcore/pkg/eventbus"
	"github.com/dukex/flowcore/pkg/otelhelper"
	"github.com/dukex/flowcore/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// runtime holds the engine and everything it was wired with.
type runtime struct {
	logger *slog.Logger
	bus    eventbus.EventBus
	engine *engine.Engine
	record bool

	shutdownTracer func(context.Context) error
}

// newRuntime builds the engine from the root flags.
func newRuntime(ctx context.Context, command *cli.Command, logger *slog.Logger) (*runtime, error) {
	mode, err := workflow.ParseIntegrationMode(command.String("integration-check"))
	if err != nil {
		return nil, err
	}

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{logger: logger, bus: bus, record: command.Bool("record-workflow-actions")}

	dispatcher, _, err := cmd.NewDispatcher(cmd.DispatcherConfig{
		DefaultService: engine.DefaultService,
		Services:       command.StringSlice("service"),
		Timeout:        command.Duration("dispatch-timeout"),
		RateLimit:      command.Float("rate-limit"),
	}, bus, logger)
	if err != nil {
		_ = bus.Close()

		return nil, err
	}

	var tracer trace.Tracer

	if command.Bool("otel-enabled") {
		tracer, rt.shutdownTracer, err = otelhelper.NewTracer(ctx, "flowcore")
		if err != nil {
			_ = bus.Close()

			return nil, err
		}
	}

	rt.engine = engine.New(dispatcher, bus, logger, engine.Config{
		DispatchTimeout:       command.Duration("dispatch-timeout"),
		Integration:           mode,
		RecordWorkflowActions: rt.record,
		Tracer:                tracer,
	})

	return rt, nil
}

// Close drains the engine before the bus and the tracer go away.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error

	err := rt.engine.Close(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	err = rt.bus.Close()
	if err != nil {
		errs = append(errs, err)
	}

	if rt.shutdownTracer != nil {
		err = rt.shutdownTracer(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
