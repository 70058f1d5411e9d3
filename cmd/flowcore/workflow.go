package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dukex/flowcore/pkg/log"
	"github.com/dukex/flowcore/pkg/models"
	"github.com/dukex/flowcore/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var errFileRequired = errors.New("a workflow file is required")

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow or template file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("validate")

			wf, rt, err := loadWorkflow(ctx, command)
			if err != nil {
				return err
			}

			defer closeRuntime(rt)

			result := rt.engine.Validate(ctx, wf)

			err = printJSON(result)
			if err != nil {
				return err
			}

			if !result.IsValid {
				logger.WarnContext(ctx, "Workflow is not valid", "errors", len(result.Errors))

				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow or template file once",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Usage: "JSON object passed as the execution input",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User the workflow runs for",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			var input map[string]any

			if raw := command.String("input"); raw != "" {
				err := json.Unmarshal([]byte(raw), &input)
				if err != nil {
					return fmt.Errorf("invalid --input: %w", err)
				}
			}

			wf, rt, err := loadWorkflow(ctx, command)
			if err != nil {
				return err
			}

			defer closeRuntime(rt)

			execution, err := rt.engine.Run(ctx, wf, models.ExecutionContext{
				Input:  input,
				UserID: command.String("user"),
			})
			if execution != nil {
				printErr := printJSON(execution)
				if printErr != nil {
					return printErr
				}
			}

			return err
		},
	}
}

func loadWorkflow(ctx context.Context, command *cli.Command) (*models.Workflow, *runtime, error) {
	path := command.Args().First()
	if path == "" {
		return nil, nil, errFileRequired
	}

	doc, err := workflow.Load(path)
	if err != nil {
		return nil, nil, err
	}

	rt, err := newRuntime(ctx, command, log.WithModule("flowcore"))
	if err != nil {
		return nil, nil, err
	}

	return doc.Build(rt.engine.Builder()), rt, nil
}

func closeRuntime(rt *runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := rt.Close(ctx)
	if err != nil {
		rt.logger.ErrorContext(ctx, "Failed to shut down cleanly", "error", err)
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
