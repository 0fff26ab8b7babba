// Package main provides the periodic caller that drives the scheduler
// endpoints. The engine itself has no long-lived loop; this binary is the
// external clock that triggers bounded batch runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/reachflow/reachflow/pkg/log"
)

func main() {
	logger := log.WithModule("ticker")

	command := &cli.Command{
		Name:  "reachflow-ticker",
		Usage: "Periodically trigger the scheduler endpoints of a reachflow API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "api-url",
				Usage:    "Base URL of the reachflow API",
				Required: true,
				Sources:  cli.EnvVars("API_URL"),
			},
			&cli.StringFlag{
				Name:     "scheduler-token",
				Usage:    "Bearer token for the scheduler endpoints",
				Required: true,
				Sources:  cli.EnvVars("SCHEDULER_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for scheduler runs",
				Value:   "@every 1m",
				Sources: cli.EnvVars("TICKER_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Batch size passed to the scheduler endpoints",
				Value:   0,
				Sources: cli.EnvVars("TICKER_BATCH_SIZE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			ticker := NewTicker(
				logger,
				command.String("api-url"),
				command.String("scheduler-token"),
				command.Int("batch-size"),
			)

			runner := cron.New()

			_, err := runner.AddFunc(command.String("schedule"), func() {
				ticker.Tick(ctx)
			})
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Ticker started",
				"api_url", command.String("api-url"),
				"schedule", command.String("schedule"))

			runner.Start()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logger.InfoContext(ctx, "Ticker stopping")

			<-runner.Stop().Done()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
