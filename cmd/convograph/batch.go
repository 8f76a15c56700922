package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/siherrmann/convograph"
	"github.com/spf13/cobra"
)

type batchOptions struct {
	limit         int
	minSimilarity float64
	embedFirst    bool
	schedule      string
}

func newBatchCommand(opts *rootOptions) *cobra.Command {
	bo := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build relationships for conversations not processed yet",
		Long: `Runs one relationship build over conversations that have an embedding but no
relationships yet. With --schedule the build repeats on a cron schedule
("*/15 * * * *", "@hourly", "@every 10m") until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.openForCommand(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			log := opts.logger(cmd)
			ctx := cmd.Context()

			if bo.schedule == "" {
				return bo.run(ctx, cmd, c, log)
			}

			scheduler, err := newBatchScheduler(bo.schedule, func() {
				if err := bo.run(ctx, cmd, c, log); err != nil {
					log.Error("Scheduled batch failed", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				return err
			}

			scheduler.Start()
			log.Info("Batch scheduler started", slog.String("schedule", bo.schedule))

			<-ctx.Done()

			stopCtx := scheduler.Stop()
			select {
			case <-stopCtx.Done():
				log.Info("Batch scheduler stopped")
			case <-time.After(30 * time.Second):
				log.Warn("Batch scheduler stop timed out")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&bo.limit, "limit", 0, "maximum number of conversations per run (0 uses the configured default)")
	cmd.Flags().Float64Var(&bo.minSimilarity, "min-similarity", 0, "minimum cosine similarity of a neighbor (0 uses the configured default)")
	cmd.Flags().BoolVar(&bo.embedFirst, "embed", false, "embed conversations stored without an embedding before building")
	cmd.Flags().StringVar(&bo.schedule, "schedule", "", "cron expression to repeat the batch on")

	return cmd
}

func (bo *batchOptions) run(ctx context.Context, cmd *cobra.Command, c *convograph.Convograph, log *slog.Logger) error {
	if bo.embedFirst {
		embedded, err := c.EmbedPending(ctx, bo.limit)
		if err != nil {
			log.Warn("Embedding pending conversations failed", slog.String("error", err.Error()))
		} else if embedded > 0 {
			log.Info("Embedded pending conversations", slog.Int("count", embedded))
		}
	}

	summary, err := c.BatchBuild(ctx, bo.limit, bo.minSimilarity)
	if summary != nil {
		if writeErr := writeJSON(cmd.OutOrStdout(), summary); writeErr != nil {
			return writeErr
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newBatchScheduler accepts standard five field cron expressions and descriptors.
// A run is skipped while the previous one is still going.
func newBatchScheduler(schedule string, run func()) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := scheduler.AddFunc(schedule, run)
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}
