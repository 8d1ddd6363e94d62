package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/audit"
	"github.com/strideapp/stride/internal/discipline"
	"github.com/strideapp/stride/internal/metrics"
	"github.com/strideapp/stride/internal/queue"
	"github.com/strideapp/stride/internal/store"
	"github.com/strideapp/stride/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Resolve overdue pending instances and run enforcement evaluations",
	RunE: func(cmd *cobra.Command, args []string) error {
		every, _ := cmd.Flags().GetDuration("every")

		ctx := context.Background()
		pool, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		st := store.New(pool)
		q := queue.New(rdb)
		rec := audit.NewRecorderWithMirror(os.Stdout)
		engine := discipline.New(st, rec, q, cfg.Policy, slog.Default())
		s := sweep.New(st, engine, slog.Default())

		if every > 0 {
			if cfg.MetricsAddr != "" {
				go func() {
					if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
						slog.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
					}
				}()
			}
			fmt.Printf("Sweep daemon running every %s. (Press Ctrl+C to stop)\n", every)
			return s.Run(ctx, every)
		}

		summary, err := s.ResolveMissedActions(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Sweep complete: %d instance(s) marked missed, %d user(s) evaluated, %d failed.\n",
			summary.Marked, summary.Evaluated, summary.Failed)
		return nil
	},
}

func init() {
	sweepCmd.Flags().Duration("every", 0, "Run continuously at this interval instead of once")
}
