package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/audit"
	"github.com/strideapp/stride/internal/discipline"
	"github.com/strideapp/stride/internal/queue"
	"github.com/strideapp/stride/internal/store"
)

var completeCmd = &cobra.Command{
	Use:   "complete <instance-id>",
	Short: "Mark a pending action instance completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instanceID := args[0]

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
		userID, err := st.CompleteInstance(ctx, instanceID)
		if err != nil {
			slog.Error("complete instance failed", "instance_id", instanceID, "error", err)
			return fmt.Errorf("operation failed")
		}

		rec := audit.NewRecorderWithMirror(os.Stdout)
		engine := discipline.New(st, rec, queue.New(rdb), cfg.Policy, slog.Default())
		if err := engine.HandleCompletedAction(ctx, userID, userID); err != nil {
			slog.Error("completion evaluation failed", "user_id", userID, "error", err)
			return fmt.Errorf("operation failed")
		}

		fmt.Printf("Instance %s completed.\n", instanceID)
		return nil
	},
}
