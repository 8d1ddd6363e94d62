package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/queue"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending events in the delivery stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		depth, err := queue.New(rdb).Status(context.Background())
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}

		fmt.Printf("Event stream:\n")
		fmt.Printf("  discipline_events: %d pending\n", depth)
		return nil
	},
}
