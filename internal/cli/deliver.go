package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/notify"
	"github.com/strideapp/stride/internal/queue"
	"github.com/strideapp/stride/internal/store"
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Run the webhook delivery worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		consumer, _ := cmd.Flags().GetString("consumer")

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

		dispatcher := notify.NewDispatcher(cfg.Policy.WebhookTimeout, slog.Default())
		worker := notify.NewWorker(queue.New(rdb), store.New(pool), dispatcher, slog.Default())

		fmt.Println("Delivery worker running. Consuming events from Redis...")
		return worker.Run(ctx, consumer)
	},
}

func init() {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	deliverCmd.Flags().String("consumer", hostname, "Consumer name within the delivery group")
}
