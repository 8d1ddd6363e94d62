package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/store"
	"github.com/strideapp/stride/internal/stride"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage webhook subscriptions",
}

var webhookAddCmd = &cobra.Command{
	Use:   "add <url> <secret>",
	Short: "Register a webhook delivery target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		pool, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		sub := stride.WebhookSubscription{
			ID:     uuid.New().String(),
			URL:    args[0],
			Secret: args[1],
		}
		if err := store.New(pool).AddSubscription(ctx, sub); err != nil {
			return err
		}
		fmt.Printf("Subscription %s registered for %s\n", sub.ID, sub.URL)
		return nil
	},
}

var webhookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhook subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		pool, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		subs, err := store.New(pool).ListSubscriptions(ctx)
		if err != nil {
			return err
		}

		if len(subs) == 0 {
			fmt.Println("No subscriptions.")
			return nil
		}
		for _, sub := range subs {
			fmt.Printf("  %s  %s\n", sub.ID, sub.URL)
		}
		return nil
	},
}

func init() {
	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
}
