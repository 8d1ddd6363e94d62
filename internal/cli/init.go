package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/db"
	"github.com/strideapp/stride/internal/queue"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Run database migrations and create the event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			return err
		}
		fmt.Println("Database migrated.")

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		if err := queue.New(rdb).EnsureStream(ctx); err != nil {
			return err
		}
		fmt.Println("Event stream ready.")
		return nil
	},
}
