package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/strideapp/stride/internal/config"
)

var (
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "stride",
		Short: "Stride: discipline scoring and enforcement for behavioral commitments",
		Long: `Stride tracks completion and miss events for user commitments,
maintains a rolling discipline score and reliability classification,
and escalates enforcement when discipline degrades.

Typical deployment runs two long-lived processes:

  stride sweep --every 1m    detect and resolve missed actions
  stride deliver             deliver signed webhook notifications`,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(deliverCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(webhookCmd)
	rootCmd.AddCommand(statusCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w\nSet STRIDE_DATABASE_URL environment variable", err)
	}
	return pool, nil
}

func connectRedis() (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w\nSet STRIDE_REDIS_URL environment variable", err)
	}
	return redis.NewClient(opts), nil
}
