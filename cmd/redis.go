package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"stemset/cache"
	"stemset/config"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Test the Redis connection",
	Long:  `Connect to Redis with the current configuration and run a basic read/write check.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Redis target: %s:%s, DB %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		fmt.Println("Redis connected.")

		if err := cache.TestRedis(); err != nil {
			log.Fatalf("Redis read/write check failed: %v", err)
		}
		fmt.Println("Redis read/write check passed.")

		if err := cache.CloseRedis(); err != nil {
			log.Printf("error closing Redis connection: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
