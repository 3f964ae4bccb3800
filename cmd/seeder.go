package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/procurement-workflow/internal/request"
	"github.com/frahmantamala/procurement-workflow/internal/request/kv"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

var clearData bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with sample requests",
	Long:  `Seed the configured store with sample purchase requests, one per workflow stage, for development and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		kvStore, db, err := openStore(cfg)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer func() {
			kvStore.Close()
			if db != nil {
				db.Close()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		domain := cfg.Roles.OrganizationDomain
		if clearData {
			for _, r := range request.SampleRequests(time.Now().UTC(), domain) {
				if _, err := kvStore.Del(ctx, kv.Key(r.ID)); err != nil {
					log.Fatalf("failed to clear %s: %v", r.ID, err)
				}
			}
			fmt.Println("Cleared existing sample requests")
		}

		lg := logger.LoggerWrapper()
		service := request.NewService(kv.NewRequestRepository(kvStore, lg), nil, lg)
		result, err := service.SeedSampleData(ctx, domain)
		if err != nil {
			log.Fatalf("failed to seed: %v", err)
		}

		for _, id := range result.Created {
			fmt.Println("Seeded request:", id)
		}
		for _, id := range result.Skipped {
			fmt.Println("Request already exists, skipped:", id)
		}
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing sample requests before seeding")
}
