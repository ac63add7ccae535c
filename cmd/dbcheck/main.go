package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"kb-research-report/internal/config"
	"kb-research-report/internal/database"
)

// dbcheck verifies MongoDB connectivity and prints basic collection stats.
// Usage: go run cmd/dbcheck/main.go [userID]
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := database.NewMongoDBClient(cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		log.Fatalf("Ping failed: %v", err)
	}
	fmt.Println("MongoDB connection OK")

	total, err := client.CountReports()
	if err != nil {
		log.Fatalf("Failed to count reports: %v", err)
	}
	fmt.Printf("Report records: %d\n", total)

	if len(os.Args) > 1 {
		userID := os.Args[1]

		records, err := client.ListReports(userID, 10)
		if err != nil {
			log.Fatalf("Failed to list reports for user %s: %v", userID, err)
		}
		fmt.Printf("Latest reports for user %s:\n", userID)
		for _, r := range records {
			fmt.Printf("  %s  %-8s  %s\n", r.CreatedOn.Format("2006-01-02 15:04"), r.Status, r.Task)
		}

		remaining, err := client.GetRemainingUnits(userID)
		if err != nil {
			log.Fatalf("Failed to fetch quota for user %s: %v", userID, err)
		}
		fmt.Printf("Remaining quota units: %.2f\n", remaining)
	}
}
