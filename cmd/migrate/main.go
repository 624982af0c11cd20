package main

import (
	"context"
	"log"
	"os"
	"time"

	"dataportal/adapters/sqlstore"
	"dataportal/internal/migration"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [postgres|sqlite]")
	}

	databaseURL := os.Args[1]
	driver := "postgres"
	if len(os.Args) > 2 {
		driver = os.Args[2]
	}

	store, err := sqlstore.Connect(driver, databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	dialect, err := sqlstore.DialectFor(driver)
	if err != nil {
		log.Fatalf("Unsupported driver: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, store.DB(), dialect); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Database migrated to version %s", runner.Version())
}
