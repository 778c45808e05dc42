package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"automl/internal/config"
	"automl/internal/migration"
)

// migrate creates or upgrades the tracking schema without running a search.
//
//	migrate                  uses TRACKING_DRIVER / TRACKING_DSN
//	migrate <driver> <dsn>   targets an explicit database
func main() {
	_ = godotenv.Load()

	driver, dsn := "", ""
	switch len(os.Args) {
	case 1:
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		driver, dsn = cfg.Tracking.Driver, cfg.Tracking.DSN
	case 3:
		driver, dsn = os.Args[1], os.Args[2]
	default:
		log.Fatal("Usage: migrate [<driver> <dsn>]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	log.Printf("Applying schema %s to %s database", runner.Version(), driver)
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migration complete")
}
