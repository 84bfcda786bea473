// Command taskdeck-migrate runs the database migrations and exits. It is
// intended for deployment pipelines that migrate before rolling the server.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/quillback/taskdeck/pkg/access"
	"github.com/quillback/taskdeck/pkg/config"
	"github.com/quillback/taskdeck/pkg/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	wait := flag.Duration("wait", 0, "How long to wait for the database to become reachable")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.Connect(cfg.Database)
	if err != nil && *wait > 0 {
		// Connect pings, so a database that is still starting fails fast;
		// retry until the wait window runs out.
		deadline := time.Now().Add(*wait)
		for err != nil && time.Now().Before(deadline) {
			time.Sleep(time.Second)
			db, err = postgres.Connect(cfg.Database)
		}
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := access.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations applied")
}
