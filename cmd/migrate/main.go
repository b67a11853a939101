package main

import (
	"flag"
	"fmt"
	"log"

	"cortex/workspace/internal/config"
	"cortex/workspace/internal/db"
)

func main() {
	statusOnly := flag.Bool("status", false, "list migrations without applying them")
	flag.Parse()

	cfg := config.Load()
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	source := db.MigrationSource(cfg.MigrationsDir)
	if !*statusOnly {
		if err := db.RunMigrations(database, source); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
	}

	statuses, err := db.MigrationStatus(database, source)
	if err != nil {
		log.Fatalf("read migration status: %v", err)
	}
	for _, m := range statuses {
		if m.Applied {
			fmt.Printf("applied  %s  (%s)\n", m.Name, m.AppliedAt)
		} else {
			fmt.Printf("pending  %s\n", m.Name)
		}
	}
	log.Printf("database %s: %d migrations", cfg.DBPath, len(statuses))
}
