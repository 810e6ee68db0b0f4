package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/meristem-data/cellclust/internal/db"
)

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "", "sqlite run registry (required)")
	fs.Parse(args)

	if *dbPath == "" {
		log.Fatal("migrate: -db is required")
	}
	rest := fs.Args()
	if len(rest) < 1 {
		log.Fatal("migrate: action required (up, down, status or force <version>)")
	}

	registry, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer registry.Close()

	switch rest[0] {
	case "up":
		if err := registry.MigrateUp(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("All migrations applied")

	case "down":
		if err := registry.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Rolled back one migration")

	case "status":
		version, dirty, err := registry.MigrateVersion()
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		fmt.Printf("version: %d, dirty: %t\n", version, dirty)

	case "force":
		if len(rest) < 2 {
			log.Fatal("Usage: cellclust migrate -db <path> force <version>")
		}
		version, err := strconv.Atoi(rest[1])
		if err != nil {
			log.Fatalf("Invalid version %q: %v", rest[1], err)
		}
		if err := registry.MigrateForce(version); err != nil {
			log.Fatalf("Migration force failed: %v", err)
		}
		log.Printf("Forced migration version to %d", version)

	default:
		log.Fatalf("Unknown migrate action: %s", rest[0])
	}
}
