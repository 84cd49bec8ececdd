package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"forum-chat/config"
	"forum-chat/pkg/database"
)

const usage = `
Forum Chat - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Run GORM migrations
  status      Show database connection status
  seed-dev    Seed with development/test users
  truncate    Truncate all chat tables (DANGEROUS)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed-dev":
		runSeedDevelopment()
	case "truncate":
		runTruncate()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("🚀 Running migrations UP...")

	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus() {
	log.Println("🔍 Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, table := range database.Tables() {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("⚠️  Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.TableCount(table)
			log.Printf("✅ Table %-30s exists (%d rows)", table, count)
		} else {
			log.Printf("❌ Table %-30s does not exist", table)
		}
	}
}

func runSeedDevelopment() {
	log.Println("🌱 Seeding database (development mode)...")

	result, err := database.SeedDevelopment()
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("   - Users: %d", len(result.Users))
	log.Println("✅ Development seeding completed!")
}

func runTruncate() {
	log.Println("⚠️  WARNING: This will TRUNCATE all chat tables!")

	if err := database.TruncateAll(); err != nil {
		log.Fatalf("❌ Truncate failed: %v", err)
	}

	log.Println("✅ All tables truncated!")
}
